package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/jnibind/jni"
	"github.com/chazu/jnibind/manifest"
	"github.com/chazu/jnibind/remote"
	"github.com/chazu/jnibind/simjvm"
	"github.com/chazu/jnibind/trace"
)

var (
	serveAddr  string
	serveTTL   time.Duration
	serveSweep time.Duration
	serveTrace string
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve the simulated runtime over the bridge protocol",
	Long: `Serve the built-in simulated runtime to remote clients over Connect,
gRPC-Web and gRPC. Settings come from the [server] and [trace] tables of
jnibind.toml when one is found; flags override them. Declared classes are
resolved before the server starts so a bad declaration fails fast.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", manifest.DefaultAddr, "Listen address")
	serveCmd.Flags().DurationVar(&serveTTL, "ttl", manifest.DefaultHandleTTL, "Idle time after which a handle is released")
	serveCmd.Flags().DurationVar(&serveSweep, "sweep", manifest.DefaultSweepInterval, "How often idle handles are swept")
	serveCmd.Flags().StringVar(&serveTrace, "trace", "", "Record every bridge call to this SQLite journal")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := commonlog.GetLogger("jnibind.serve")

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if m != nil {
		applyServerConfig(cmd, m)
	}

	rt := simjvm.New()
	var bridge jni.Bridge = rt
	if serveTrace != "" {
		journal, err := trace.Open(serveTrace)
		if err != nil {
			return err
		}
		defer journal.Close()
		bridge = trace.Wrap(rt, journal)
		log.Infof("recording calls to %s", journal.Path())
	}

	if m != nil {
		if err := preflight(bridge, m); err != nil {
			return err
		}
	}

	srv := remote.NewServer(bridge,
		remote.WithHandleTTL(serveTTL),
		remote.WithSweepInterval(serveSweep),
		remote.WithServerLogger(commonlog.GetLogger("jnibind.remote")),
	)
	defer srv.Stop()

	httpSrv := srv.HTTPServer(serveAddr)
	errc := make(chan error, 1)
	go func() {
		log.Noticef("serving %d classes on %s", len(rt.ClassNames()), serveAddr)
		errc <- httpSrv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Noticef("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// applyServerConfig copies manifest settings into flags the user left at
// their defaults.
func applyServerConfig(cmd *cobra.Command, m *manifest.Manifest) {
	flags := cmd.Flags()
	if !flags.Changed("addr") && m.Server.Addr != "" {
		serveAddr = m.Server.Addr
	}
	if !flags.Changed("ttl") && m.Server.HandleTTL.Duration > 0 {
		serveTTL = m.Server.HandleTTL.Duration
	}
	if !flags.Changed("sweep") && m.Server.SweepInterval.Duration > 0 {
		serveSweep = m.Server.SweepInterval.Duration
	}
	if !flags.Changed("trace") && m.Trace.Path != "" {
		serveTrace = m.Trace.Path
	}
}

// preflight compiles the manifest and registers every declared class
// against bridge.
func preflight(bridge jni.Bridge, m *manifest.Manifest) error {
	cat, err := manifest.Compile(m)
	if err != nil {
		return err
	}
	env := jni.NewEnv(bridge)
	defer env.Close()
	if _, err := manifest.Apply(env, cat); err != nil {
		return fmt.Errorf("%s: %w", m.Path, err)
	}
	return nil
}
