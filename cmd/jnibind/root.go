package main

import (
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var (
	verbosity int
	logFile   string
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:           "jnibind",
	Short:         "Typed bindings to classes in a Java runtime",
	Long:          "jnibind reads class declarations from jnibind.toml, checks and compiles them, generates Go wrappers, and serves a runtime over the bridge protocol.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var path *string
		if logFile != "" {
			path = &logFile
		}
		commonlog.Configure(verbosity, path)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
