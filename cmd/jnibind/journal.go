package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/jnibind/trace"
)

var (
	journalOp       string
	journalFailures bool
	journalLimit    int
	journalReset    bool
)

var journalCmd = &cobra.Command{
	Use:   "journal PATH",
	Short: "Summarize a call journal recorded by serve --trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().StringVar(&journalOp, "op", "", "Only list calls of this operation")
	journalCmd.Flags().BoolVar(&journalFailures, "failures", false, "Only list failed calls")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "Number of calls to list (0 for none)")
	journalCmd.Flags().BoolVar(&journalReset, "reset", false, "Delete every recorded call")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, args []string) error {
	j, err := trace.Open(args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	if journalReset {
		return j.Reset()
	}

	stats, err := j.Stats()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OP\tCALLS\tERRORS\tMEAN")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Op, s.Calls, s.Errors, s.Mean())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if journalLimit <= 0 {
		return nil
	}
	calls, err := j.Calls(trace.Filter{Op: journalOp, Failures: journalFailures, Limit: journalLimit})
	if err != nil {
		return err
	}
	if len(calls) > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	for _, c := range calls {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.At.Format("15:04:05.000"), c)
	}
	return nil
}
