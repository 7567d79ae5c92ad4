package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/jnibind/sig"
)

var (
	sigReturns string
	sigField   bool
)

var sigCmd = &cobra.Command{
	Use:   "sig [tags...]",
	Short: "Print the wire signature of a tag list",
	Long: `Print the method signature for argument tags and a return tag, or with
--field the descriptor of a single tag. Arrays are written in brackets:
"[int]", "[[java.lang.String]]".`,
	Example: `  jnibind sig string int --returns boolean   # (Ljava/lang/String;I)Z
  jnibind sig --field "[long]"                # [J`,
	RunE: runSig,
}

func init() {
	sigCmd.Flags().StringVarP(&sigReturns, "returns", "r", "void", "Return tag")
	sigCmd.Flags().BoolVar(&sigField, "field", false, "Print the descriptor of a single tag")
	rootCmd.AddCommand(sigCmd)
}

func runSig(cmd *cobra.Command, args []string) error {
	if sigField {
		if len(args) != 1 {
			return fmt.Errorf("--field takes exactly one tag, got %d", len(args))
		}
		t, err := sig.ParsePrinted(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Signature())
		return nil
	}

	types, err := parseTags(args)
	if err != nil {
		return err
	}
	if err := sig.ValidateArgs(types); err != nil {
		return err
	}
	ret, err := sig.ParsePrinted(sigReturns)
	if err != nil {
		return fmt.Errorf("return type: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sig.MethodSignature(types, ret))
	return nil
}

func parseTags(tags []string) ([]sig.Type, error) {
	out := make([]sig.Type, len(tags))
	for i, tag := range tags {
		t, err := sig.ParsePrinted(tag)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = t
	}
	return out, nil
}
