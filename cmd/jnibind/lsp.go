package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/jnibind/lsp"
	"github.com/chazu/jnibind/simjvm"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the manifest language server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := simjvm.New()
		return lsp.New(lsp.WithClassNames(rt.ClassNames)).Run()
	},
}

func init() {
	rootCmd.AddCommand(lspCmd)
}
