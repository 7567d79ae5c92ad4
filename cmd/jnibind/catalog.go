package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazu/jnibind/manifest"
)

var (
	catalogOutput string
	catalogShow   string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [dir]",
	Short: "Compile declarations into a binary catalog",
	Long: `Compile the declarations of a project into a CBOR catalog that Apply and
gen read without re-validating. With --show, print an existing catalog as
YAML instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogOutput, "output", "o", "jnibind.cat", "Catalog file to write")
	catalogCmd.Flags().StringVar(&catalogShow, "show", "", "Print this catalog file and exit")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	if catalogShow != "" {
		data, err := os.ReadFile(catalogShow)
		if err != nil {
			return err
		}
		cat, err := manifest.UnmarshalCatalog(data)
		if err != nil {
			return fmt.Errorf("reading %s: %w", catalogShow, err)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cat)
	}

	_, cat, err := loadCatalog(args)
	if err != nil {
		return err
	}
	data, err := manifest.MarshalCatalog(cat)
	if err != nil {
		return err
	}
	if err := os.WriteFile(catalogOutput, data, 0644); err != nil {
		return err
	}
	if !quiet {
		sum, err := cat.Hash()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d classes, sha256 %s)\n", catalogOutput, len(cat.Classes), hex.EncodeToString(sum[:8]))
	}
	return nil
}
