package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/jnibind/gen"
)

var (
	genOutput  string
	genPackage string
	genDryRun  bool
)

var genCmd = &cobra.Command{
	Use:   "gen [dir]",
	Short: "Generate typed Go wrappers for the declared classes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGen,
}

func init() {
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output directory (default: project.output)")
	genCmd.Flags().StringVarP(&genPackage, "package", "p", "", "Package name (default: project.package)")
	genCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Print the generated code instead of writing it")
	rootCmd.AddCommand(genCmd)
}

func runGen(cmd *cobra.Command, args []string) error {
	m, cat, err := loadCatalog(args)
	if err != nil {
		return err
	}

	res, err := gen.Generate(cat, gen.Options{
		Package: genPackage,
		Source:  filepath.Base(m.Path),
	})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}

	if genDryRun {
		_, err := cmd.OutOrStdout().Write(res.Code)
		return err
	}

	dir := genOutput
	if dir == "" {
		dir = m.OutputDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, gen.FileName)
	if err := os.WriteFile(path, res.Code, 0644); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d classes)\n", path, len(cat.Classes))
	}
	return nil
}
