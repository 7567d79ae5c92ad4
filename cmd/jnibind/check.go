package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/jnibind/manifest"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Validate jnibind.toml and the declarations it includes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, cat, err := loadCatalog(args)
	if err != nil {
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			for _, is := range issuesIn(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), is)
			}
			return errors.New("validation failed")
		}
		return err
	}
	if !quiet {
		members := 0
		for _, cc := range cat.Classes {
			members += len(cc.Constructors) + len(cc.Methods) + len(cc.Fields)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d classes, %d members\n", m.Path, len(cat.Classes), members)
	}
	return nil
}

// loadCatalog loads the manifest in the directory named by args (default
// ".", searching upwards) and compiles it.
func loadCatalog(args []string) (*manifest.Manifest, *manifest.Catalog, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	cat, err := manifest.Compile(m)
	if err != nil {
		return m, nil, err
	}
	return m, cat, nil
}

// issuesIn lists the validation errors inside err, one per line, prefixed
// with their file.
func issuesIn(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var verr *manifest.ValidationError
		if errors.As(e, &verr) {
			for _, is := range verr.Issues {
				out = append(out, fmt.Sprintf("%s: %s", verr.File, is))
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}
