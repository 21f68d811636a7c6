package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/autoform/internal/dictionary"
)

// newFieldsCmd creates the `fields` command, which lists the logical field
// names the engine recognizes and the phrases it looks for.
func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "Lists known logical fields and their synonyms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			dict := dictionary.Default().WithOverrides(cfg.Dictionary().Synonyms)
			for _, name := range dict.Names() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(dict.Lookup(name), ", ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
