package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/parlcrawl/internal/report"
)

func newTermsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terms",
		Short: "List the Canadian parliaments available to --start/--end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := resolveRunner(cmd.Context())
			if err != nil {
				return err
			}
			options, err := runner.Terms(cmd.Context())
			if err != nil {
				return fmt.Errorf("list terms: %w", err)
			}
			report.Terms(cmd.OutOrStdout(), options)
			return nil
		},
	}
}
