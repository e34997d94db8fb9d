package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/parlcrawl/internal/report"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the profiles in the profile store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := resolveRunner(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := runner.Profiles(cmd.Context())
			if err != nil {
				return fmt.Errorf("list profiles: %w", err)
			}
			report.Profiles(cmd.OutOrStdout(), keys)
			return nil
		},
	}
}
