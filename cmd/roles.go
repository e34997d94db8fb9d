package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/parlcrawl/internal/report"
)

func newExtractRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-roles <field>",
		Short: "Write a roles table from stored Canadian profiles",
		Long: `Reads every stored Canadian member profile and writes one table of the
roles listed under <field>, for example ParliamentaryPositionRoles or
CommitteeMemberRoles. Nothing is fetched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := resolveRunner(cmd.Context())
			if err != nil {
				return err
			}
			res, err := runner.ExtractRoles(cmd.Context(), args[0])
			report.Summary(cmd.OutOrStdout(), res.Summary, res.Artifacts)
			if err != nil {
				return fmt.Errorf("extract roles %s: %w", args[0], err)
			}
			if res.Summary.HasFatal() {
				return errFatal
			}
			return nil
		},
	}
}
