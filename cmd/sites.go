package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/parlcrawl/internal/rules"
)

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "sites",
		Short:       "List the crawlable sites",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Site", "Description", "Seeds"})
			for _, s := range rules.Sites() {
				t.AppendRow(table.Row{s.Name, s.Description, strings.Join(s.SeedURLs, "\n")})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
		},
	}
}
