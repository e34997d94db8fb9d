package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/app"
	"github.com/JakeFAU/parlcrawl/internal/extract"
	"github.com/JakeFAU/parlcrawl/internal/report"
	"github.com/JakeFAU/parlcrawl/internal/rules"
)

type crawlFlags struct {
	start          int
	end            int
	includeCurrent bool
	cutoff         string
	roleFields     []string
}

func newCrawlCmd() *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl <site>",
		Short: "Crawl a site and write its tables",
		Long: `Crawls one site from its seed pages. Member profiles already in the
profile store are read from it instead of being fetched again, so an
interrupted crawl can simply be re-run.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: siteNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := resolveRunner(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := f.runOptions(cmd)
			if err != nil {
				return err
			}

			res, err := runner.Crawl(cmd.Context(), args[0], opts)
			report.Summary(cmd.OutOrStdout(), res.Summary, res.Artifacts)
			if err != nil {
				return fmt.Errorf("crawl %s: %w", args[0], err)
			}
			if res.Summary.HasFatal() {
				zap.L().Error("crawl finished with fatal failures", zap.Int("failures", len(res.Summary.Failures)))
				return errFatal
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&f.start, "start", 0, "first term to crawl (term-enumerating sites)")
	cmd.Flags().IntVar(&f.end, "end", 0, "last term to crawl; 0 means the latest")
	cmd.Flags().BoolVar(&f.includeCurrent, "include-current", true, "also crawl the sitting term")
	cmd.Flags().StringVar(&f.cutoff, "cutoff", "", "drop sittings and speeches before this date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.roleFields, "role-field", nil, "profile role fields to extract (repeatable)")
	return cmd
}

// runOptions returns overrides only for the flags the user set, so config
// values stay in effect otherwise.
func (f crawlFlags) runOptions(cmd *cobra.Command) (app.RunOptions, error) {
	var opts app.RunOptions
	flags := cmd.Flags()
	if flags.Changed("start") {
		opts.StartTerm = &f.start
	}
	if flags.Changed("end") {
		opts.EndTerm = &f.end
	}
	if opts.StartTerm != nil && opts.EndTerm != nil && f.end > 0 && f.start > f.end {
		return opts, errors.New("--start must not be after --end")
	}
	if flags.Changed("include-current") {
		opts.IncludeCurrent = &f.includeCurrent
	}
	if flags.Changed("cutoff") {
		var cutoff time.Time
		if f.cutoff != "" {
			t, err := time.Parse(extract.DateLayout, f.cutoff)
			if err != nil {
				return opts, fmt.Errorf("invalid --cutoff: %w", err)
			}
			cutoff = t
		}
		opts.Cutoff = &cutoff
	}
	opts.RoleFields = f.roleFields
	return opts, nil
}

func siteNames() []string {
	sites := rules.Sites()
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = s.Name
	}
	return out
}
