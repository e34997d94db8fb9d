// Package cmd defines the parlcrawl command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/parlcrawl/internal/app"
	"github.com/JakeFAU/parlcrawl/internal/config"
	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/logging"
	"github.com/JakeFAU/parlcrawl/internal/rules/ca"
)

// Runner is the application surface the commands use. Tests inject fakes.
type Runner interface {
	Crawl(ctx context.Context, site string, opts app.RunOptions) (app.Result, error)
	ExtractRoles(ctx context.Context, field string) (app.Result, error)
	Terms(ctx context.Context) ([]ca.Option, error)
	Profiles(ctx context.Context) ([]crawler.ProfileKey, error)
	Close()
}

type runnerKey struct{}

// annotationNoApp marks commands that run without config or services.
const annotationNoApp = "parlcrawl/no-app"

// newRunner builds the application. It is a variable so tests can replace it.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.Build(ctx, cfg, logger)
}

// errFatal marks a run that finished with fatal failures.
var errFatal = errors.New("run finished with fatal failures")

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "parlcrawl",
		Short: "Crawl legislative sites into normalized tables.",
		Long: `parlcrawl crawls parliamentary web sites (members, speeches, Hansard
sessions, bills, biographies and member profiles), keeps every member
profile in a resumable store and writes normalized CSV/JSON tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoApp] != "" {
				return nil
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			runner, err := newRunner(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runnerKey{}, runner))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if runner, ok := cmd.Context().Value(runnerKey{}).(Runner); ok && runner != nil {
				runner.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(
		newCrawlCmd(),
		newExtractRolesCmd(),
		newTermsCmd(),
		newProfilesCmd(),
		newSitesCmd(),
	)
	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFatal) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func resolveRunner(ctx context.Context) (Runner, error) {
	runner, ok := ctx.Value(runnerKey{}).(Runner)
	if !ok || runner == nil {
		return nil, errors.New("application services not initialized")
	}
	return runner, nil
}
