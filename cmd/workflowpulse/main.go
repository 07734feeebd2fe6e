// Package main provides the workflowpulse CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"WorkflowPulse/internal/app"
	"WorkflowPulse/internal/config"
	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/logging"
	"WorkflowPulse/internal/usecase"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags value and falls back to module build info.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" && ldflags != "" {
		return ldflags
	}
	if info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func currentVersion() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(version, info)
}

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load(stderr io.Writer) (config.Config, *slog.Logger) {
	cfg := config.Load(o.configPath)
	return cfg, logging.NewWithWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
}

// newRootCmd creates the root command for the workflowpulse CLI.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "workflowpulse",
		Short:        "Collect popularity signals for n8n workflows",
		Long:         "Workflowpulse gathers popularity signals for automation workflows from YouTube, the n8n forum and Google Trends and serves the latest values over HTTP.",
		Version:      currentVersion(),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("workflowpulse version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (defaults to $WORKFLOW_PULSE_CONFIG)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newCollectCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the scheduler when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.load(cmd.ErrOrStderr())
			if err := cfg.Validate(); err != nil {
				return err
			}

			application, err := app.New(cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(cmd.Context())
		},
	}
}

func newCollectCmd(opts *rootOptions) *cobra.Command {
	var (
		countries []string
		source    string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection and store the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildRunRequest(countries, source)
			if err != nil {
				return err
			}

			cfg, logger := opts.load(cmd.ErrOrStderr())
			application, err := app.New(cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Collect(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d workflows\n", report.Stored)
			if report.Failures > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d collection failures (see log)\n", report.Failures)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&countries, "country", nil, "country code to collect (repeatable, default: configured countries)")
	cmd.Flags().StringVar(&source, "source", "all", "source to collect: all, video, forum or trends")
	return cmd
}

// buildRunRequest validates the collect flags.
func buildRunRequest(countries []string, source string) (usecase.RunRequest, error) {
	var req usecase.RunRequest
	for _, code := range countries {
		country := domain.NormalizeCountry(code)
		if country == "" {
			continue
		}
		req.Countries = append(req.Countries, country)
	}

	source = strings.TrimSpace(source)
	if source == "" || strings.EqualFold(source, "all") {
		return req, nil
	}
	platform, ok := domain.ParsePlatform(source)
	if !ok {
		return req, fmt.Errorf("invalid source %q: must be all, video, forum or trends", source)
	}
	req.Platforms = []domain.Platform{platform}
	return req, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.load(cmd.ErrOrStderr())
			application, err := app.New(cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "workflowpulse version %s\n", currentVersion())
		},
	}
}
