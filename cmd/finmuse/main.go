package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"FinMuse/internal/app"
	"FinMuse/internal/config"
	"FinMuse/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "finmuse",
		Short:         "Business news summarizer and static publisher",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgFile != "" {
				os.Setenv("FINMUSE_CONFIG", cfgFile)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides FINMUSE_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the read API and the hourly pipeline",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "scrape",
			Short: "Run one pipeline cycle and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(a *app.Application, _ *slog.Logger) error {
					report, err := a.RunOnce(cmd.Context())
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				})
			},
		},
		&cobra.Command{
			Use:   "reindex",
			Short: "Regenerate sitemap.xml and rss.xml",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(a *app.Application, _ *slog.Logger) error {
					return a.Reindex(cmd.Context())
				})
			},
		},
	)

	return root
}

func runServe(ctx context.Context) error {
	return withApp(func(a *app.Application, logger *slog.Logger) error {
		logger.Info("finmuse starting")
		if err := a.Serve(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			return err
		}
		logger.Info("finmuse stopped")
		return nil
	})
}

func withApp(fn func(*app.Application, *slog.Logger) error) error {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer application.Close()

	return fn(application, logger)
}
