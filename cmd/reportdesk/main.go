package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ReportDesk/internal/app"
	"ReportDesk/internal/config"
	"ReportDesk/internal/logging"
)

func main() {
	var configPath string
	var logLevel string

	load := func() config.Config {
		cfg := config.Load(configPath)
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		return cfg
	}

	root := &cobra.Command{
		Use:          "reportdesk",
		Short:        "Fetch fund news, draft the market report and distribute it",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()

			logFile, err := logging.OpenFile(cfg.Logging.File)
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger := logging.New(cfg.Logging.Level, logFile)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults to $REPORTDESK_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and print the distribution list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mail mode: %s\nmodel: %s\n", cfg.Mail.Mode, cfg.LLM.Model)
			for i, r := range cfg.Recipients {
				role := "bcc"
				if i == 0 {
					role = "primary"
				}
				fmt.Fprintf(out, "%-8s %s <%s>\n", role, r.Name, r.Email)
			}
			if cfg.LLM.APIKey == "" {
				fmt.Fprintln(out, "warning: API_KEY is not set, report generation will fail")
			}
			return nil
		},
	}
	root.AddCommand(check)

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
