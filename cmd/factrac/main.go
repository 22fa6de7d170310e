package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brcs124/2FacTrac/internal/bridge"
	"github.com/brcs124/2FacTrac/internal/extract"
	"github.com/brcs124/2FacTrac/internal/model"
	"github.com/brcs124/2FacTrac/internal/source"
	"github.com/brcs124/2FacTrac/internal/source/gmailjson"
	"github.com/brcs124/2FacTrac/internal/source/mailfile"
	appsync "github.com/brcs124/2FacTrac/internal/sync"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:   "factrac",
		Short: "Find the latest verification code or link in recent mail",
		Long: "factrac scans recently received messages for one-time verification\n" +
			"codes and links and reports the best candidate.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config.yaml (default: ~/.config/factrac/config.yaml)")

	root.AddCommand(scanCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*model.AppConfig, error) {
	path := configPath
	if path == "" {
		path = model.DefaultConfigPath()
	}
	return model.LoadConfig(path)
}

func newLogger(cfg model.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newSource(cfg model.SourceConfig) (source.Source, error) {
	switch cfg.Type {
	case model.SourceTypeMailFile:
		return mailfile.New(cfg.Path), nil
	case model.SourceTypeGmailJSON:
		return gmailjson.New(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

func scanCmd() *cobra.Command {
	var (
		sourceType string
		path       string
		domain     string
		limit      int
		window     time.Duration
		format     string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Check recent messages once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("source-type") {
				cfg.Source.Type = sourceType
			}
			if cmd.Flags().Changed("path") {
				cfg.Source.Path = path
			}
			if cmd.Flags().Changed("domain") {
				cfg.TargetDomain = domain
			}
			if cmd.Flags().Changed("limit") {
				cfg.Source.Limit = limit
			}
			if cmd.Flags().Changed("window") {
				cfg.Source.Window = window
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg.Log)
			src, err := newSource(cfg.Source)
			if err != nil {
				return err
			}

			poller := appsync.New(src, extract.NewAggregator(logger), appsync.Config{
				Timeout:      time.Duration(cfg.Poll.TimeoutSec) * time.Second,
				Limit:        cfg.Source.Limit,
				Window:       cfg.Source.Window,
				TargetDomain: extract.TargetDomain(cfg.TargetDomain),
			}, logger)

			result, runErr := poller.RunNow(cmd.Context())
			if err := printResult(cmd.OutOrStdout(), format, result, runErr); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&sourceType, "source-type", "", "message source: mailfile or gmailjson")
	cmd.Flags().StringVar(&path, "path", "", "directory the source reads from")
	cmd.Flags().StringVar(&domain, "domain", "", "target site URL or domain used to rank links")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of recent messages to check")
	cmd.Flags().DurationVar(&window, "window", 0, "only check messages received within this duration")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll for messages and answer bridge requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log)

			src, err := newSource(cfg.Source)
			if err != nil {
				return err
			}

			timeout := time.Duration(cfg.Poll.TimeoutSec) * time.Second
			poller := appsync.New(src, extract.NewAggregator(logger), appsync.Config{
				Interval:     time.Duration(cfg.Poll.IntervalSec) * time.Second,
				Timeout:      timeout,
				Limit:        cfg.Source.Limit,
				Window:       cfg.Source.Window,
				RetainLast:   cfg.Poll.RetainLast,
				TargetDomain: extract.TargetDomain(cfg.TargetDomain),
			}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			poller.Start()
			defer poller.Stop()

			go drainResults(ctx, poller.Results(), logger)

			handler := bridge.NewHandler(poller, timeout, logger)
			return bridge.Serve(ctx, cfg.Bridge.Addr, handler, logger)
		},
	}
}

// drainResults logs each check outcome so the result channel never fills.
func drainResults(ctx context.Context, results <-chan appsync.Result, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-results:
			logger.Debug("check finished",
				"run_id", r.RunID,
				"messages", r.Messages,
				"empty", r.Aggregate.IsEmpty(),
				"auth_error", r.AuthError)
		}
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "factrac", version)
		},
	}
}
