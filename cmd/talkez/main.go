package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/loqalabs/talkez/internal/config"
	"github.com/loqalabs/talkez/internal/runtime"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		serve      bool
	)

	root := &cobra.Command{
		Use:           "talkez",
		Short:         "TalkEz - you speak, we translate",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWidget(cmd.Context(), configPath, serve)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration")
	root.Flags().BoolVar(&serve, "serve", false, "Also host the translation service in this process")

	ui := &cobra.Command{
		Use:   "ui",
		Short: "Run the translator widget in the terminal (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWidget(cmd.Context(), configPath, serve)
		},
	}
	ui.Flags().BoolVar(&serve, "serve", false, "Also host the translation service in this process")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the translation service (POST /translate)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	root.AddCommand(ui, serveCmd, versionCmd)
	return root
}

func runServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(cfg, logger, runtime.WithTraceOutput(os.Stdout))
	if err := rt.Serve(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// runWidget keeps the terminal for the shell: logs and traces go to
// telemetry.log_file, or nowhere when it is empty.
func runWidget(ctx context.Context, configPath string, serve bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if cfg.Telemetry.LogFile != "" {
		f, err := os.OpenFile(cfg.Telemetry.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger := newLogger(out, cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt := runtime.New(cfg, logger, runtime.WithTraceOutput(out))
	if err := rt.RunWidget(ctx, serve); err != nil {
		logger.Error("widget exited with error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Telemetry.SlogLevel()})).
		With(slog.String("runtime", cfg.RuntimeName))
}
