// Package main provides the planwire binary entry point.
// Planwire is a terminal client for a multi-agent task-planning
// orchestrator: submit a goal, review and approve the proposed plan, and
// watch execution stream to completion.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/planwire/config"
)

const (
	Version = "0.1.0"
	appName = "planwire"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Task-planning orchestrator client",
		Long: `Planwire is a terminal client for a multi-agent task-planning
orchestrator.

It connects to the orchestrator over a persistent realtime channel,
submits goals, streams agent progress, and mediates plan approval and
clarification round-trips.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: layered lookup)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(runCmd(&configPath, &logLevel))
	cmd.AddCommand(listCmd(&configPath, &logLevel))
	return cmd
}

func runCmd(configPath, logLevel *string) *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "run [goal...]",
		Short: "Submit a goal and follow the plan to completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context(), strings.Join(args, " "), teamID)
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "agent team to execute the plan")
	return cmd
}

func listCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.List(cmd.Context())
		},
	}
}

// setup loads configuration and wires the application.
func setup(configPath, logLevel string) (*App, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg = config.DefaultConfig()
		var fileCfg *config.Config
		fileCfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", configPath, err)
		}
		cfg.Merge(fileCfg)
		if err = cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.NewLoader(nil).Load()
		if err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := setupLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	return NewApp(cfg, logger)
}

func setupLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
