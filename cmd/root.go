// Package cmd is the cobra CLI over the livectl command surface. It is
// presentation glue only: every subcommand dispatches a protocol method and
// renders the result.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/livectl/internal/command"
	"github.com/nextlevelbuilder/livectl/internal/config"
)

var (
	flagConfig   string
	flagLogLevel string
	flagJSON     bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "livectl",
		Short:         "Operate a live-streaming channel: login, room metadata, broadcast start/stop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	cmd.AddCommand(loginCmd())
	cmd.AddCommand(logoutCmd())
	cmd.AddCommand(whoamiCmd())
	cmd.AddCommand(roomCmd())
	cmd.AddCommand(liveCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}

// newRuntime loads config, sets up logging, and assembles the core.
func newRuntime() (*command.Runtime, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	initLogging(level)

	return command.NewRuntime(cfg, cfgPath)
}

func initLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
