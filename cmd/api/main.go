// AngelaMos | 2026
// main.go

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/accountd/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "accountd",
		Short:         "User accounts and token-based authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(
		&opts.configPath, "config", "config.yaml", "path to config file",
	)

	serve := newServeCommand(opts)
	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newCreateAdminCommand(opts))

	// Running the binary bare starts the server.
	cmd.RunE = serve.RunE

	return cmd
}

// load reads configuration and installs the process-wide logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(os.Stdout, cfg.Log, cfg.IsDevelopment())
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// setupLogger adds source locations in development.
func setupLogger(w io.Writer, cfg config.LogConfig, development bool) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: development}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
