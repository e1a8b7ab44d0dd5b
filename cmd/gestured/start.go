package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/config"
	"github.com/fyrsmithlabs/gestured/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the gesture daemon",
	Long: `Run the gesture daemon in the foreground until SIGINT or SIGTERM.

The touchpad is found on the udev seat unless device.path is configured.
A control socket for "gestured reload" and "gestured status" is served
unless ipc.disable is set.

Examples:
  # Run with the default configuration
  gestured start

  # Run with debug logging and a specific file
  gestured -vv start --conf ./gestures.yaml`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(confPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Fallback != nil {
		logger.Error(ctx, "configuration file unusable, no gestures are bound", zap.Error(cfg.Fallback))
	} else if cfg.Source == config.DefaultsSource {
		path, _ := config.DefaultPath()
		logger.Error(ctx, "no configuration file found, no gestures are bound", zap.String("path", path))
	}

	if err := daemon.Run(ctx, cfg, daemon.RunOptions{
		Logger:     logger,
		ConfigPath: confPath,
		Version:    version,
	}); err != nil {
		logger.Error(ctx, "daemon stopped", zap.Error(err))
		return fmt.Errorf("gestured: %w", err)
	}
	return nil
}
