package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gestured/internal/config"
	"github.com/fyrsmithlabs/gestured/internal/gesture"
)

var checkWatch bool

func init() {
	checkCmd.Flags().BoolVarP(&checkWatch, "watch", "w", false, "re-check whenever the file changes")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file and its gesture bindings without
touching any device.

Examples:
  # Check the default configuration
  gestured check

  # Keep checking while editing
  gestured check --watch --conf ./gestures.yaml`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := confPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	err := checkFile(cmd, path)
	if !checkWatch {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.Printf("watching %s\n", path)
	return watchConfig(ctx, path, func() { _ = checkFile(cmd, path) })
}

// checkFile validates path and prints the outcome.
func checkFile(cmd *cobra.Command, path string) error {
	_, bindings, err := loadBindings(path)
	if err != nil {
		cmd.PrintErrf("%s: %v\n", path, err)
		return err
	}
	cmd.Printf("%s: ok, %d bindings\n", path, len(bindings))
	return nil
}

func loadBindings(path string) (*config.Config, gesture.Bindings, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Fallback != nil {
		return nil, nil, cfg.Fallback
	}
	bindings, err := gesture.FromConfig(cfg.Gestures)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid gesture bindings: %w", err)
	}
	return cfg, bindings, nil
}

// watchConfig calls onChange after every write, create or rename of path
// until ctx is cancelled. The parent directory is watched so editors that
// replace the file are followed.
func watchConfig(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}
}
