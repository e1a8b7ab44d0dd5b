// Package main implements the gestured daemon and its control CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gestured/internal/config"
	"github.com/fyrsmithlabs/gestured/internal/logging"
)

var (
	// verbosity is the count of -v flags
	verbosity int
	// debug forces at least debug logging
	debug bool
	// confPath overrides the default config search
	confPath string
	// version is set at build time
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gestured",
	Short: "Touchpad gesture daemon",
	Long: `gestured reads multi-finger touchpad gestures from evdev and runs the
shell commands bound to them. Swipes with direction "any" drag the pointer
through a virtual uinput mouse.

The configuration is read from $XDG_CONFIG_HOME/gestured/config.yaml
(config.yml and config.toml are also accepted) unless --conf is given.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&confPath, "conf", "c", "", "configuration file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gestured version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("gestured %s\n", version)
	},
}

// newLogger builds the process logger from the log section and CLI flags.
func newLogger(settings config.LogConfig) (*logging.Logger, error) {
	cfg, err := logging.FromSettings(settings)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetLevel(logging.LevelFromVerbosity(logger.Level(), verbosity, debug))
	return logger, nil
}
