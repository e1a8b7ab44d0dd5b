package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gestured/internal/config"
	"github.com/fyrsmithlabs/gestured/internal/ipc"
)

const requestTimeout = 5 * time.Second

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the running daemon to re-read its configuration",
	Long: `Ask the running daemon to re-read and validate its configuration file.

The daemon reports how many bindings the file holds. Bindings already in use
stay in effect until the daemon is restarted.

Examples:
  gestured reload`,
	Args: cobra.NoArgs,
	RunE: runReload,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of the running daemon",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runReload(cmd *cobra.Command, args []string) error {
	client, err := controlClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	resp, err := client.Reload(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("%s: %d bindings valid (restart to apply)\n", resp.Source, resp.Bindings)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := controlClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("%s %s: %s\n", health.Service, health.Version, health.Status)
	cmd.Printf("device: %s\n", health.Device)
	cmd.Printf("uptime: %s\n", health.Uptime)
	return nil
}

// controlClient connects to the socket named by the configuration.
func controlClient() (*ipc.Client, error) {
	cfg, err := config.Load(confPath)
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(cfg.IPC.Socket), nil
}
