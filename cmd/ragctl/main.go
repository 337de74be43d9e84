// Package main implements the ragctl CLI for manual operations against the
// ragassistant HTTP API.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Each call returns independent flag
// state so tests can run commands in isolation.
func newRootCmd() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)

	root := &cobra.Command{
		Use:   "ragctl",
		Short: "CLI for ragassistant daemon operations",
		Long: `ragctl talks to a running ragassistant daemon. It can simulate editor
document switches, send chat turns, inspect per-document history and manage
the model backend settings.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:9191", "ragassistant server URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")

	client := func() *apiClient { return newAPIClient(serverURL, timeout) }

	root.AddCommand(
		newHealthCmd(client),
		newSwitchCmd(client),
		newContextCmd(client),
		newChatCmd(client),
		newHistoryCmd(client),
		newModelsCmd(client),
		newStatusCmd(client),
		newSettingsCmd(client),
	)
	return root
}
