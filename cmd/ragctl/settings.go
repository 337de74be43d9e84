package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragassistant/internal/settings"
)

func newSettingsCmd(client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change model backend settings",
	}
	cmd.AddCommand(newSettingsGetCmd(client), newSettingsSetCmd(client))
	return cmd
}

func newSettingsGetCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s settings.Settings
			if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/settings", nil, &s); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}
}

// newSettingsSetCmd updates only the flags that were given, on top of the
// settings currently stored by the daemon.
func newSettingsSetCmd(client clientFunc) *cobra.Command {
	var (
		url         string
		model       string
		temperature float64
		contextFree bool
		subDocs     bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update settings",
		Long: `Update one or more settings. Unset flags keep their current value.

Examples:
  ragctl settings set --model llama3.1:8b
  ragctl settings set --url http://gpu-box:11434 --temperature 0.3
  ragctl settings set --sub-documents=true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			var s settings.Settings
			if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/settings", nil, &s); err != nil {
				return err
			}

			flags := cmd.Flags()
			changed := false
			if flags.Changed("url") {
				s.ServerURL, changed = url, true
			}
			if flags.Changed("model") {
				s.SelectedModel, changed = model, true
			}
			if flags.Changed("temperature") {
				s.Temperature, changed = temperature, true
			}
			if flags.Changed("context-free") {
				s.ContextFree, changed = contextFree, true
			}
			if flags.Changed("sub-documents") {
				s.IncludeSubDocuments, changed = subDocs, true
			}
			if !changed {
				return fmt.Errorf("no settings given")
			}
			if err := s.Validate(); err != nil {
				return err
			}

			var saved settings.Settings
			if err := c.do(cmd.Context(), http.MethodPut, "/api/v1/settings", s, &saved); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Ollama server URL")
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.1, "sampling temperature (0-2)")
	cmd.Flags().BoolVar(&contextFree, "context-free", false, "ignore the active document")
	cmd.Flags().BoolVar(&subDocs, "sub-documents", false, "include sub-document content")
	return cmd
}
