package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ragassistant/internal/chat"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	ctxhttp "github.com/fyrsmithlabs/ragassistant/internal/http"
)

type clientFunc func() *apiClient

func newHealthCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp ctxhttp.HealthResponse
			if err := client().do(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
			return nil
		},
	}
}

func newSwitchCmd(client clientFunc) *cobra.Command {
	var (
		name    string
		blockID string
	)
	cmd := &cobra.Command{
		Use:   "switch <document-id>",
		Short: "Simulate the editor opening a document",
		Long: `Send a document switch event as the editor plugin would.

Examples:
  # Switch to a document; the daemon resolves its name
  ragctl switch 20240101120000-abcdefg

  # Switch via a block inside the document
  ragctl switch 20240101120000-abcdefg --block 20240101120500-hijklmn`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := doccontext.NewSwitchEvent(args[0], blockID, name)
			var resp ctxhttp.SwitchResponse
			if err := client().do(cmd.Context(), http.MethodPost, "/api/v1/events/switch", ev, &resp); err != nil {
				return err
			}
			printContext(cmd.OutOrStdout(), resp.Context)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "document display name (resolved by the daemon when empty)")
	cmd.Flags().StringVar(&blockID, "block", "", "focused block ID")
	return cmd
}

func newContextCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show the active document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var c doccontext.Context
			if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/context", nil, &c); err != nil {
				return err
			}
			printContext(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newChatCmd(client clientFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send one chat turn",
		Long: `Send a chat turn against the active document. The message is the
remaining arguments joined by spaces.

Examples:
  ragctl chat "Which tasks are still open?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ctxhttp.ChatRequest{Message: strings.Join(args, " ")}
			var reply chat.Reply
			if err := client().do(cmd.Context(), http.MethodPost, "/api/v1/chat", req, &reply); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), reply)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full reply as JSON")
	return cmd
}

func newHistoryCmd(client clientFunc) *cobra.Command {
	var clearHistory bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the active document's conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if clearHistory {
				if err := client().do(cmd.Context(), http.MethodDelete, "/api/v1/history", nil, nil); err != nil {
					return err
				}
				fmt.Fprintln(out, "History cleared")
				return nil
			}

			var resp ctxhttp.HistoryResponse
			if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/history", nil, &resp); err != nil {
				return err
			}
			if resp.DocumentID == "" {
				fmt.Fprintln(out, "Document: (none)")
			} else {
				fmt.Fprintf(out, "Document: %s\n", resp.DocumentID)
			}
			for _, m := range resp.Messages {
				fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "clear the conversation instead of printing it")
	return cmd
}

func newModelsCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models on the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp ctxhttp.ModelsResponse
			if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/models", nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Models) == 0 {
				fmt.Fprintln(out, "No models available")
				return nil
			}
			for _, m := range resp.Models {
				fmt.Fprintln(out, m.Name)
			}
			return nil
		},
	}
}

func newStatusCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check backend configuration and connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st ctxhttp.StatusResponse
			if err := client().do(cmd.Context(), http.MethodGet, "/api/v1/status", nil, &st); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configured: %t\n", st.Configured)
			fmt.Fprintf(out, "Loading:    %t\n", st.Loading)
			if st.ConnectionError != "" {
				fmt.Fprintf(out, "Connection: %s\n", st.ConnectionError)
			} else {
				fmt.Fprintln(out, "Connection: ok")
			}
			printContext(out, st.Context)
			return nil
		},
	}
}

func printContext(w io.Writer, c doccontext.Context) {
	if !c.HasContext() {
		fmt.Fprintln(w, "Document: (none)")
		return
	}
	if c.DocumentName != "" {
		fmt.Fprintf(w, "Document: %s (%s)\n", c.DocumentName, c.DocumentID)
		return
	}
	fmt.Fprintf(w, "Document: %s\n", c.DocumentID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
