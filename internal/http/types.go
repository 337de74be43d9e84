package http

import (
	"github.com/fyrsmithlabs/ragassistant/internal/conversation"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/ollama"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"` // "configuration", "connection", "protocol", "busy"
	URL   string `json:"url,omitempty"`  // backend URL for connection failures
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// SwitchResponse is the response body for POST /api/v1/events/switch.
type SwitchResponse struct {
	Applied bool               `json:"applied"`
	Context doccontext.Context `json:"context"`
}

// HistoryResponse is the response body for GET /api/v1/history.
type HistoryResponse struct {
	DocumentID string                    `json:"document_id,omitempty"`
	Messages   conversation.Conversation `json:"messages"`
}

// ModelsResponse is the response body for GET /api/v1/models.
type ModelsResponse struct {
	Models []ollama.Model `json:"models"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Configured      bool               `json:"configured"`
	Loading         bool               `json:"loading"`
	ConnectionError string             `json:"connection_error,omitempty"`
	Context         doccontext.Context `json:"context"`
}
