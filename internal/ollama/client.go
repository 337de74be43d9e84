// Package ollama talks to an Ollama server: it lists installed models and
// sends non-streaming chat completions.
//
// The base URL is passed on every call rather than fixed at construction,
// because settings are re-read before each request and may change between
// calls.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/apperr"
	"github.com/fyrsmithlabs/ragassistant/internal/conversation"
)

const (
	// DefaultListTimeout bounds a model listing.
	DefaultListTimeout = 5 * time.Second
	// DefaultChatTimeout bounds a chat completion.
	DefaultChatTimeout = 60 * time.Second

	maxResponseSize = 16 << 20
)

// Model is an installed model.
type Model struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// Config configures the client.
type Config struct {
	ListTimeout time.Duration
	ChatTimeout time.Duration
}

// Client is an Ollama HTTP client. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	listTimeout time.Duration
	chatTimeout time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewClient creates a client. Zero timeouts fall back to the defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = DefaultListTimeout
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}
	return &Client{
		httpClient:  &http.Client{},
		listTimeout: cfg.ListTimeout,
		chatTimeout: cfg.ChatTimeout,
		logger:      logger,
		tracer:      otel.Tracer("github.com/fyrsmithlabs/ragassistant/internal/ollama"),
	}
}

type tagsResponse struct {
	Models *[]Model `json:"models"`
}

type chatRequest struct {
	Model       string                 `json:"model"`
	Messages    []conversation.Message `json:"messages"`
	Temperature float64                `json:"temperature"`
	Stream      bool                   `json:"stream"`
}

type chatResponse struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// proxyError is the envelope a forwarding proxy returns when it could not
// reach the backend.
type proxyError struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

// ListModels returns the models installed on the server at baseURL. A blank
// baseURL means the backend is not configured and yields nil, nil without
// any I/O.
func (c *Client) ListModels(ctx context.Context, baseURL string) ([]Model, error) {
	const op = "list models"

	endpoint := normalizeURL(baseURL)
	if endpoint == "" {
		return nil, nil
	}

	ctx, span := c.tracer.Start(ctx, "ollama.ListModels",
		trace.WithAttributes(attribute.String("ollama.url", baseURL)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api/tags", nil)
	if err != nil {
		return nil, c.fail(span, apperr.Configuration(op, fmt.Errorf("invalid url %q: %w", baseURL, err)))
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, c.fail(span, apperr.Connection(op, baseURL, 0, err))
	}
	if err := checkResponse(op, baseURL, status, body); err != nil {
		return nil, c.fail(span, err)
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil || tags.Models == nil {
		return nil, c.fail(span, apperr.Protocol(op, status, errors.New("response has no models array")))
	}

	span.SetAttributes(attribute.Int("ollama.models", len(*tags.Models)))
	return *tags.Models, nil
}

// Chat sends messages to model and returns the assistant's reply text. It
// fails with a configuration error before any I/O when baseURL or model is
// blank. Each call makes a single attempt.
func (c *Client) Chat(ctx context.Context, baseURL, model string, messages conversation.Conversation, temperature float64) (string, error) {
	const op = "chat"

	endpoint := normalizeURL(baseURL)
	if endpoint == "" {
		return "", apperr.Configuration(op, errors.New("ollama url is required"))
	}
	if strings.TrimSpace(model) == "" {
		return "", apperr.Configuration(op, errors.New("model is required"))
	}

	ctx, span := c.tracer.Start(ctx, "ollama.Chat",
		trace.WithAttributes(
			attribute.String("ollama.url", baseURL),
			attribute.String("ollama.model", model),
			attribute.Int("ollama.messages", len(messages)),
		))
	defer span.End()

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages.Clone(),
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return "", c.fail(span, apperr.Protocol(op, 0, fmt.Errorf("failed to marshal request: %w", err)))
	}

	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", c.fail(span, apperr.Configuration(op, fmt.Errorf("invalid url %q: %w", baseURL, err)))
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending chat request",
		zap.String("model", model),
		zap.Int("messages", len(messages)),
		zap.Float64("temperature", temperature))

	body, status, err := c.do(req)
	if err != nil {
		return "", c.fail(span, apperr.Connection(op, baseURL, 0, err))
	}
	if err := checkResponse(op, baseURL, status, body); err != nil {
		return "", c.fail(span, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Message == nil || resp.Message.Content == "" {
		return "", c.fail(span, apperr.Protocol(op, status, errors.New("response has no message content")))
	}

	span.SetAttributes(attribute.Int("ollama.reply_bytes", len(resp.Message.Content)))
	return resp.Message.Content, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) == 0 {
		return nil, resp.StatusCode, errors.New("no response from ollama server")
	}
	return body, resp.StatusCode, nil
}

// checkResponse classifies error statuses and proxy envelopes. It returns
// nil when body should be decoded as a normal response.
func checkResponse(op, baseURL string, status int, body []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		if status >= http.StatusBadRequest {
			return apperr.Connection(op, baseURL, status, fmt.Errorf("connection failed with status %d", status))
		}
		return apperr.Protocol(op, status, errors.New("invalid JSON response"))
	}

	var pe proxyError
	if _, ok := raw["code"]; ok {
		if err := json.Unmarshal(body, &pe); err == nil && pe.Code != nil && *pe.Code == -1 {
			msg := pe.Msg
			if msg == "" {
				msg = "connection refused"
			}
			return apperr.Connection(op, baseURL, status, errors.New(msg))
		}
	}

	if status >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		if e.Error == "" {
			e.Error = http.StatusText(status)
		}
		return apperr.Connection(op, baseURL, status, errors.New(e.Error))
	}
	return nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// normalizeURL prepares baseURL for joining request paths. Errors keep the
// caller's baseURL as given.
func normalizeURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
