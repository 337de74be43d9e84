// Package siyuan is a client for the note editor's kernel HTTP API.
//
// Only the endpoints the assistant needs are covered: markdown export,
// block lookup, child document listing and plugin file storage. All calls
// are POSTs that answer with a {code, msg, data} envelope; a non-zero code
// is returned as an *APIError.
package siyuan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "http://127.0.0.1:6806"
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 20.0
	defaultBurst     = 5
	maxResponseSize  = 32 * 1024 * 1024
)

// ErrNotFound is returned when a block or file does not exist.
var ErrNotFound = errors.New("not found")

// idPattern matches editor block IDs (e.g., 20240101120000-abcdefg).
var idPattern = regexp.MustCompile(`^[0-9]{14}-[0-9a-z]{7}$`)

// ValidID reports whether id looks like an editor block ID.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// APIError is a non-zero envelope code.
type APIError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("siyuan %s: code %d: %s", e.Endpoint, e.Code, e.Msg)
}

// Config configures the client.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables pacing
	Burst     int
}

// Client calls the editor kernel API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a client. Zero config values take defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// ExportResult is the markdown export of a document.
type ExportResult struct {
	HPath   string `json:"hPath"`
	Content string `json:"content"`
}

// Block is a row of the blocks table.
type Block struct {
	ID      string `json:"id"`
	RootID  string `json:"root_id"`
	Box     string `json:"box"`
	Path    string `json:"path"`
	HPath   string `json:"hpath"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// DocFile is one entry of a document listing.
type DocFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Alias        string `json:"alias"`
	Path         string `json:"path"`
	SubFileCount int    `json:"subFileCount"`
}

// ListResult is a document listing.
type ListResult struct {
	Box   string    `json:"box"`
	Path  string    `json:"path"`
	Files []DocFile `json:"files"`
}

// ExportMarkdown exports a document as markdown.
func (c *Client) ExportMarkdown(ctx context.Context, id string) (*ExportResult, error) {
	var out ExportResult
	if err := c.post(ctx, "/api/export/exportMdContent", map[string]string{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlock looks a block up by ID. It returns ErrNotFound when no row
// matches.
func (c *Client) GetBlock(ctx context.Context, id string) (*Block, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("invalid block id %q", id)
	}
	stmt := fmt.Sprintf("SELECT * FROM blocks WHERE id = '%s'", id)

	var rows []Block
	if err := c.post(ctx, "/api/query/sql", map[string]string{"stmt": stmt}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// ListDocsByPath lists the child documents at path in a notebook.
func (c *Client) ListDocsByPath(ctx context.Context, notebook, path string) (*ListResult, error) {
	var out ListResult
	body := map[string]string{"notebook": notebook, "path": path}
	if err := c.post(ctx, "/api/filetree/listDocsByPath", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFile reads a file from the workspace. Missing files yield ErrNotFound.
func (c *Client) GetFile(ctx context.Context, path string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, "/api/file/getFile", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The kernel answers 200 with the raw file, or a JSON envelope with a
	// non-200 status when the file is missing or unreadable.
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Code != 0 {
		if env.Code == http.StatusNotFound {
			return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
		}
		return nil, &APIError{Endpoint: "/api/file/getFile", Code: env.Code, Msg: env.Msg}
	}
	return nil, fmt.Errorf("siyuan /api/file/getFile: unexpected status %d", resp.StatusCode)
}

// PutFile writes a file to the workspace, creating parent directories.
func (c *Client) PutFile(ctx context.Context, path string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"path":    path,
		"isDir":   "false",
		"modTime": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("file", lastSegment(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	resp, err := c.do(ctx, "/api/file/putFile", w.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope("/api/file/putFile", resp, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(endpoint, resp, out)
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siyuan %s: request failed: %w", endpoint, err)
	}
	c.logger.Debug("siyuan request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

func decodeEnvelope(endpoint string, resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("siyuan %s: unexpected status %d: %s", endpoint, resp.StatusCode, truncate(body, 200))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("siyuan %s: failed to parse response: %w", endpoint, err)
	}
	if env.Code != 0 {
		return &APIError{Endpoint: endpoint, Code: env.Code, Msg: env.Msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("siyuan %s: failed to parse data: %w", endpoint, err)
	}
	return nil
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
