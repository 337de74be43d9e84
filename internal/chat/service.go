// Package chat runs chat turns: it checks settings, records the user's
// message, builds the prompt against the active document, calls the model
// and stores the reply with the document the question was asked on.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/apperr"
	"github.com/fyrsmithlabs/ragassistant/internal/conversation"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/logging"
	"github.com/fyrsmithlabs/ragassistant/internal/metrics"
	"github.com/fyrsmithlabs/ragassistant/internal/ollama"
	"github.com/fyrsmithlabs/ragassistant/internal/prompt"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
)

var (
	// ErrBusy is returned by Submit while another turn is awaiting the model.
	ErrBusy = errors.New("a chat turn is already in progress")
	// ErrEmptyMessage is returned by Submit for a blank message.
	ErrEmptyMessage = errors.New("message is empty")
)

// ConnectionErrorMessage is the user-facing text for an unreachable backend.
func ConnectionErrorMessage(url string) string {
	return fmt.Sprintf("Ollama does not respond on %s. Please ensure Ollama is running and the URL is correct.", url)
}

// ModelClient is the model backend.
type ModelClient interface {
	ListModels(ctx context.Context, baseURL string) ([]ollama.Model, error)
	Chat(ctx context.Context, baseURL, model string, messages conversation.Conversation, temperature float64) (string, error)
}

// PromptBuilder assembles a turn against a pinned document.
type PromptBuilder interface {
	BuildFor(ctx context.Context, userMessage string, s settings.Settings, target prompt.Target) prompt.Assembly
}

// History is the per-document conversation history.
type History interface {
	Messages() conversation.Conversation
	CurrentDocument() string
	Append(msg conversation.Message)
	Clear()
	AppendTo(ctx context.Context, documentID string, msgs ...conversation.Message) error
	SwitchTo(ctx context.Context, documentID string)
}

// Reply is a completed turn.
type Reply struct {
	ID         string      `json:"id"`
	Content    string      `json:"reply"`
	Mode       prompt.Mode `json:"mode"`
	DocumentID string      `json:"document_id,omitempty"`
}

// Status is a snapshot of the service state shown next to the chat input.
type Status struct {
	Configured      bool   `json:"configured"`
	Loading         bool   `json:"loading"`
	ConnectionError string `json:"connection_error,omitempty"`
}

// Config configures the service.
type Config struct {
	// SwitchQueue is the capacity of the context change queue.
	SwitchQueue int
}

// Service runs chat turns. It is safe for concurrent use; at most one turn
// is awaiting the model at any time.
type Service struct {
	settings settings.Provider
	context  prompt.ContextSource
	history  History
	builder  PromptBuilder
	model    ModelClient
	logger   *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	inFlight atomic.Bool

	mu              sync.Mutex // guards configured, connectionError
	configured      bool
	connectionError string

	// switchMu serializes history switches with the append+snapshot step of
	// Submit so a turn never mixes two documents' transcripts.
	switchMu sync.Mutex
	switches chan struct{}
}

// NewService creates a service. Call Run to start applying context changes.
func NewService(
	provider settings.Provider,
	ctxSource prompt.ContextSource,
	history History,
	builder PromptBuilder,
	model ModelClient,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SwitchQueue <= 0 {
		cfg.SwitchQueue = 1
	}
	return &Service{
		settings: provider,
		context:  ctxSource,
		history:  history,
		builder:  builder,
		model:    model,
		logger:   logger,
		metrics:  metrics.Default(),
		tracer:   otel.Tracer("github.com/fyrsmithlabs/ragassistant/internal/chat"),
		switches: make(chan struct{}, cfg.SwitchQueue),
	}
}

// Submit runs one chat turn for userMessage.
//
// Errors are *apperr.Error values for configuration, connection and protocol
// failures, or ErrBusy / ErrEmptyMessage.
func (s *Service) Submit(ctx context.Context, userMessage string) (*Reply, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrEmptyMessage
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inFlight.Store(false)

	ctx, span := s.tracer.Start(ctx, "chat.Submit")
	defer span.End()

	st, err := s.settings.Get(ctx)
	if err != nil {
		s.setConfigured(false)
		return nil, s.fail(span, apperr.Configuration("submit", fmt.Errorf("failed to read settings: %w", err)))
	}
	if !st.Configured() {
		s.setConfigured(false)
		return nil, s.fail(span, apperr.Configuration("submit", errors.New("ollama url or model not configured")))
	}
	s.setConfigured(true)

	// Pin the turn to the active document: the question, the transcript
	// and the embedded content all come from the same snapshot.
	s.switchMu.Lock()
	target := s.reconcileLocked(ctx)
	documentID := target.Context.DocumentID
	s.history.Append(conversation.UserMessage(userMessage))
	transcript := s.history.Messages()
	s.switchMu.Unlock()
	ctx = logging.WithDocumentID(ctx, documentID)

	assembly := s.builder.BuildFor(ctx, userMessage, st, target)
	messages := prompt.PrepareMessages(transcript, assembly, userMessage)

	span.SetAttributes(
		attribute.String("chat.mode", string(assembly.Mode)),
		attribute.String("document.id", documentID),
		attribute.Int("chat.messages", len(messages)),
	)

	mode := string(assembly.Mode)
	s.metrics.ChatInFlight.Inc()
	start := time.Now()
	content, err := s.model.Chat(ctx, st.ServerURL, st.SelectedModel, messages, st.Temperature)
	s.metrics.ChatDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	s.metrics.ChatInFlight.Dec()

	if err != nil {
		s.metrics.ChatRequestsTotal.WithLabelValues(mode, apperr.KindOf(err).String()).Inc()
		if apperr.KindOf(err) == apperr.KindConnection {
			s.setConnectionError(ConnectionErrorMessage(apperr.URLOf(err)))
		}
		s.CheckConfiguration(ctx)
		s.logger.Warn("chat turn failed", append(logging.ContextFields(ctx),
			zap.String("mode", mode),
			zap.Error(err))...)
		return nil, s.fail(span, err)
	}

	s.metrics.ChatRequestsTotal.WithLabelValues(mode, "ok").Inc()
	s.setConnectionError("")

	reply := conversation.AssistantMessage(content)
	if documentID != "" {
		if err := s.history.AppendTo(ctx, documentID, reply); err != nil {
			s.logger.Error("failed to record reply", append(logging.ContextFields(ctx), zap.Error(err))...)
		}
	} else {
		s.switchMu.Lock()
		if s.history.CurrentDocument() == "" {
			s.history.Append(reply)
		}
		s.switchMu.Unlock()
	}

	return &Reply{
		ID:         uuid.NewString(),
		Content:    content,
		Mode:       assembly.Mode,
		DocumentID: documentID,
	}, nil
}

// CheckConfiguration re-reads settings and records whether a backend URL
// and a model are set.
func (s *Service) CheckConfiguration(ctx context.Context) bool {
	st, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("failed to read settings", zap.Error(err))
		s.setConfigured(false)
		return false
	}
	ok := st.Configured()
	s.setConfigured(ok)
	return ok
}

// CheckConnection probes the backend by listing models. Only connection
// failures are recorded; any other outcome clears the connection error.
func (s *Service) CheckConnection(ctx context.Context) {
	st, err := s.settings.Get(ctx)
	if err != nil || strings.TrimSpace(st.ServerURL) == "" {
		s.setConnectionError("")
		return
	}

	_, err = s.model.ListModels(ctx, st.ServerURL)
	if apperr.KindOf(err) == apperr.KindConnection {
		s.setConnectionError(ConnectionErrorMessage(apperr.URLOf(err)))
		s.logger.Debug("connection check failed", zap.Error(err))
		return
	}
	if err != nil {
		s.logger.Debug("non-connection error during check", zap.Error(err))
	}
	s.setConnectionError("")
}

// ListModels lists the models on the configured backend. An unset URL
// yields an empty list.
func (s *Service) ListModels(ctx context.Context) ([]ollama.Model, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperr.Configuration("list models", err)
	}
	models, err := s.model.ListModels(ctx, st.ServerURL)
	if apperr.KindOf(err) == apperr.KindConnection {
		s.setConnectionError(ConnectionErrorMessage(apperr.URLOf(err)))
	}
	return models, err
}

// History brings the history up to date with the active document and
// returns that document's ID and transcript.
func (s *Service) History(ctx context.Context) (string, conversation.Conversation) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	target := s.reconcileLocked(ctx)
	return target.Context.DocumentID, s.history.Messages()
}

// ClearHistory empties the active document's transcript and returns its ID.
// A switch still queued for the worker is applied first, so the clear never
// lands on the previous document.
func (s *Service) ClearHistory(ctx context.Context) string {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	target := s.reconcileLocked(ctx)
	s.history.Clear()
	s.logger.Debug("history cleared", zap.String("document_id", target.Context.DocumentID))
	return target.Context.DocumentID
}

// Status returns a snapshot of the service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Configured:      s.configured,
		Loading:         s.inFlight.Load(),
		ConnectionError: s.connectionError,
	}
}

// ClearConnectionError forgets the last connection failure.
func (s *Service) ClearConnectionError() {
	s.setConnectionError("")
}

// HandleContextChange queues a history switch. It never blocks, so it can
// be registered directly as a context store observer.
func (s *Service) HandleContextChange(c doccontext.Context) {
	select {
	case s.switches <- struct{}{}:
	default:
		// A queued wake-up already covers this change.
	}
	s.logger.Debug("context change queued", zap.String("document_id", c.DocumentID))
}

// Run applies queued context changes until ctx is done. Each wake-up brings
// the history to the context store's current document, so coalesced
// changes still end on the latest document.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.switches:
			s.switchMu.Lock()
			s.reconcileLocked(ctx)
			s.switchMu.Unlock()
		}
	}
}

// reconcileLocked switches the history to the active document if it is on
// another one and returns the snapshot it reconciled to. Caller holds
// switchMu.
func (s *Service) reconcileLocked(ctx context.Context) prompt.Target {
	active, gen := s.context.Snapshot()
	if s.history.CurrentDocument() != active.DocumentID {
		s.history.SwitchTo(ctx, active.DocumentID)
	}
	return prompt.Target{Context: active, Generation: gen}
}

func (s *Service) setConfigured(v bool) {
	s.mu.Lock()
	s.configured = v
	s.mu.Unlock()
}

func (s *Service) setConnectionError(msg string) {
	s.mu.Lock()
	s.connectionError = msg
	s.mu.Unlock()
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
