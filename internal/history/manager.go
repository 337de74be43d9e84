// Package history keeps the per-document chat transcript.
//
// The Manager owns one live conversation, the one belonging to the current
// document. Mutations schedule a debounced save keyed to the document that
// was current at the time of the call. Switching documents flushes pending
// edits of the outgoing document, waits for in-flight saves, loads the
// incoming document and only then changes the current identity, so the live
// conversation never mixes turns from two documents.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/conversation"
	"github.com/fyrsmithlabs/ragassistant/internal/debounce"
	"github.com/fyrsmithlabs/ragassistant/internal/metrics"
	"github.com/fyrsmithlabs/ragassistant/internal/storage"
)

// KeyPrefix prefixes the storage key of every transcript.
const KeyPrefix = "chat-history_"

// DefaultSaveDebounce is the coalescing window for saves.
const DefaultSaveDebounce = 300 * time.Millisecond

// ErrNotCurrent is returned by Save for a document that is not loaded.
var ErrNotCurrent = errors.New("document is not the current document")

// Key returns the storage key for a document's transcript.
func Key(documentID string) string {
	return KeyPrefix + documentID
}

// Config configures a Manager.
type Config struct {
	SaveDebounce time.Duration
	SaveTimeout  time.Duration // bound on a debounced save; 0 means 10s
}

// Manager is the conversation history manager.
type Manager struct {
	store     storage.Store
	logger    *zap.Logger
	metrics   *metrics.Metrics
	debouncer *debounce.Debouncer
	saveTO    time.Duration

	mu       sync.Mutex // guards messages, current, dirty
	messages conversation.Conversation
	current  string
	dirty    bool

	saveMu   sync.Mutex // serializes persistence and switch loads
	switchMu sync.Mutex // serializes SwitchTo and Load
}

// NewManager creates a manager with no current document.
func NewManager(store storage.Store, logger *zap.Logger, cfg Config) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.SaveDebounce
	if window <= 0 {
		window = DefaultSaveDebounce
	}
	saveTO := cfg.SaveTimeout
	if saveTO <= 0 {
		saveTO = 10 * time.Second
	}

	m := &Manager{
		store:    store,
		logger:   logger,
		metrics:  metrics.Default(),
		saveTO:   saveTO,
		messages: conversation.Conversation{},
	}
	m.debouncer = debounce.New(window, m.debouncedSave)
	return m
}

// Messages returns a copy of the live conversation.
func (m *Manager) Messages() conversation.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages.Clone()
}

// CurrentDocument returns the document the live conversation belongs to.
func (m *Manager) CurrentDocument() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Append adds a message and schedules a save for the current document.
func (m *Manager) Append(msg conversation.Message) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.dirty = true
	docID := m.current
	m.mu.Unlock()

	m.schedule(docID)
}

// Clear empties the live conversation and schedules a save.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.messages = conversation.Conversation{}
	m.dirty = true
	docID := m.current
	m.mu.Unlock()

	m.schedule(docID)
}

func (m *Manager) schedule(docID string) {
	if docID == "" {
		return
	}
	m.debouncer.Schedule(docID)
}

func (m *Manager) debouncedSave(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.saveTO)
	defer cancel()

	err := m.Save(ctx, docID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotCurrent):
		m.logger.Debug("skipping save for document no longer current", zap.String("document_id", docID))
	default:
		m.logger.Error("debounced history save failed", zap.String("document_id", docID), zap.Error(err))
	}
}

// Save persists the live conversation under documentID. Concurrent calls
// are serialized; each writes the conversation as it is when its turn comes.
func (m *Manager) Save(ctx context.Context, documentID string) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	if documentID == "" || documentID != m.current {
		m.mu.Unlock()
		return ErrNotCurrent
	}
	snapshot := m.messages.Clone()
	m.dirty = false
	m.mu.Unlock()

	if err := m.persistLocked(ctx, documentID, snapshot); err != nil {
		m.mu.Lock()
		if m.current == documentID {
			m.dirty = true
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// persistLocked writes a conversation. saveMu must be held.
func (m *Manager) persistLocked(ctx context.Context, documentID string, conv conversation.Conversation) error {
	blob, err := conversation.Encode(conv)
	if err != nil {
		m.metrics.HistorySavesTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := m.store.Save(ctx, Key(documentID), blob); err != nil {
		m.metrics.HistorySavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("saving history for %s: %w", documentID, err)
	}
	m.metrics.HistorySavesTotal.WithLabelValues("ok").Inc()
	m.logger.Debug("history saved",
		zap.String("document_id", documentID),
		zap.Int("messages", len(conv)))
	return nil
}

// read returns the persisted conversation, or an empty one when it is
// absent or unreadable.
func (m *Manager) read(ctx context.Context, documentID string) conversation.Conversation {
	if documentID == "" {
		return conversation.Conversation{}
	}

	blob, err := m.store.Load(ctx, Key(documentID))
	if errors.Is(err, storage.ErrNotFound) {
		m.metrics.HistoryLoadsTotal.WithLabelValues("missing").Inc()
		return conversation.Conversation{}
	}
	if err != nil {
		m.metrics.HistoryLoadsTotal.WithLabelValues("error").Inc()
		m.logger.Warn("failed to load history", zap.String("document_id", documentID), zap.Error(err))
		return conversation.Conversation{}
	}

	conv, res, err := conversation.Decode(blob)
	if err != nil {
		m.metrics.HistoryLoadsTotal.WithLabelValues("error").Inc()
		m.logger.Warn("discarding unreadable history", zap.String("document_id", documentID), zap.Error(err))
		return conversation.Conversation{}
	}
	if res.ErrorCount > 0 {
		m.logger.Warn("dropped malformed history entries",
			zap.String("document_id", documentID),
			zap.Int("count", res.ErrorCount))
	}
	m.metrics.HistoryLoadsTotal.WithLabelValues("ok").Inc()
	return conv
}

// Load replaces the live conversation with the persisted one for
// documentID. Loading a document other than the current one is a switch.
func (m *Manager) Load(ctx context.Context, documentID string) {
	if documentID != m.CurrentDocument() {
		m.SwitchTo(ctx, documentID)
		return
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.debouncer.FlushNow()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	loaded := m.read(ctx, documentID)
	m.mu.Lock()
	m.messages = loaded
	m.dirty = false
	m.mu.Unlock()
}

// SwitchTo makes documentID current. An empty documentID clears the live
// conversation without loading anything.
//
// Pending edits of the outgoing document are written before the new
// document is loaded.
func (m *Manager) SwitchTo(ctx context.Context, documentID string) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	outgoing := m.CurrentDocument()

	// Runs the pending save for the outgoing document, if any, and waits
	// for a debounced save already in flight.
	m.debouncer.FlushNow()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	loaded := m.read(ctx, documentID)

	m.mu.Lock()
	var leftover conversation.Conversation
	if m.dirty && m.current != "" {
		// Edits that raced the flush above.
		leftover = m.messages.Clone()
	}
	leftoverID := m.current
	m.messages = loaded
	m.dirty = false
	m.current = documentID
	m.mu.Unlock()

	if leftover != nil {
		if err := m.persistLocked(ctx, leftoverID, leftover); err != nil {
			m.logger.Error("failed to save outgoing history", zap.String("document_id", leftoverID), zap.Error(err))
		}
	}

	m.metrics.HistorySwitchTotal.Inc()
	m.logger.Debug("history switched",
		zap.String("from", outgoing),
		zap.String("to", documentID),
		zap.Int("messages", len(loaded)))
}

// AppendTo adds messages to documentID's transcript whether or not it is
// current. A reply that arrives after the user moved to another document
// lands in the document it was asked on.
func (m *Manager) AppendTo(ctx context.Context, documentID string, msgs ...conversation.Message) error {
	if documentID == "" || len(msgs) == 0 {
		return nil
	}

	m.saveMu.Lock()

	m.mu.Lock()
	if documentID == m.current {
		m.messages = append(m.messages, msgs...)
		m.dirty = true
		m.mu.Unlock()
		m.saveMu.Unlock()
		m.schedule(documentID)
		return nil
	}
	m.mu.Unlock()
	defer m.saveMu.Unlock()

	conv := m.read(ctx, documentID)
	conv = append(conv, msgs...)
	return m.persistLocked(ctx, documentID, conv)
}

// Close writes any pending save and stops scheduling new ones.
func (m *Manager) Close() {
	m.debouncer.Stop()
}
