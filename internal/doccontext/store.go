// Package doccontext tracks which document is open in the editor.
//
// The Store is the single source of truth for the active document. It is
// written by the host's document-switch event and read by the prompt
// assembler and chat service. Observers registered with Subscribe are told
// about document changes only; a repeated event for the document that is
// already active does not notify anyone.
package doccontext

import (
	"sync"
	"time"
)

// Context is an immutable snapshot of the active document.
type Context struct {
	DocumentID     string    `json:"document_id,omitempty"`
	DocumentName   string    `json:"document_name,omitempty"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

// HasContext reports whether a document is active.
func (c Context) HasContext() bool {
	return c.DocumentID != ""
}

// Observer receives the new context after the active document changes.
type Observer func(Context)

// Store holds the active document context.
//
// Observers run synchronously on the updating goroutine, in registration
// order. They must not call Update.
type Store struct {
	mu           sync.RWMutex
	current      Context
	lastNotified string
	generation   uint64
	observers    map[int]Observer
	order        []int
	nextID       int

	// notifyMu serializes update+notify so observers see changes in the
	// order they were applied.
	notifyMu sync.Mutex
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for LastUpdateTime.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store with no active document.
func NewStore(opts ...Option) *Store {
	s := &Store{
		observers: make(map[int]Observer),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the context wholesale and stamps LastUpdateTime. Observers
// are notified only if documentID differs from the last notified document.
func (s *Store) Update(documentID, documentName string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = Context{
		DocumentID:     documentID,
		DocumentName:   documentName,
		LastUpdateTime: s.now(),
	}
	changed := documentID != s.lastNotified
	var observers []Observer
	if changed {
		s.lastNotified = documentID
		s.generation++
		observers = make([]Observer, 0, len(s.order))
		for _, id := range s.order {
			observers = append(observers, s.observers[id])
		}
	}
	snapshot := s.current
	s.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}

// Get returns a copy of the current context.
func (s *Store) Get() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// HasContext reports whether a document is active.
func (s *Store) HasContext() bool {
	return s.Get().HasContext()
}

// Generation returns a counter that increases on every document change.
// Work started under one generation is stale once the counter moves on.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns the current context together with its generation, read
// under one lock so the pair is consistent.
func (s *Store) Snapshot() (Context, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.generation
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = obs
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
