package doccontext

import (
	"context"

	"go.uber.org/zap"
)

// SwitchEvent is the payload the editor emits when the user opens or focuses
// a document.
type SwitchEvent struct {
	Protyle struct {
		Block struct {
			RootID string `json:"rootID"`
			ID     string `json:"id"`
		} `json:"block"`
	} `json:"protyle"`
	// Name is optional; it is resolved from the block when empty.
	Name string `json:"name,omitempty"`
}

// DocumentID returns the root document of the focused block, falling back to
// the block itself. Listener resolves the real root when only a block ID is
// present.
func (e SwitchEvent) DocumentID() string {
	if e.Protyle.Block.RootID != "" {
		return e.Protyle.Block.RootID
	}
	return e.Protyle.Block.ID
}

// NewSwitchEvent builds an event for a block. Mostly useful in tests and the
// CLI.
func NewSwitchEvent(rootID, blockID, name string) SwitchEvent {
	var ev SwitchEvent
	ev.Protyle.Block.RootID = rootID
	ev.Protyle.Block.ID = blockID
	ev.Name = name
	return ev
}

// Resolver looks up document metadata. Implementations return an empty
// string when the answer cannot be determined.
type Resolver interface {
	DocumentName(ctx context.Context, documentID string) string
	RootDocument(ctx context.Context, blockID string) string
}

// Listener applies editor switch events to a Store.
type Listener struct {
	store    *Store
	resolver Resolver
	logger   *zap.Logger
}

// NewListener creates a listener. resolver may be nil.
func NewListener(store *Store, resolver Resolver, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{store: store, resolver: resolver, logger: logger}
}

// HandleSwitch updates the store from an event. Events without a block ID are
// ignored and reported as false.
func (l *Listener) HandleSwitch(ctx context.Context, ev SwitchEvent) bool {
	docID := ev.DocumentID()
	if docID == "" {
		l.logger.Warn("ignoring switch event without block id")
		return false
	}
	if ev.Protyle.Block.RootID == "" && l.resolver != nil {
		if root := l.resolver.RootDocument(ctx, docID); root != "" {
			docID = root
		} else {
			l.logger.Debug("root lookup failed, using block id", zap.String("block_id", docID))
		}
	}

	name := ev.Name
	if name == "" && l.resolver != nil {
		name = l.resolver.DocumentName(ctx, docID)
	}

	l.logger.Debug("document switched",
		zap.String("document_id", docID),
		zap.String("document_name", name))
	l.store.Update(docID, name)
	return true
}
