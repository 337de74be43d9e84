package doccontext

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubject is the NATS subject document changes are published on.
const DefaultSubject = "ragassistant.context.switched"

// SwitchedEvent is the message published for every document change.
type SwitchedEvent struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id,omitempty"`
	DocumentName string    `json:"document_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher forwards document changes to NATS so other local tools can react
// to the editor's focus.
type Publisher struct {
	nats    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a publisher. An empty subject uses DefaultSubject.
func NewPublisher(nc *nats.Conn, subject string, logger *zap.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nats: nc, subject: subject, logger: logger}
}

// Attach subscribes the publisher to store changes.
func (p *Publisher) Attach(store *Store) (detach func()) {
	return store.Subscribe(p.Publish)
}

// Publish sends one change event. Failures are logged; the editor keeps
// working without the bus.
func (p *Publisher) Publish(c Context) {
	ev := SwitchedEvent{
		ID:           uuid.New().String(),
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		Timestamp:    c.LastUpdateTime,
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("failed to marshal context event", zap.Error(err))
		return
	}

	if err := p.nats.Publish(p.subject, data); err != nil {
		p.logger.Warn("failed to publish context event",
			zap.String("subject", p.subject),
			zap.Error(err))
	}
}
