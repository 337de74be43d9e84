// Package prompt turns a user question into the message sequence sent to
// the model.
//
// The Assembler decides per turn whether the active document's content is
// embedded. It picks exactly one of two system prompts: the general prompt
// for context-free turns, or the document prompt when content was embedded.
// PrepareMessages merges the result with prior turns without ever producing
// two system messages.
package prompt

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/conversation"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
)

// Mode identifies the system prompt variant of a turn.
type Mode string

const (
	ModeGeneral  Mode = "general"
	ModeDocument Mode = "document"
)

// ContentSource fetches document text. Implementations fail soft: any error
// is reported as ok=false.
type ContentSource interface {
	DocumentMarkdown(ctx context.Context, documentID string) (string, bool)
	DocumentLocation(ctx context.Context, documentID string) (notebook, path string, ok bool)
	SubDocumentsContent(ctx context.Context, notebook, path string, enabled bool) (string, bool)
}

// ContextSource exposes the active document.
type ContextSource interface {
	Snapshot() (doccontext.Context, uint64)
	Generation() uint64
}

// Target pins a turn to a document and the context generation it was
// observed under.
type Target struct {
	Context    doccontext.Context
	Generation uint64
}

// Assembly is the outcome of building one turn.
type Assembly struct {
	ContextualMessage string
	System            conversation.Message
	Mode              Mode
	DocumentID        string // document the turn was built against, empty in general mode
	Generation        uint64 // context generation observed at build time
}

// Assembler builds turns.
type Assembler struct {
	context ContextSource
	content ContentSource
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewAssembler creates an assembler.
func NewAssembler(ctxSource ContextSource, content ContentSource, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		context: ctxSource,
		content: content,
		logger:  logger,
		tracer:  otel.Tracer("github.com/fyrsmithlabs/ragassistant/internal/prompt"),
	}
}

// Build assembles a turn against whichever document is active now.
func (a *Assembler) Build(ctx context.Context, userMessage string, s settings.Settings) Assembly {
	dc, gen := a.context.Snapshot()
	return a.BuildFor(ctx, userMessage, s, Target{Context: dc, Generation: gen})
}

// BuildFor assembles the contextual user message for target and selects the
// system prompt. Content is fetched for target's document only; if the
// active document moves on before the fetch completes, the content is
// dropped and the turn is built context-free.
func (a *Assembler) BuildFor(ctx context.Context, userMessage string, s settings.Settings, target Target) Assembly {
	ctx, span := a.tracer.Start(ctx, "prompt.Build")
	defer span.End()

	dc, gen := target.Context, target.Generation

	general := Assembly{
		ContextualMessage: userMessage,
		System:            conversation.SystemMessage(GeneralSystemPrompt),
		Mode:              ModeGeneral,
		Generation:        gen,
	}

	if !dc.HasContext() || s.ContextFree {
		span.SetAttributes(attribute.String("prompt.mode", string(ModeGeneral)))
		return general
	}
	if a.superseded(span, dc.DocumentID, gen) {
		return general
	}

	main, hasMain := a.content.DocumentMarkdown(ctx, dc.DocumentID)

	var sub string
	var hasSub bool
	if s.IncludeSubDocuments {
		if notebook, path, ok := a.content.DocumentLocation(ctx, dc.DocumentID); ok {
			sub, hasSub = a.content.SubDocumentsContent(ctx, notebook, path, true)
		}
	}

	// The document may have changed while its content was in flight.
	if a.superseded(span, dc.DocumentID, gen) {
		return general
	}

	if !hasMain && !hasSub {
		a.logger.Debug("no document content, answering without context",
			zap.String("document_id", dc.DocumentID))
		span.SetAttributes(attribute.String("prompt.mode", string(ModeGeneral)))
		return general
	}

	content := main
	if hasSub {
		content += SubDocumentsHeading + sub
	}

	span.SetAttributes(
		attribute.String("prompt.mode", string(ModeDocument)),
		attribute.Int("prompt.content_bytes", len(content)),
		attribute.Bool("prompt.sub_documents", hasSub),
	)
	return Assembly{
		ContextualMessage: ContextualMessage(content, userMessage),
		System:            conversation.SystemMessage(DocumentSystemPrompt),
		Mode:              ModeDocument,
		DocumentID:        dc.DocumentID,
		Generation:        gen,
	}
}

// superseded reports whether the active document has moved past gen.
func (a *Assembler) superseded(span trace.Span, documentID string, gen uint64) bool {
	now := a.context.Generation()
	if now == gen {
		return false
	}
	a.logger.Debug("discarding content of superseded document",
		zap.String("document_id", documentID),
		zap.Uint64("generation", gen),
		zap.Uint64("current_generation", now))
	span.SetAttributes(
		attribute.String("prompt.mode", string(ModeGeneral)),
		attribute.Bool("prompt.stale", true),
	)
	return true
}

// PrepareMessages returns the sequence to send: prior turns, with the last
// user turn replaced by the contextual message when one was built, and the
// assembly's system prompt in the first system slot. An existing system
// message is replaced in place; extra system messages are dropped.
func PrepareMessages(history conversation.Conversation, a Assembly, userMessage string) conversation.Conversation {
	out := make(conversation.Conversation, 0, len(history)+1)
	systemPlaced := false
	for _, m := range history {
		if m.Role != conversation.RoleSystem {
			out = append(out, m)
			continue
		}
		if !systemPlaced {
			out = append(out, a.System)
			systemPlaced = true
		}
	}

	if a.ContextualMessage != userMessage {
		if last, ok := out.Last(); ok && last.Role == conversation.RoleUser {
			out[len(out)-1] = conversation.UserMessage(a.ContextualMessage)
		} else {
			out = append(out, conversation.UserMessage(a.ContextualMessage))
		}
	}

	if !systemPlaced {
		out = append(conversation.Conversation{a.System}, out...)
	}
	return out
}
