// Package content resolves documents to markdown text.
//
// Every method fails soft. Errors from the editor API are logged and counted
// and the caller sees "absent" (ok=false), so a content problem degrades a
// chat turn to a context-free answer instead of aborting it.
package content

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/apperr"
	"github.com/fyrsmithlabs/ragassistant/internal/metrics"
	"github.com/fyrsmithlabs/ragassistant/internal/siyuan"
)

// SectionSeparator separates rendered sub-documents.
const SectionSeparator = "\n\n---\n\n"

// untitled names a sub-document with neither alias nor name.
const untitled = "Untitled"

// API is the subset of the editor client the fetcher uses.
type API interface {
	ExportMarkdown(ctx context.Context, id string) (*siyuan.ExportResult, error)
	GetBlock(ctx context.Context, id string) (*siyuan.Block, error)
	ListDocsByPath(ctx context.Context, notebook, path string) (*siyuan.ListResult, error)
}

// SubDocument is a child document entry.
type SubDocument struct {
	ID    string
	Name  string
	Alias string
}

// Title is the alias, else the name, else "Untitled".
func (d SubDocument) Title() string {
	if d.Alias != "" {
		return d.Alias
	}
	if name := strings.TrimSuffix(d.Name, ".sy"); name != "" {
		return name
	}
	return untitled
}

// Block is document metadata.
type Block struct {
	ID      string
	RootID  string
	Box     string
	Path    string
	Content string
}

// Fetcher reads document content through the editor API.
type Fetcher struct {
	api     API
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewFetcher creates a fetcher.
func NewFetcher(api API, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		api:     api,
		logger:  logger,
		metrics: metrics.Default(),
		tracer:  otel.Tracer("github.com/fyrsmithlabs/ragassistant/internal/content"),
	}
}

// DocumentMarkdown returns a document's markdown. Empty content counts as
// absent.
func (f *Fetcher) DocumentMarkdown(ctx context.Context, documentID string) (string, bool) {
	ctx, span := f.tracer.Start(ctx, "content.DocumentMarkdown",
		trace.WithAttributes(attribute.String("document.id", documentID)))
	defer span.End()

	if documentID == "" {
		return "", false
	}

	res, err := f.api.ExportMarkdown(ctx, documentID)
	if err != nil {
		f.fail(span, "document", documentID, err)
		return "", false
	}
	if res == nil || res.Content == "" {
		f.metrics.ContentFetchTotal.WithLabelValues("document", "empty").Inc()
		return "", false
	}

	f.metrics.ContentFetchTotal.WithLabelValues("document", "ok").Inc()
	span.SetAttributes(attribute.Int("content.bytes", len(res.Content)))
	return res.Content, true
}

// BlockInfo returns metadata for a block or document.
func (f *Fetcher) BlockInfo(ctx context.Context, id string) (Block, bool) {
	if id == "" {
		return Block{}, false
	}
	b, err := f.api.GetBlock(ctx, id)
	if err != nil {
		if !errors.Is(err, siyuan.ErrNotFound) {
			f.logger.Warn("block lookup failed",
				zap.String("block_id", id),
				zap.Error(apperr.ContentFetch("get block", err)))
		}
		return Block{}, false
	}
	return Block{ID: b.ID, RootID: b.RootID, Box: b.Box, Path: b.Path, Content: b.Content}, true
}

// RootDocument returns the document that contains blockID. A block with no
// recorded root is its own document. It returns "" when the lookup fails.
func (f *Fetcher) RootDocument(ctx context.Context, blockID string) string {
	b, ok := f.BlockInfo(ctx, blockID)
	if !ok {
		return ""
	}
	if b.RootID != "" {
		return b.RootID
	}
	return b.ID
}

// DocumentLocation returns the notebook and path of a document.
func (f *Fetcher) DocumentLocation(ctx context.Context, documentID string) (string, string, bool) {
	b, ok := f.BlockInfo(ctx, documentID)
	if !ok || b.Box == "" || b.Path == "" {
		return "", "", false
	}
	return b.Box, b.Path, true
}

// DocumentName resolves a document's display name from its block content.
// It returns "" when the lookup fails.
func (f *Fetcher) DocumentName(ctx context.Context, documentID string) string {
	b, ok := f.BlockInfo(ctx, documentID)
	if !ok {
		return ""
	}
	return b.Content
}

// ListSubDocuments lists the child documents at path.
func (f *Fetcher) ListSubDocuments(ctx context.Context, notebookID, path string) ([]SubDocument, bool) {
	res, err := f.api.ListDocsByPath(ctx, notebookID, path)
	if err != nil {
		f.fail(trace.SpanFromContext(ctx), "list", path, err)
		return nil, false
	}
	if res == nil {
		f.metrics.ContentFetchTotal.WithLabelValues("list", "empty").Inc()
		return nil, false
	}

	docs := make([]SubDocument, 0, len(res.Files))
	for _, file := range res.Files {
		docs = append(docs, SubDocument{ID: file.ID, Name: file.Name, Alias: file.Alias})
	}
	f.metrics.ContentFetchTotal.WithLabelValues("list", "ok").Inc()
	return docs, true
}

// SubDocumentsContent renders every child document at path, in listing
// order, as "## <title>\n\n<markdown>" sections joined by SectionSeparator.
// Children are fetched one at a time; a child that fails is skipped. With
// enabled=false nothing is fetched.
func (f *Fetcher) SubDocumentsContent(ctx context.Context, notebookID, path string, enabled bool) (string, bool) {
	if !enabled {
		return "", false
	}

	ctx, span := f.tracer.Start(ctx, "content.SubDocumentsContent",
		trace.WithAttributes(attribute.String("notebook.id", notebookID), attribute.String("path", path)))
	defer span.End()

	docs, ok := f.ListSubDocuments(ctx, notebookID, path)
	if !ok || len(docs) == 0 {
		return "", false
	}

	sections := make([]string, 0, len(docs))
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		text, ok := f.DocumentMarkdown(ctx, doc.ID)
		if !ok {
			continue
		}
		sections = append(sections, "## "+doc.Title()+"\n\n"+text)
	}

	span.SetAttributes(attribute.Int("content.sections", len(sections)))
	if len(sections) == 0 {
		return "", false
	}
	return strings.Join(sections, SectionSeparator), true
}

func (f *Fetcher) fail(span trace.Span, op, id string, err error) {
	err = apperr.ContentFetch(op, err)
	f.metrics.ContentFetchTotal.WithLabelValues(op, "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	f.logger.Warn("content fetch failed",
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err))
}
