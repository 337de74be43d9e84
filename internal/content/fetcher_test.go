package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragassistant/internal/siyuan"
)

type fakeAPI struct {
	docs      map[string]string
	failDocs  map[string]bool
	blocks    map[string]*siyuan.Block
	listing   *siyuan.ListResult
	listErr   error
	exportLog []string
}

func (f *fakeAPI) ExportMarkdown(_ context.Context, id string) (*siyuan.ExportResult, error) {
	f.exportLog = append(f.exportLog, id)
	if f.failDocs[id] {
		return nil, &siyuan.APIError{Endpoint: "/api/export/exportMdContent", Code: -1, Msg: "boom"}
	}
	return &siyuan.ExportResult{Content: f.docs[id]}, nil
}

func (f *fakeAPI) GetBlock(_ context.Context, id string) (*siyuan.Block, error) {
	b, ok := f.blocks[id]
	if !ok {
		return nil, siyuan.ErrNotFound
	}
	return b, nil
}

func (f *fakeAPI) ListDocsByPath(_ context.Context, _, _ string) (*siyuan.ListResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

func TestFetcher_DocumentMarkdown(t *testing.T) {
	api := &fakeAPI{
		docs:     map[string]string{"doc-1": "# Notes\n- [ ] task", "doc-empty": ""},
		failDocs: map[string]bool{"doc-err": true},
	}
	f := NewFetcher(api, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		id     string
		want   string
		wantOK bool
	}{
		{"verbatim content", "doc-1", "# Notes\n- [ ] task", true},
		{"empty content is absent", "doc-empty", "", false},
		{"api error is absent", "doc-err", "", false},
		{"empty id", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.DocumentMarkdown(ctx, tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetcher_DocumentLocationAndName(t *testing.T) {
	api := &fakeAPI{blocks: map[string]*siyuan.Block{
		"doc-1":    {ID: "doc-1", Box: "box1", Path: "/doc-1.sy", Content: "Project plan"},
		"doc-bare": {ID: "doc-bare", Content: "No path"},
	}}
	f := NewFetcher(api, nil)
	ctx := context.Background()

	box, path, ok := f.DocumentLocation(ctx, "doc-1")
	require.True(t, ok)
	assert.Equal(t, "box1", box)
	assert.Equal(t, "/doc-1.sy", path)

	_, _, ok = f.DocumentLocation(ctx, "doc-bare")
	assert.False(t, ok)

	_, _, ok = f.DocumentLocation(ctx, "missing")
	assert.False(t, ok)

	assert.Equal(t, "Project plan", f.DocumentName(ctx, "doc-1"))
	assert.Equal(t, "", f.DocumentName(ctx, "missing"))
}

func TestFetcher_RootDocument(t *testing.T) {
	api := &fakeAPI{blocks: map[string]*siyuan.Block{
		"para-1": {ID: "para-1", RootID: "doc-1"},
		"doc-1":  {ID: "doc-1", RootID: "doc-1"},
		"doc-2":  {ID: "doc-2"},
	}}
	f := NewFetcher(api, nil)

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"nested block", "para-1", "doc-1"},
		{"document block", "doc-1", "doc-1"},
		{"no root recorded", "doc-2", "doc-2"},
		{"unknown block", "missing", ""},
		{"empty id", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.RootDocument(context.Background(), tt.id))
		})
	}
}

func TestFetcher_SubDocumentsContent(t *testing.T) {
	listing := &siyuan.ListResult{Files: []siyuan.DocFile{
		{ID: "child-1", Name: "First.sy", Alias: "One"},
		{ID: "child-2", Name: "Second.sy"},
		{ID: "child-3", Name: "Broken.sy"},
		{ID: "child-4"},
	}}

	t.Run("disabled fetches nothing", func(t *testing.T) {
		api := &fakeAPI{listing: listing}
		f := NewFetcher(api, nil)
		got, ok := f.SubDocumentsContent(context.Background(), "box1", "/p.sy", false)
		assert.False(t, ok)
		assert.Empty(t, got)
		assert.Empty(t, api.exportLog)
	})

	t.Run("renders in listing order and skips failures", func(t *testing.T) {
		api := &fakeAPI{
			listing:  listing,
			docs:     map[string]string{"child-1": "alpha", "child-2": "beta", "child-4": "delta"},
			failDocs: map[string]bool{"child-3": true},
		}
		f := NewFetcher(api, nil)
		got, ok := f.SubDocumentsContent(context.Background(), "box1", "/p.sy", true)
		require.True(t, ok)
		assert.Equal(t,
			"## One\n\nalpha"+SectionSeparator+"## Second\n\nbeta"+SectionSeparator+"## Untitled\n\ndelta",
			got)
		assert.Equal(t, []string{"child-1", "child-2", "child-3", "child-4"}, api.exportLog)
	})

	t.Run("listing failure is absent", func(t *testing.T) {
		api := &fakeAPI{listErr: errors.New("connection refused")}
		f := NewFetcher(api, nil)
		_, ok := f.SubDocumentsContent(context.Background(), "box1", "/p.sy", true)
		assert.False(t, ok)
	})

	t.Run("no children", func(t *testing.T) {
		api := &fakeAPI{listing: &siyuan.ListResult{}}
		f := NewFetcher(api, nil)
		_, ok := f.SubDocumentsContent(context.Background(), "box1", "/p.sy", true)
		assert.False(t, ok)
	})

	t.Run("all children empty", func(t *testing.T) {
		api := &fakeAPI{listing: listing, docs: map[string]string{}}
		f := NewFetcher(api, nil)
		_, ok := f.SubDocumentsContent(context.Background(), "box1", "/p.sy", true)
		assert.False(t, ok)
	})
}

func TestSubDocument_Title(t *testing.T) {
	assert.Equal(t, "Alias", SubDocument{Alias: "Alias", Name: "Name.sy"}.Title())
	assert.Equal(t, "Name", SubDocument{Name: "Name.sy"}.Title())
	assert.Equal(t, "Untitled", SubDocument{}.Title())
}
