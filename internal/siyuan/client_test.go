package siyuan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docID = "20240101120000-abcdefg"

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok"}, nil)
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

func TestClient_ExportMarkdown(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/export/exportMdContent", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, docID, body["id"])

		writeEnvelope(w, 0, "", map[string]string{"hPath": "/Notes", "content": "# Notes\n- [ ] task"})
	})

	res, err := c.ExportMarkdown(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n- [ ] task", res.Content)
	assert.Equal(t, "/Notes", res.HPath)
}

func TestClient_APIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, -1, "block not found", nil)
	})

	_, err := c.ExportMarkdown(context.Background(), docID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -1, apiErr.Code)
	assert.Equal(t, "block not found", apiErr.Msg)
}

func TestClient_GetBlock(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/query/sql", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body["stmt"], docID)
			writeEnvelope(w, 0, "", []map[string]string{{
				"id": docID, "root_id": docID, "box": "box1", "path": "/" + docID + ".sy", "content": "Project plan",
			}})
		})

		b, err := c.GetBlock(context.Background(), docID)
		require.NoError(t, err)
		assert.Equal(t, "box1", b.Box)
		assert.Equal(t, "/"+docID+".sy", b.Path)
		assert.Equal(t, "Project plan", b.Content)
	})

	t.Run("no rows", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 0, "", []any{})
		})
		_, err := c.GetBlock(context.Background(), docID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
		_, err := c.GetBlock(context.Background(), "x' OR '1'='1")
		assert.Error(t, err)
	})
}

func TestClient_ListDocsByPath(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "box1", body["notebook"])
		assert.Equal(t, "/parent.sy", body["path"])
		writeEnvelope(w, 0, "", map[string]any{
			"box":  "box1",
			"path": "/parent.sy",
			"files": []map[string]any{
				{"id": "20240101120001-aaaaaaa", "name": "First.sy", "alias": "One"},
				{"id": "20240101120002-bbbbbbb", "name": "Second.sy"},
			},
		})
	})

	res, err := c.ListDocsByPath(context.Background(), "box1", "/parent.sy")
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "One", res.Files[0].Alias)
	assert.Equal(t, "Second.sy", res.Files[1].Name)
}

func TestClient_Files(t *testing.T) {
	stored := map[string][]byte{}
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/file/putFile":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "false", r.FormValue("isDir"))
			f, _, err := r.FormFile("file")
			require.NoError(t, err)
			data, err := io.ReadAll(f)
			require.NoError(t, err)
			stored[r.FormValue("path")] = data
			writeEnvelope(w, 0, "", nil)
		case "/api/file/getFile":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			data, ok := stored[body["path"]]
			if !ok {
				w.WriteHeader(http.StatusAccepted)
				writeEnvelope(w, 404, "file does not exist", nil)
				return
			}
			_, _ = w.Write(data)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	_, err := c.GetFile(ctx, "/data/storage/petal/p/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.PutFile(ctx, "/data/storage/petal/p/key", []byte(`[1,2]`)))
	got, err := c.GetFile(ctx, "/data/storage/petal/p/key")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.ExportMarkdown(context.Background(), docID)
	assert.Error(t, err)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(docID))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("20240101-abc"))
}
