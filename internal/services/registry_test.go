package services

import (
	"testing"

	"github.com/fyrsmithlabs/ragassistant/internal/content"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/history"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
	"github.com/fyrsmithlabs/ragassistant/internal/storage"
)

func TestNewRegistry(t *testing.T) {
	var _ Registry = (*registry)(nil)
}

func TestRegistryAccessors(t *testing.T) {
	reg := NewRegistry(Options{})

	if reg.Context() != nil {
		t.Error("expected nil context store")
	}
	if reg.Listener() != nil {
		t.Error("expected nil listener")
	}
	if reg.Content() != nil {
		t.Error("expected nil content fetcher")
	}
	if reg.History() != nil {
		t.Error("expected nil history manager")
	}
	if reg.Settings() != nil {
		t.Error("expected nil settings provider")
	}
	if reg.Chat() != nil {
		t.Error("expected nil chat service")
	}
}

func TestRegistryWithServices(t *testing.T) {
	store := storage.NewMemoryStore()
	dc := doccontext.NewStore()
	listener := doccontext.NewListener(dc, nil, nil)
	fetcher := content.NewFetcher(nil, nil)
	h := history.NewManager(store, nil, history.Config{})
	defer h.Close()
	provider := settings.NewStoreProvider(store, settings.Defaults())

	reg := NewRegistry(Options{
		Context:  dc,
		Listener: listener,
		Content:  fetcher,
		History:  h,
		Settings: provider,
	})

	if reg.Context() != dc {
		t.Error("context store mismatch")
	}
	if reg.Listener() != listener {
		t.Error("listener mismatch")
	}
	if reg.Content() != fetcher {
		t.Error("content fetcher mismatch")
	}
	if reg.History() != h {
		t.Error("history manager mismatch")
	}
	if reg.Settings() != provider {
		t.Error("settings provider mismatch")
	}
}
