package services

import (
	"github.com/fyrsmithlabs/ragassistant/internal/chat"
	"github.com/fyrsmithlabs/ragassistant/internal/content"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/history"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
)

// Registry provides access to the assistant services.
type Registry interface {
	Context() *doccontext.Store
	Listener() *doccontext.Listener
	Content() *content.Fetcher
	History() *history.Manager
	Settings() settings.Provider
	Chat() *chat.Service
}

// Options configures the registry with service instances.
type Options struct {
	Context  *doccontext.Store
	Listener *doccontext.Listener
	Content  *content.Fetcher
	History  *history.Manager
	Settings settings.Provider
	Chat     *chat.Service
}

// registry is the concrete implementation of Registry.
type registry struct {
	context  *doccontext.Store
	listener *doccontext.Listener
	content  *content.Fetcher
	history  *history.Manager
	settings settings.Provider
	chat     *chat.Service
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		context:  opts.Context,
		listener: opts.Listener,
		content:  opts.Content,
		history:  opts.History,
		settings: opts.Settings,
		chat:     opts.Chat,
	}
}

func (r *registry) Context() *doccontext.Store      { return r.context }
func (r *registry) Listener() *doccontext.Listener { return r.listener }
func (r *registry) Content() *content.Fetcher      { return r.content }
func (r *registry) History() *history.Manager      { return r.history }
func (r *registry) Settings() settings.Provider    { return r.settings }
func (r *registry) Chat() *chat.Service            { return r.chat }
