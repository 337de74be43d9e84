package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/chat"
	"github.com/fyrsmithlabs/ragassistant/internal/config"
	"github.com/fyrsmithlabs/ragassistant/internal/content"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/history"
	httpserver "github.com/fyrsmithlabs/ragassistant/internal/http"
	"github.com/fyrsmithlabs/ragassistant/internal/ollama"
	"github.com/fyrsmithlabs/ragassistant/internal/prompt"
	"github.com/fyrsmithlabs/ragassistant/internal/services"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
	"github.com/fyrsmithlabs/ragassistant/internal/siyuan"
	"github.com/fyrsmithlabs/ragassistant/internal/storage"
)

// app holds the composed daemon and the resources it must release.
type app struct {
	server  *httpserver.Server
	chat    *chat.Service
	history *history.Manager
	store   storage.Store
	nats    *nats.Conn
	logger  *zap.Logger
	closers []func()
}

// Close flushes pending history and releases infrastructure. It is safe to
// call once after the HTTP server has stopped.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.history.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	if a.nats != nil {
		a.nats.Close()
	}
}

// buildApp wires the service graph in a dig container.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	c := dig.New()

	providers := []struct {
		name string
		fn   any
	}{
		{"config", func() *config.Config { return cfg }},
		{"logger", func() *zap.Logger { return logger }},
		{"nats connection", func(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
			return connectNATS(cfg, logger)
		}},
		{"siyuan client", func(cfg *config.Config, logger *zap.Logger) *siyuan.Client {
			return siyuan.NewClient(siyuan.Config{
				BaseURL:   cfg.SiYuan.BaseURL,
				Token:     cfg.SiYuan.Token.Value(),
				Timeout:   cfg.SiYuan.Timeout.Duration(),
				RateLimit: cfg.SiYuan.RateLimit,
				Burst:     cfg.SiYuan.Burst,
			}, logger.Named("siyuan"))
		}},
		{"storage", func(cfg *config.Config, nc *nats.Conn, client *siyuan.Client, logger *zap.Logger) (storage.Store, error) {
			return storage.New(ctx, cfg, storage.Deps{NATS: nc, SiYuan: client, Logger: logger.Named("storage")})
		}},
		{"settings provider", newSettingsProvider},
		{"content fetcher", func(client *siyuan.Client, logger *zap.Logger) *content.Fetcher {
			return content.NewFetcher(client, logger.Named("content"))
		}},
		{"context store", func() *doccontext.Store { return doccontext.NewStore() }},
		{"context listener", func(store *doccontext.Store, fetcher *content.Fetcher, logger *zap.Logger) *doccontext.Listener {
			return doccontext.NewListener(store, fetcher, logger.Named("context"))
		}},
		{"history manager", func(store storage.Store, cfg *config.Config, logger *zap.Logger) *history.Manager {
			return history.NewManager(store, logger.Named("history"), history.Config{
				SaveDebounce: cfg.History.SaveDebounce.Duration(),
			})
		}},
		{"prompt assembler", func(store *doccontext.Store, fetcher *content.Fetcher, logger *zap.Logger) *prompt.Assembler {
			return prompt.NewAssembler(store, fetcher, logger.Named("prompt"))
		}},
		{"ollama client", func(cfg *config.Config, logger *zap.Logger) *ollama.Client {
			return ollama.NewClient(ollama.Config{
				ListTimeout: cfg.Ollama.ListTimeout.Duration(),
				ChatTimeout: cfg.Ollama.ChatTimeout.Duration(),
			}, logger.Named("ollama"))
		}},
		{"chat service", newChatService},
		{"service registry", func(
			store *doccontext.Store,
			listener *doccontext.Listener,
			fetcher *content.Fetcher,
			hist *history.Manager,
			provider settings.Provider,
			svc *chat.Service,
		) services.Registry {
			return services.NewRegistry(services.Options{
				Context:  store,
				Listener: listener,
				Content:  fetcher,
				History:  hist,
				Settings: provider,
				Chat:     svc,
			})
		}},
		{"http server", func(reg services.Registry, cfg *config.Config, logger *zap.Logger) (*httpserver.Server, error) {
			return httpserver.NewServer(reg, logger.Named("http"), &httpserver.Config{
				Host: cfg.Server.Host,
				Port: cfg.Server.Port,
			})
		}},
	}
	for _, p := range providers {
		if err := c.Provide(p.fn); err != nil {
			return nil, fmt.Errorf("failed to provide %s: %w", p.name, err)
		}
	}

	var a *app
	err := c.Invoke(func(
		srv *httpserver.Server,
		svc *chat.Service,
		hist *history.Manager,
		store storage.Store,
		nc *nats.Conn,
		ctxStore *doccontext.Store,
	) {
		a = &app{
			server:  srv,
			chat:    svc,
			history: hist,
			store:   store,
			nats:    nc,
			logger:  logger,
		}
		a.closers = append(a.closers, ctxStore.Subscribe(svc.HandleContextChange))

		if nc != nil && cfg.NATS.PublishEvents {
			pub := doccontext.NewPublisher(nc, cfg.NATS.Subject, logger.Named("events"))
			a.closers = append(a.closers, pub.Attach(ctxStore))
			logger.Info("publishing context events", zap.String("subject", cfg.NATS.Subject))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build service graph: %w", err)
	}
	return a, nil
}

// connectNATS returns nil when no URL is configured; the nats storage
// provider then fails during its own construction.
func connectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("ragassistant"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	return nc, nil
}

func newSettingsProvider(cfg *config.Config, store storage.Store) (settings.Provider, error) {
	defaults := settings.DefaultsFromConfig(cfg.Settings)
	switch cfg.Settings.Provider {
	case config.SettingsFile:
		if cfg.Settings.File == "" {
			return nil, fmt.Errorf("settings file provider requires settings.file")
		}
		return settings.NewFileProvider(cfg.Settings.File, defaults), nil
	case config.SettingsStore, "":
		return settings.NewStoreProvider(store, defaults), nil
	default:
		return nil, fmt.Errorf("unsupported settings provider: %s", cfg.Settings.Provider)
	}
}

func newChatService(
	provider settings.Provider,
	store *doccontext.Store,
	hist *history.Manager,
	assembler *prompt.Assembler,
	client *ollama.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *chat.Service {
	return chat.NewService(provider, store, hist, assembler, client, logger.Named("chat"), chat.Config{
		SwitchQueue: cfg.History.SwitchQueue,
	})
}
