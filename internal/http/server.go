// Package http provides the loopback HTTP API the editor plugin talks to.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/apperr"
	"github.com/fyrsmithlabs/ragassistant/internal/chat"
	"github.com/fyrsmithlabs/ragassistant/internal/doccontext"
	"github.com/fyrsmithlabs/ragassistant/internal/logging"
	"github.com/fyrsmithlabs/ragassistant/internal/ollama"
	"github.com/fyrsmithlabs/ragassistant/internal/services"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
)

// Server provides HTTP endpoints for the assistant.
type Server struct {
	echo     *echo.Echo
	registry services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(registry services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewAPIMetrics(nil, logger).Middleware())
	httpLog := logging.Wrap(logger).Named("http")
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithLogger(logging.WithRequestID(c.Request().Context(), rid), httpLog)
			c.SetRequest(c.Request().WithContext(ctx))
			err := next(c)

			// request.id comes from the context fields.
			httpLog.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/events/switch", s.handleSwitch)
	v1.GET("/context", s.handleContext)
	v1.POST("/chat", s.handleChat)
	v1.GET("/history", s.handleHistory)
	v1.DELETE("/history", s.handleClearHistory)
	v1.GET("/models", s.handleModels)
	v1.GET("/status", s.handleStatus)
	v1.GET("/settings", s.handleGetSettings)
	v1.PUT("/settings", s.handlePutSettings)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSwitch applies an editor document-switch event.
func (s *Server) handleSwitch(c echo.Context) error {
	var ev doccontext.SwitchEvent
	if err := c.Bind(&ev); err != nil {
		reqLogger(c).Warn(c.Request().Context(), "invalid switch event", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	ctx := logging.WithDocumentID(c.Request().Context(), ev.DocumentID())
	applied := s.registry.Listener().HandleSwitch(ctx, ev)
	if !applied {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "event has no block id"})
	}
	return c.JSON(http.StatusOK, SwitchResponse{Applied: true, Context: s.registry.Context().Get()})
}

// handleContext returns the active document.
func (s *Server) handleContext(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Context().Get())
}

// handleChat runs one chat turn.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		reqLogger(c).Warn(c.Request().Context(), "invalid chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	reply, err := s.registry.Chat().Submit(c.Request().Context(), req.Message)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

// handleHistory returns the active document's conversation.
func (s *Server) handleHistory(c echo.Context) error {
	docID, msgs := s.registry.Chat().History(c.Request().Context())
	return c.JSON(http.StatusOK, HistoryResponse{DocumentID: docID, Messages: msgs})
}

// handleClearHistory empties the active document's conversation.
func (s *Server) handleClearHistory(c echo.Context) error {
	s.registry.Chat().ClearHistory(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// handleModels lists models on the configured backend.
func (s *Server) handleModels(c echo.Context) error {
	models, err := s.registry.Chat().ListModels(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	if models == nil {
		models = []ollama.Model{}
	}
	return c.JSON(http.StatusOK, ModelsResponse{Models: models})
}

// handleStatus re-checks configuration and connectivity, then reports.
func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	svc := s.registry.Chat()
	svc.CheckConfiguration(ctx)
	svc.CheckConnection(ctx)

	st := svc.Status()
	return c.JSON(http.StatusOK, StatusResponse{
		Configured:      st.Configured,
		Loading:         st.Loading,
		ConnectionError: st.ConnectionError,
		Context:         s.registry.Context().Get(),
	})
}

// handleGetSettings returns the current settings.
func (s *Server) handleGetSettings(c echo.Context) error {
	st, err := s.registry.Settings().Get(c.Request().Context())
	if err != nil {
		reqLogger(c).Error(c.Request().Context(), "failed to read settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read settings"})
	}
	return c.JSON(http.StatusOK, st)
}

// handlePutSettings replaces the settings when the provider is writable.
func (s *Server) handlePutSettings(c echo.Context) error {
	w, ok := s.registry.Settings().(settings.Writer)
	if !ok {
		return c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: settings.ErrReadOnly.Error()})
	}

	var st settings.Settings
	if err := c.Bind(&st); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if err := st.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	if err := w.Put(c.Request().Context(), st); err != nil {
		if errors.Is(err, settings.ErrReadOnly) {
			return c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: err.Error()})
		}
		reqLogger(c).Error(c.Request().Context(), "failed to write settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to write settings"})
	}

	s.registry.Chat().CheckConfiguration(c.Request().Context())
	return c.JSON(http.StatusOK, st)
}

// reqLogger returns the logger the request middleware stored in the
// request context.
func reqLogger(c echo.Context) *logging.Logger {
	return logging.FromContext(c.Request().Context())
}

// writeError maps service errors to status codes and records the failure
// kind for APIMetrics.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, chat.ErrBusy):
		c.Set(errorKindKey, "busy")
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "busy"})
	case errors.Is(err, chat.ErrEmptyMessage):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindConfiguration:
		c.Set(errorKindKey, kind.String())
		return c.JSON(http.StatusPreconditionFailed, ErrorResponse{Error: err.Error(), Kind: kind.String()})
	case apperr.KindConnection:
		c.Set(errorKindKey, kind.String())
		url := apperr.URLOf(err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: chat.ConnectionErrorMessage(url),
			Kind:  kind.String(),
			URL:   url,
		})
	case apperr.KindProtocol:
		c.Set(errorKindKey, kind.String())
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Kind: kind.String()})
	}

	c.Set(errorKindKey, "internal")
	reqLogger(c).Error(c.Request().Context(), "request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
