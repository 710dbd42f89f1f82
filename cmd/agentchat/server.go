package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanchez314c/agent-chat/agent/conversation"
	"github.com/sanchez314c/agent-chat/api/handlers"
	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/filesink"
	"github.com/sanchez314c/agent-chat/internal/metrics"
	"github.com/sanchez314c/agent-chat/internal/server"
	"github.com/sanchez314c/agent-chat/internal/telemetry"
	"github.com/sanchez314c/agent-chat/llm/credentials"
	"go.uber.org/zap"
)

// skipAuthPaths are reachable without credentials.
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

// =============================================================================
// Server
// =============================================================================

// Server is the operator API process: one orchestrator behind an HTTP API
// plus a Prometheus endpoint.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	app          *app
	orchestrator *conversation.Orchestrator
	telemetry    *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler       *handlers.HealthHandler
	providerHandler     *handlers.ProviderHandler
	conversationHandler *handlers.ConversationHandler

	metricsCollector *metrics.Collector

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server for cfg.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// =============================================================================
// Startup
// =============================================================================

// Start builds every component and starts both listeners.
func (s *Server) Start(ctx context.Context) error {
	tp, err := telemetry.Init(s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	s.telemetry = tp

	s.metricsCollector = metrics.NewCollector("agentchat", s.logger)

	if err := s.initComponents(ctx); err != nil {
		return err
	}
	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) initComponents(ctx context.Context) error {
	a, err := newApp(ctx, s.cfg, s.logger, s.metricsCollector)
	if err != nil {
		return fmt.Errorf("failed to init providers: %w", err)
	}
	s.app = a

	if c, ok := credentials.StatsCollector(a.store); ok {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				s.logger.Warn("failed to register credential pool metrics", zap.Error(err))
			}
		}
	}

	orch, err := conversation.New(a.manager, conversation.SettingsFrom(s.cfg.Conversation),
		conversation.WithLogger(s.logger),
		conversation.WithMetrics(s.metricsCollector),
	)
	if err != nil {
		return err
	}
	s.orchestrator = orch
	return nil
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.orchestrator.State, s.logger)
	store := s.app.store
	s.healthHandler.AddProbe(handlers.NewProbe("credentials", func(ctx context.Context) error {
		return credentials.Ping(ctx, store)
	}))
	if shared := s.app.shared; shared != nil {
		s.healthHandler.AddProbe(handlers.NewProbe("catalog_cache", shared.Ping))
	}

	s.providerHandler = handlers.NewProviderHandler(s.app.manager, s.logger)

	opts := []handlers.ConversationOption{
		handlers.WithConversationLogger(s.logger),
		handlers.WithOriginPatterns(s.cfg.Server.CORSOrigins...),
	}
	if s.cfg.Export.Dir != "" {
		opts = append(opts, handlers.WithFileSink(filesink.New(s.cfg.Export.Dir, filesink.WithLogger(s.logger))))
	}
	s.conversationHandler = handlers.NewConversationHandler(s.orchestrator, opts...)
}

// routes registers every endpoint on a new mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	ph := s.providerHandler
	mux.HandleFunc("GET /api/v1/providers", ph.HandleList)
	mux.HandleFunc("GET /api/v1/models", ph.HandleAllModels)
	mux.HandleFunc("GET /api/v1/providers/{id}/models", ph.HandleModels)
	mux.HandleFunc("POST /api/v1/providers/{id}/test", ph.HandleTest)
	mux.HandleFunc("GET /api/v1/providers/{id}/credential", ph.HandleGetCredential)
	mux.HandleFunc("PUT /api/v1/providers/{id}/credential", ph.HandlePutCredential)
	mux.HandleFunc("DELETE /api/v1/providers/{id}/credential", ph.HandleDeleteCredential)

	ch := s.conversationHandler
	mux.HandleFunc("GET /api/v1/conversation", ch.HandleGet)
	mux.HandleFunc("PUT /api/v1/conversation", ch.HandleConfigure)
	mux.HandleFunc("POST /api/v1/conversation/start", ch.HandleStart)
	mux.HandleFunc("POST /api/v1/conversation/pause", ch.HandlePause)
	mux.HandleFunc("POST /api/v1/conversation/resume", ch.HandleResume)
	mux.HandleFunc("POST /api/v1/conversation/stop", ch.HandleStop)
	mux.HandleFunc("POST /api/v1/conversation/reset", ch.HandleReset)
	mux.HandleFunc("POST /api/v1/conversation/inject", ch.HandleInject)
	mux.HandleFunc("GET /api/v1/conversation/messages", ch.HandleMessages)
	mux.HandleFunc("GET /api/v1/conversation/export", ch.HandleExport)
	mux.HandleFunc("POST /api/v1/conversation/save", ch.HandleSave)
	mux.HandleFunc("GET /api/v1/conversation/events", ch.HandleEvents)

	return mux
}

// handler wraps mux in the middleware chain.
func (s *Server) handler(ctx context.Context, mux *http.ServeMux) http.Handler {
	route := MuxRoutes(mux)
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector, route),
		OTelTracing(route),
		CORS(s.cfg.Server.CORSOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	switch {
	case s.cfg.Server.JWTSecret != "":
		chain = append(chain, JWTAuth(s.cfg.Server.JWTSecret, skipAuthPaths, s.logger))
	case len(s.cfg.Server.APIKeys) > 0:
		chain = append(chain, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger))
	default:
		s.logger.Warn("operator API has no authentication configured")
	}
	return Chain(mux, chain...)
}

func (s *Server) startHTTPServer() error {
	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	handler := s.handler(rateLimiterCtx, s.routes())
	s.httpManager = server.NewManager(handler,
		server.ConfigFrom("http", s.cfg.Server.HTTPPort, s.cfg.Server), s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux,
		server.ConfigFrom("metrics", s.cfg.Server.MetricsPort, s.cfg.Server), s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// Shutdown
// =============================================================================

// Wait blocks until ctx is done or a listener fails.
func (s *Server) Wait(ctx context.Context) error {
	var metricsErrs <-chan error
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-s.httpManager.Errors():
		return err
	case err := <-metricsErrs:
		return err
	}
}

// Shutdown stops the listeners, then the conversation, then telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("starting graceful shutdown")

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	var errs []error
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if s.orchestrator != nil {
		if err := s.orchestrator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator: %w", err))
		}
	}
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			errs = append(errs, fmt.Errorf("credential store: %w", err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("shutdown finished with errors", zap.Error(err))
	} else {
		s.logger.Info("graceful shutdown completed")
	}
	return err
}
