package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/storage"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-scoring-service/internal/service/scoring"
)

const instrumentationName = "fraud-scoring/api"

// Dependencies are the collaborators the server routes to
type Dependencies struct {
	Scoring scoring.Service
	Models  ModelManager

	// Store is pinged by the non-critical artifact_store health check; nil skips it
	Store storage.Store

	Metrics        Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server represents the API server
type Server struct {
	config         *config.Config
	httpServer     *http.Server
	handler        *Handler
	health         *HealthService
	metricsHandler http.Handler
	logger         *slog.Logger
}

// NewServer creates the API server and its middleware chain
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	healthCfg := DefaultHealthConfig()
	healthCfg.ServiceName = cfg.Telemetry.ServiceName
	healthCfg.ServiceVersion = cfg.Version
	healthCfg.Environment = cfg.Environment
	health := NewHealthService(healthCfg, deps.Models.IsReady)
	health.RegisterChecker(NewModelHealthChecker(deps.Models), true)
	if deps.Store != nil {
		health.RegisterChecker(NewStoreHealthChecker(deps.Store), false)
	}

	s := &Server{
		config:         cfg,
		handler:        NewHandler(deps.Scoring, deps.Models, metrics, logger, cfg.Server.MaxBodyBytes),
		health:         health,
		metricsHandler: deps.MetricsHandler,
		logger:         logger,
	}

	middlewares := []Middleware{
		RequestIDMiddleware(),
		RequestLoggingMiddleware(logger),
		MetricsMiddleware(metrics),
		TracingMiddleware(telemetry.Tracer(instrumentationName), otel.GetTextMapPropagator()),
		RecoveryMiddleware(logger),
	}

	corsCfg := DefaultCORSConfig()
	if len(cfg.Server.CORS.AllowedOrigins) > 0 {
		corsCfg.AllowedOrigins = cfg.Server.CORS.AllowedOrigins
	}
	middlewares = append(middlewares, NewCORSMiddleware(corsCfg).Middleware())

	if cfg.Server.RateLimit.Enabled {
		resolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
		if err != nil {
			return nil, fmt.Errorf("configuring rate limiter: %w", err)
		}
		limiter := NewRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.BurstSize,
			WithMaxClients(cfg.Server.RateLimit.MaxClients),
			WithIdleTTL(cfg.Server.RateLimit.IdleTTL),
			WithClientIPResolver(resolver),
		)
		middlewares = append(middlewares, limiter.Middleware())
	}

	middlewares = append(middlewares, TimeoutMiddleware(cfg.Server.RequestTimeout))

	if cfg.Server.ContractValidation {
		validator, err := NewContractValidator(OpenAPISpec())
		if err != nil {
			return nil, fmt.Errorf("loading API contract: %w", err)
		}
		middlewares = append(middlewares, BodyLimitMiddleware(cfg.Server.MaxBodyBytes),
			NewContractValidationMiddleware(validator, DefaultContractValidationConfig(), logger).Middleware())
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:           NewMiddlewareChain(middlewares...).Then(s.setupRoutes()),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{Control: reusePort}
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("starting API server",
		"address", ln.Addr().String(),
		"environment", s.config.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}
