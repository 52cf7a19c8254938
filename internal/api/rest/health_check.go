package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/storage"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
)

// HealthChecker checks the health of a dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) HealthCheckResult
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       HealthStatus   `json:"status"`
	Message      string         `json:"message,omitempty"`
	Error        string         `json:"error,omitempty"`
	ResponseTime time.Duration  `json:"response_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastChecked  time.Time      `json:"last_checked"`
}

// HealthStatus represents the health status
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusWarn HealthStatus = "warn"
	HealthStatusFail HealthStatus = "fail"
)

// HealthConfig configures the health service
type HealthConfig struct {
	// CacheDuration is how long a check result is reused
	CacheDuration time.Duration

	// Timeout bounds each individual check
	Timeout time.Duration

	ServiceName    string
	ServiceVersion string
	Environment    string
}

// DefaultHealthConfig returns default configuration
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CacheDuration:  time.Second,
		Timeout:        2 * time.Second,
		ServiceName:    "fraud-scoring",
		ServiceVersion: "dev",
		Environment:    "development",
	}
}

type registeredChecker struct {
	checker  HealthChecker
	critical bool
}

// HealthService manages health checks. A failing critical checker fails
// readiness; a failing non-critical one only degrades it to warn.
type HealthService struct {
	mu        sync.RWMutex
	checkers  map[string]registeredChecker
	cache     sync.Map
	config    HealthConfig
	tracer    trace.Tracer
	ready     func() bool
	startTime time.Time
}

// NewHealthService creates a new health service. ready reports whether a
// model is loaded.
func NewHealthService(config HealthConfig, ready func() bool) *HealthService {
	return &HealthService{
		checkers:  make(map[string]registeredChecker),
		config:    config,
		tracer:    telemetry.Tracer("api.rest.health"),
		ready:     ready,
		startTime: time.Now(),
	}
}

// RegisterChecker registers a health checker
func (h *HealthService) RegisterChecker(checker HealthChecker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[checker.Name()] = registeredChecker{checker: checker, critical: critical}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status        HealthStatus                 `json:"status"`
	ModelLoaded   bool                         `json:"model_loaded"`
	ServiceName   string                       `json:"service_name"`
	Version       string                       `json:"version"`
	Environment   string                       `json:"environment,omitempty"`
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Checks        map[string]HealthCheckResult `json:"checks,omitempty"`
}

// LivenessHandler reports that the process is serving
func (h *HealthService) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{
			Status:        HealthStatusPass,
			ModelLoaded:   h.ready(),
			ServiceName:   h.config.ServiceName,
			Version:       h.config.ServiceVersion,
			UptimeSeconds: time.Since(h.startTime).Seconds(),
		})
	}
}

// HealthHandler runs every check and always answers 200 so that the
// process is not restarted while a model is loading
func (h *HealthService) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.evaluate(r.Context(), "health.status")
		writeHealth(w, http.StatusOK, resp)
	}
}

// ReadinessHandler answers 503 until a model is loaded and every critical
// check passes
func (h *HealthService) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.evaluate(r.Context(), "health.readiness")
		status := http.StatusOK
		if resp.Status == HealthStatusFail {
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, status, resp)
	}
}

func (h *HealthService) evaluate(ctx context.Context, spanName string) HealthResponse {
	ctx, span := h.tracer.Start(ctx, spanName)
	defer span.End()

	checks, criticalFailed, degraded := h.runChecks(ctx)
	loaded := h.ready()

	status := HealthStatusPass
	switch {
	case !loaded || criticalFailed:
		status = HealthStatusFail
	case degraded:
		status = HealthStatusWarn
	}

	span.SetAttributes(
		attribute.String("health.status", string(status)),
		attribute.Int("health.checks_count", len(checks)),
	)

	return HealthResponse{
		Status:        status,
		ModelLoaded:   loaded,
		ServiceName:   h.config.ServiceName,
		Version:       h.config.ServiceVersion,
		Environment:   h.config.Environment,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Checks:        checks,
	}
}

// runChecks runs all registered checks concurrently
func (h *HealthService) runChecks(ctx context.Context) (results map[string]HealthCheckResult, criticalFailed, degraded bool) {
	h.mu.RLock()
	checkers := make(map[string]registeredChecker, len(h.checkers))
	for name, rc := range h.checkers {
		checkers[name] = rc
	}
	h.mu.RUnlock()

	results = make(map[string]HealthCheckResult, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, rc := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, ok := h.getCachedResult(name)
			if !ok {
				checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
				defer cancel()

				result = rc.checker.Check(checkCtx)
				result.LastChecked = time.Now()
				h.cacheResult(name, result)
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			if result.Status == HealthStatusFail && rc.critical {
				criticalFailed = true
			} else if result.Status != HealthStatusPass {
				degraded = true
			}
		}()
	}

	wg.Wait()
	return results, criticalFailed, degraded
}

type cachedHealthResult struct {
	result    HealthCheckResult
	timestamp time.Time
}

func (h *HealthService) getCachedResult(name string) (HealthCheckResult, bool) {
	if h.config.CacheDuration <= 0 {
		return HealthCheckResult{}, false
	}
	if val, ok := h.cache.Load(name); ok {
		cached := val.(cachedHealthResult)
		if time.Since(cached.timestamp) < h.config.CacheDuration {
			return cached.result, true
		}
	}
	return HealthCheckResult{}, false
}

func (h *HealthService) cacheResult(name string, result HealthCheckResult) {
	h.cache.Store(name, cachedHealthResult{
		result:    result,
		timestamp: time.Now(),
	})
}

func writeHealth(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/health+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// ModelHealthChecker reports whether a model is published
type ModelHealthChecker struct {
	models ModelManager
}

// NewModelHealthChecker creates a model checker
func NewModelHealthChecker(models ModelManager) *ModelHealthChecker {
	return &ModelHealthChecker{models: models}
}

func (m *ModelHealthChecker) Name() string {
	return "model"
}

func (m *ModelHealthChecker) Check(ctx context.Context) HealthCheckResult {
	if !m.models.IsReady() {
		return HealthCheckResult{
			Status:  HealthStatusFail,
			Message: "no model loaded",
		}
	}
	return HealthCheckResult{
		Status:  HealthStatusPass,
		Message: "model loaded",
	}
}

// StoreHealthChecker pings the artifact store
type StoreHealthChecker struct {
	store storage.Store
}

// NewStoreHealthChecker creates an artifact store checker
func NewStoreHealthChecker(store storage.Store) *StoreHealthChecker {
	return &StoreHealthChecker{store: store}
}

func (s *StoreHealthChecker) Name() string {
	return "artifact_store"
}

func (s *StoreHealthChecker) Check(ctx context.Context) HealthCheckResult {
	start := time.Now()
	err := s.store.Ping(ctx)
	elapsed := time.Since(start)

	meta := map[string]any{"backend": s.store.Backend()}
	if err != nil {
		return HealthCheckResult{
			Status:       HealthStatusFail,
			Error:        err.Error(),
			ResponseTime: elapsed,
			Metadata:     meta,
		}
	}
	return HealthCheckResult{
		Status:       HealthStatusPass,
		Message:      "artifact store reachable",
		ResponseTime: elapsed,
		Metadata:     meta,
	}
}
