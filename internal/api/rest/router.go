package rest

import "net/http"

// knownRoutes bounds the route label used for metrics and span names
var knownRoutes = map[string]struct{}{
	"/predict":             {},
	"/api/v1/predict":      {},
	"/health":              {},
	"/healthz":             {},
	"/ready":               {},
	"/model_info":          {},
	"/api/v1/model":        {},
	"/api/v1/model/reload": {},
	"/metrics":             {},
	"/openapi.yaml":        {},
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health checks
	mux.HandleFunc("GET /health", s.health.HealthHandler())
	mux.HandleFunc("GET /healthz", s.health.LivenessHandler())
	mux.HandleFunc("GET /ready", s.health.ReadinessHandler())

	// Scoring
	mux.HandleFunc("POST /predict", s.handler.handlePredict)
	mux.HandleFunc("POST /api/v1/predict", s.handler.handlePredict)

	// Model management
	mux.HandleFunc("GET /model_info", s.handler.handleModelInfo)
	mux.HandleFunc("GET /api/v1/model", s.handler.handleModelInfo)
	mux.HandleFunc("POST /api/v1/model/reload", s.handler.handleReload)

	mux.HandleFunc("GET /openapi.yaml", s.handler.handleOpenAPISpec)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	return mux
}
