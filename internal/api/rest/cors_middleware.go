package rest

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig configures CORS middleware
type CORSConfig struct {
	// AllowedOrigins may include "*" or a single-wildcard pattern such as
	// "https://*.example.com"
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

// DefaultCORSConfig allows no origins until configured
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			HeaderRequestID,
			"Traceparent",
		},
		ExposedHeaders: []string{
			HeaderRequestID,
			HeaderModelGeneration,
			HeaderTraceID,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
		},
		MaxAge: 12 * time.Hour,
	}
}

// CORSMiddleware provides CORS support
type CORSMiddleware struct {
	allowedOrigins map[string]bool
	allowedMethods string
	allowedHeaders string
	exposedHeaders string
	maxAge         string
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(config CORSConfig) *CORSMiddleware {
	allowedOrigins := make(map[string]bool, len(config.AllowedOrigins))
	for _, origin := range config.AllowedOrigins {
		allowedOrigins[strings.ToLower(origin)] = true
	}

	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
		allowedMethods: strings.Join(config.AllowedMethods, ", "),
		allowedHeaders: strings.Join(config.AllowedHeaders, ", "),
		exposedHeaders: strings.Join(config.ExposedHeaders, ", "),
		maxAge:         strconv.Itoa(int(config.MaxAge.Seconds())),
	}
}

// Middleware answers preflight requests and decorates allowed origins
func (c *CORSMiddleware) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := c.isOriginAllowed(origin)
			headers := w.Header()

			if allowed {
				headers.Set("Access-Control-Allow-Origin", origin)
				headers.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					headers.Set("Access-Control-Allow-Methods", c.allowedMethods)
					headers.Set("Access-Control-Allow-Headers", c.allowedHeaders)
					headers.Set("Access-Control-Max-Age", c.maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed && c.exposedHeaders != "" {
				headers.Set("Access-Control-Expose-Headers", c.exposedHeaders)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *CORSMiddleware) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.allowedOrigins["*"] {
		return true
	}

	normalized := strings.ToLower(origin)
	if c.allowedOrigins[normalized] {
		return true
	}

	for pattern := range c.allowedOrigins {
		if prefix, suffix, ok := strings.Cut(pattern, "*"); ok && !strings.Contains(suffix, "*") {
			if strings.HasPrefix(normalized, prefix) && strings.HasSuffix(normalized, suffix) {
				return true
			}
		}
	}
	return false
}
