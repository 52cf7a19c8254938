package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "deadline",
			err:        fmt.Errorf("scoring: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "REQUEST_TIMEOUT",
			wantMsg:    "Request timed out",
		},
		{
			name:       "bad input carries the extractor message",
			err:        errors.NewBadInputError(errors.CodeInvalidAmount, "bad").WithCause(fmt.Errorf("amount \"x\" is not a number")),
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.CodeInvalidAmount,
			wantMsg:    "amount \"x\" is not a number",
		},
		{
			name:       "model not loaded",
			err:        errors.NewModelNotLoadedError(),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   errors.CodeModelNotLoaded,
		},
		{
			name:       "inconsistent model hides its cause",
			err:        errors.NewModelInconsistentError(errors.CodeDimensionMismatch, "model artifacts are inconsistent").WithCause(fmt.Errorf("scaler expects 9")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   errors.CodeDimensionMismatch,
			wantMsg:    "model artifacts are inconsistent",
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   errors.CodeInternal,
			wantMsg:    "An internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, msg := HandleError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("classifier exploded")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", nil))

	assertFailure(t, w, http.StatusInternalServerError, "An internal error occurred")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := TimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_BoundedClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, WithMaxClients(3), WithIdleTTL(time.Hour), withLimiterClock(func() time.Time { return now }))

	for i := range 100 {
		now = now.Add(time.Millisecond)
		rl.Allow(fmt.Sprintf("10.0.0.%d", i))
		assert.LessOrEqual(t, rl.Len(), 3)
	}

	// the most recent clients survive eviction and keep their spent buckets
	assert.False(t, rl.Allow("10.0.0.99"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, WithIdleTTL(time.Minute), withLimiterClock(func() time.Time { return now }))

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	require.Equal(t, 2, rl.Len())

	now = now.Add(2 * time.Minute)
	rl.Allow("10.0.0.3")
	assert.Equal(t, 1, rl.Len())
}

func TestClientIPResolver(t *testing.T) {
	resolver, err := NewClientIPResolver([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"untrusted peer ignores forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.20:5000", "198.51.100.20"},
		{"untrusted peer ignores real ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "198.51.100.20:5000", "198.51.100.20"},
		{"trusted peer uses rightmost untrusted hop", map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.7, 10.0.0.5"}, "10.0.0.2:5000", "203.0.113.7"},
		{"trusted single address", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "192.0.2.1:443", "203.0.113.9"},
		{"trusted peer real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"trusted peer garbage header", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.2:5000", "10.0.0.2"},
		{"ipv6 peer", nil, "[2001:db8::1]:41000", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, resolver.ClientIP(req))
		})
	}

	_, err = NewClientIPResolver([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = NewClientIPResolver([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestGetClientIP_UsesPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:41000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "192.0.2.9", getClientIP(req))
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/v1/predict", routeLabel("/api/v1/predict"))
	assert.Equal(t, "unmatched", routeLabel("/api/v1/predict/123"))
	assert.Equal(t, "unmatched", routeLabel("/wp-admin"))
}

func TestCORSMiddleware_Origins(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://*.example.com", "http://localhost:3000"}
	cors := NewCORSMiddleware(cfg)

	assert.True(t, cors.isOriginAllowed("https://dashboard.example.com"))
	assert.True(t, cors.isOriginAllowed("http://localhost:3000"))
	assert.False(t, cors.isOriginAllowed("https://example.org"))
	assert.False(t, cors.isOriginAllowed(""))
}

func TestContractValidator(t *testing.T) {
	validator, err := NewContractValidator(OpenAPISpec())
	require.NoError(t, err)

	t.Run("object payload conforms", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(validTransaction))
		req.Header.Set("Content-Type", contentTypeJSON)
		require.NoError(t, validator.ValidateRequest(req))

		var p map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&p), "body must be readable after validation")
		assert.Equal(t, "Corner Cafe", p["merchant"])
	})

	t.Run("array payload violates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("[1]"))
		req.Header.Set("Content-Type", contentTypeJSON)
		assert.Error(t, validator.ValidateRequest(req))
	})

	t.Run("failure body conforms", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validTransaction))
		req.Header.Set("Content-Type", contentTypeJSON)
		header := http.Header{"Content-Type": []string{contentTypeJSON}}
		body := []byte(`{"error":"No transaction data provided","fraud":false,"confidence":0}`)
		assert.NoError(t, validator.ValidateResponse(req, http.StatusBadRequest, header, body))
	})

	t.Run("schema", func(t *testing.T) {
		assert.NoError(t, validator.ValidateSchema("Failure", map[string]any{"error": "x", "fraud": false, "confidence": 0.0}))
		assert.Error(t, validator.ValidateSchema("Failure", map[string]any{"error": "x"}))
		assert.Error(t, validator.ValidateSchema("Missing", nil))
	})
}

func TestContractValidationMiddleware_Fail(t *testing.T) {
	validator, err := NewContractValidator(OpenAPISpec())
	require.NoError(t, err)

	cfg := DefaultContractValidationConfig()
	cfg.FailOnValidationError = true
	cfg.ValidateResponses = true

	called := false
	h := NewContractValidationMiddleware(validator, cfg, testLogger()).Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		writeFailure(w, http.StatusBadRequest, "No transaction data provided")
	}))

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("[1]"))
	req.Header.Set("Content-Type", contentTypeJSON)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.False(t, called)
	assertFailure(t, w, http.StatusBadRequest, "Request does not conform to API contract")

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(validTransaction))
	req.Header.Set("Content-Type", contentTypeJSON)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.True(t, called)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
