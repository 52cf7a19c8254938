package rest

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
)

// CodeContractViolation is returned when a request breaks the API contract
// and validation is configured to fail
const CodeContractViolation = "CONTRACT_VALIDATION_ERROR"

// ContractValidationConfig configures contract validation behavior
type ContractValidationConfig struct {
	// ValidateResponses buffers each response and checks it after the handler returns
	ValidateResponses bool

	// FailOnValidationError rejects invalid requests with 400 instead of logging them
	FailOnValidationError bool

	SkipValidationForPaths []string
}

// DefaultContractValidationConfig logs request violations and leaves the
// verdict to the handler
func DefaultContractValidationConfig() ContractValidationConfig {
	return ContractValidationConfig{
		SkipValidationForPaths: []string{"/health", "/healthz", "/ready", "/metrics", "/openapi.yaml"},
	}
}

// ContractValidationMiddleware validates requests and responses against the OpenAPI contract
type ContractValidationMiddleware struct {
	validator *ContractValidator
	config    ContractValidationConfig
	logger    *slog.Logger
}

// NewContractValidationMiddleware creates a new contract validation middleware
func NewContractValidationMiddleware(validator *ContractValidator, config ContractValidationConfig, logger *slog.Logger) *ContractValidationMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractValidationMiddleware{
		validator: validator,
		config:    config,
		logger:    logger,
	}
}

// Middleware returns the HTTP middleware function
func (cvm *ContractValidationMiddleware) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cvm.shouldSkipValidation(r) {
				next.ServeHTTP(w, r)
				return
			}

			if err := cvm.validator.ValidateRequest(r); err != nil {
				cvm.logger.WarnContext(r.Context(), "contract validation failed",
					"type", "request",
					"request_id", RequestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"error", err)
				if cvm.config.FailOnValidationError {
					writeJSON(w, http.StatusBadRequest, FailureResponse{
						Error: "Request does not conform to API contract",
					})
					return
				}
			}

			if !cvm.config.ValidateResponses {
				next.ServeHTTP(w, r)
				return
			}

			capture := &contractResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if err := cvm.validator.ValidateResponse(r, capture.statusCode, capture.Header(), capture.body.Bytes()); err != nil {
				cvm.logger.ErrorContext(r.Context(), "contract validation failed",
					"type", "response",
					"request_id", RequestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", capture.statusCode,
					"error", err)
			}
		})
	}
}

func (cvm *ContractValidationMiddleware) shouldSkipValidation(r *http.Request) bool {
	for _, skip := range cvm.config.SkipValidationForPaths {
		if r.URL.Path == skip || strings.HasPrefix(r.URL.Path, skip+"/") {
			return true
		}
	}
	return false
}

// contractResponseWriter tees the response body for validation
type contractResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (crw *contractResponseWriter) WriteHeader(statusCode int) {
	crw.statusCode = statusCode
	crw.ResponseWriter.WriteHeader(statusCode)
}

func (crw *contractResponseWriter) Write(data []byte) (int, error) {
	crw.body.Write(data)
	return crw.ResponseWriter.Write(data)
}
