package errors

import (
	"errors"
	"fmt"
)

// Error types for different failure classes
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeExternal    ErrorType = "external"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeModel       ErrorType = "model"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
)

// Error codes surfaced by the scoring core
const (
	CodeBadInput           = "BAD_INPUT"
	CodeEmptyPayload       = "EMPTY_PAYLOAD"
	CodeMalformedTimestamp = "MALFORMED_TIMESTAMP"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeSchemaMismatch     = "SCHEMA_MISMATCH"
	CodeDimensionMismatch  = "DIMENSION_MISMATCH"
	CodeModelInconsistent  = "MODEL_INCONSISTENT"
	CodeModelNotLoaded     = "MODEL_NOT_LOADED"
	CodeArtifactNotFound   = "ARTIFACT_NOT_FOUND"
	CodeArtifactCorrupt    = "ARTIFACT_CORRUPT"
	CodeMerchantHashDrift  = "MERCHANT_HASH_DRIFT"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

// NewBadInputError reports a client-caused payload problem. reason is the
// specific extraction failure code (MALFORMED_TIMESTAMP, INVALID_AMOUNT, ...).
func NewBadInputError(reason, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeBadInput,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
		Details:    map[string]interface{}{"reason": reason},
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternal,
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "EXTERNAL_SERVICE_ERROR",
		Message:    fmt.Sprintf("%s service error: %s", service, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

// NewModelInconsistentError reports that the loaded artifact triple does not
// agree with itself or with the feature extractor. It is a server fault and
// is never retried: the same input fails identically until a reload.
func NewModelInconsistentError(reason, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeModel,
		Code:       CodeModelInconsistent,
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
		Details:    map[string]interface{}{"reason": reason},
	}
}

func NewModelNotLoadedError() *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       CodeModelNotLoaded,
		Message:    "Model not loaded",
		Retryable:  false,
		StatusCode: 503,
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    message,
		Retryable:  true,
		StatusCode: 429,
	}
}

// Predefined common errors
var (
	ErrInvalidInput   = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrModelNotLoaded = NewModelNotLoadedError()
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsCode checks if an error carries a specific code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Reason returns the "reason" detail of an AppError, if any
func Reason(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Details != nil {
		if r, ok := appErr.Details["reason"].(string); ok {
			return r
		}
	}
	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
