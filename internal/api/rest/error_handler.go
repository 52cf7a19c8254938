package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
)

// HandleError maps an error onto a status code, error code and the message
// returned to the client. Server faults never expose their cause.
func HandleError(err error) (status int, code, message string) {
	if err == nil {
		return http.StatusOK, "", ""
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timed out"
	}
	if stderrors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout, "REQUEST_CANCELED", "Request was canceled"
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status = appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code = appErr.Code
		if reason := errors.Reason(appErr); reason != "" {
			code = reason
		}
		message = appErr.Message
		if appErr.Code == errors.CodeBadInput && appErr.Cause != nil {
			message = appErr.Cause.Error()
		}
		return status, code, message
	}

	return http.StatusInternalServerError, errors.CodeInternal, "An internal error occurred"
}

// writeError writes the failure body for err and logs server faults
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := HandleError(err)

	logger := slog.Default()
	attrs := []any{
		"request_id", RequestIDFromContext(r.Context()),
		"status", status,
		"code", code,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		logger.DebugContext(r.Context(), "request rejected", attrs...)
	}

	if code == errors.CodeModelNotLoaded {
		w.Header().Set("Retry-After", "5")
	}
	writeFailure(w, status, message)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, FailureResponse{
		Error:      message,
		Fraud:      false,
		Confidence: 0.0,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
