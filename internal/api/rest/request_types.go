package rest

import (
	stderrors "errors"
	"net/http"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
)

// Request decoding error codes
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

// decodeTransaction reads the prediction body. An absent, empty or
// non-object body is EMPTY_PAYLOAD; anything unparsable is INVALID_JSON.
func decodeTransaction(w http.ResponseWriter, r *http.Request, maxBytes int64) (transaction.Payload, error) {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer body.Close()

	p, err := transaction.Decode(body)
	if err == nil {
		return p, nil
	}

	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.Is(err, transaction.ErrEmptyPayload):
		return p, errors.NewValidationError(errors.CodeEmptyPayload, "No transaction data provided")
	case stderrors.As(err, &tooLarge):
		appErr := errors.NewValidationError(CodePayloadTooLarge, "Request body too large")
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return p, appErr
	default:
		return p, errors.NewValidationError(CodeInvalidJSON, "Invalid JSON payload").WithCause(err)
	}
}
