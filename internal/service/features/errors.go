package features

import (
	"errors"
	"fmt"

	domainErrors "github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
)

// Reason identifies why extraction or vectorization failed
type Reason string

const (
	ReasonMalformedTimestamp Reason = domainErrors.CodeMalformedTimestamp
	ReasonInvalidAmount      Reason = domainErrors.CodeInvalidAmount
	ReasonSchemaMismatch     Reason = domainErrors.CodeSchemaMismatch
)

// ExtractionError reports a failure to derive or order features.
// MalformedTimestamp and InvalidAmount are caused by the payload;
// SchemaMismatch means the model schema names a feature the extractor
// does not produce.
type ExtractionError struct {
	Reason  Reason
	Feature string
	Value   any
	Err     error
}

func (e *ExtractionError) Error() string {
	msg := string(e.Reason)
	if e.Feature != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Feature)
	}
	if e.Value != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Value)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsReason reports whether err is an ExtractionError with the given reason
func IsReason(err error, reason Reason) bool {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Reason == reason
	}
	return false
}
