package rest

import (
	"time"

	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
)

// Response headers
const (
	HeaderRequestID       = "X-Request-ID"
	HeaderModelGeneration = "X-Model-Generation"
	HeaderTraceID         = "X-Trace-ID"
)

const contentTypeJSON = "application/json"

// FailureResponse is the body of every failed request. fraud is always
// false and confidence 0; callers that must fail closed apply their own
// override.
type FailureResponse struct {
	Error      string  `json:"error"`
	Fraud      bool    `json:"fraud"`
	Confidence float64 `json:"confidence"`
}

// ReloadResponse reports the snapshot published by a reload
type ReloadResponse struct {
	Status     string       `json:"status"`
	Generation string       `json:"generation"`
	Kind       string       `json:"kind"`
	Source     model.Source `json:"source"`
	ReloadedAt time.Time    `json:"reloaded_at"`
}
