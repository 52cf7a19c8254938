package scoring

import (
	"context"
	"time"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
)

// Service scores transactions against the published model
type Service interface {
	// Score runs extract, vectorize, scale and classify on one payload
	Score(ctx context.Context, p transaction.Payload) (*ScoreResult, error)
	// ModelInfo describes the published model; ModelLoaded is false when none is
	ModelInfo() *ModelInfo
}

// ModelProvider hands out the current artifact snapshot. *model.Registry
// satisfies it.
type ModelProvider interface {
	Snapshot() (*model.Artifacts, error)
}

// FeatureExtractor derives the feature record from a payload
type FeatureExtractor interface {
	Extract(ctx context.Context, p transaction.Payload, now time.Time) (features.Record, error)
}

// MetricsRecorder receives per-request measurements. *metrics.Registry
// satisfies it.
type MetricsRecorder interface {
	RecordScore(ctx context.Context, durationMS, probability float64, isFraud bool, generation string)
	RecordScoreError(ctx context.Context, durationMS float64, code string)
}

type noopRecorder struct{}

func (noopRecorder) RecordScore(context.Context, float64, float64, bool, string) {}
func (noopRecorder) RecordScoreError(context.Context, float64, string)           {}
