package scoring

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-scoring-service/internal/ml"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
)

// service implements the Service interface
type service struct {
	models    ModelProvider
	extractor FeatureExtractor
	logger    *slog.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures the pipeline
type Option func(*service)

// WithLogger sets the logger; slog.Default() otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMetrics attaches a per-request metrics recorder
func WithMetrics(m MetricsRecorder) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now; the clock stamps results and stands in for a
// missing transaction date
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// NewService creates the scoring pipeline
func NewService(models ModelProvider, extractor FeatureExtractor, opts ...Option) Service {
	s := &service{
		models:    models,
		extractor: extractor,
		logger:    slog.Default(),
		metrics:   noopRecorder{},
		tracer:    telemetry.Tracer(instrumentationName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score runs the pipeline once against a single artifact snapshot. Failures
// are returned as *errors.AppError and never retried.
func (s *service) Score(ctx context.Context, p transaction.Payload) (*ScoreResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartScoreSpan(ctx, s.tracer, p.MerchantName())
	defer span.End()

	result, err := s.score(ctx, p)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		appErr := s.classify(ctx, err)
		telemetry.RecordError(span, appErr)
		s.metrics.RecordScoreError(ctx, elapsed, errorCode(appErr))
		return nil, appErr
	}

	span.SetAttributes(
		attribute.Float64("fraud.probability", result.FraudProbability),
		attribute.Bool("fraud.verdict", result.IsFraud),
		attribute.String("model.generation", result.ModelGeneration),
	)
	s.metrics.RecordScore(ctx, elapsed, result.FraudProbability, result.IsFraud, result.ModelGeneration)
	return result, nil
}

func (s *service) score(ctx context.Context, p transaction.Payload) (*ScoreResult, error) {
	snap, err := s.models.Snapshot()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record, err := s.extractor.Extract(ctx, p, now)
	if err != nil {
		return nil, err
	}

	x, err := features.Vectorize(record, snap.Schema)
	if err != nil {
		return nil, err
	}
	x, err = snap.Scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	prob, err := snap.Classifier.PredictProbability(x)
	if err != nil {
		return nil, err
	}

	isFraud, confidence := Verdict(prob)
	return &ScoreResult{
		IsFraud:          isFraud,
		FraudProbability: prob,
		Confidence:       confidence,
		FeaturesUsed:     record,
		Timestamp:        now,
		ModelGeneration:  snap.Generation,
	}, nil
}

// classify maps a pipeline failure onto the error taxonomy and logs server
// faults
func (s *service) classify(ctx context.Context, err error) *errors.AppError {
	var extErr *features.ExtractionError
	var dimErr *ml.DimensionMismatchError

	switch {
	case errors.IsCode(err, errors.CodeModelNotLoaded):
		return errors.NewModelNotLoadedError()

	case stderrors.As(err, &extErr) && extErr.Reason == features.ReasonSchemaMismatch:
		s.logger.ErrorContext(ctx, "model schema names a feature the extractor does not produce",
			"reason", errors.CodeSchemaMismatch,
			"feature", extErr.Feature,
			"error", err)
		return errors.NewModelInconsistentError(errors.CodeSchemaMismatch, "model schema does not match extracted features").WithCause(err)

	case extErr != nil:
		s.logger.DebugContext(ctx, "rejected payload",
			"reason", extErr.Reason,
			"feature", extErr.Feature)
		return errors.NewBadInputError(string(extErr.Reason), err.Error()).WithCause(err)

	case stderrors.As(err, &dimErr):
		s.logger.ErrorContext(ctx, "model artifacts disagree on feature count",
			"reason", errors.CodeDimensionMismatch,
			"component", dimErr.Component,
			"expected", dimErr.Expected,
			"got", dimErr.Got)
		return errors.NewModelInconsistentError(errors.CodeDimensionMismatch, "model artifacts are inconsistent").WithCause(err)

	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewInternalError("scoring cancelled").WithCause(err)
	}

	s.logger.ErrorContext(ctx, "scoring failed", "error", err)
	return errors.NewInternalError("scoring failed").WithCause(err)
}

// ModelInfo describes the published snapshot
func (s *service) ModelInfo() *ModelInfo {
	snap, err := s.models.Snapshot()
	if err != nil {
		return &ModelInfo{ModelLoaded: false}
	}
	return describe(snap)
}

func describe(a *model.Artifacts) *ModelInfo {
	info := &ModelInfo{
		ModelLoaded:  true,
		Kind:         a.Classifier.Kind(),
		Generation:   a.Generation,
		Source:       a.Source,
		Schema:       a.Schema.Clone(),
		NumFeatures:  a.Schema.Len(),
		MerchantHash: a.MerchantHash,
		Report:       a.Report,
	}
	if !a.CreatedAt.IsZero() {
		created := a.CreatedAt
		info.CreatedAt = &created
	}
	return info
}

func errorCode(err *errors.AppError) string {
	if reason := errors.Reason(err); reason != "" {
		return reason
	}
	return err.Code
}
