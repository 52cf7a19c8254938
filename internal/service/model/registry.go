package model

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/storage"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/telemetry"
	"github.com/davidleathers/fraud-scoring-service/internal/ml"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
)

// Observer receives model lifecycle measurements. *metrics.Registry
// satisfies it.
type Observer interface {
	RecordModelLoad(ctx context.Context, duration time.Duration, source string, success bool)
	SetModelReady(ready bool)
	SetBootstrapAccuracy(accuracy float64)
}

type noopObserver struct{}

func (noopObserver) RecordModelLoad(context.Context, time.Duration, string, bool) {}
func (noopObserver) SetModelReady(bool)                                           {}
func (noopObserver) SetBootstrapAccuracy(float64)                                 {}

// Registry owns the published artifact triple. Readers take a snapshot with
// a single atomic load and never block; writers build a complete new
// Artifacts value and swap it in under mu.
type Registry struct {
	store     storage.Store
	trainer   *Trainer
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	merchants features.MerchantBucketer

	mu      sync.Mutex
	current atomic.Pointer[Artifacts]
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLogger sets the logger; slog.Default() otherwise
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithObserver attaches lifecycle metrics
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithMerchantBucketer sets the bucketing the extractor uses; published
// triples must have been trained with the same seed
func WithMerchantBucketer(b features.MerchantBucketer) RegistryOption {
	return func(r *Registry) {
		r.merchants = b
	}
}

// NewRegistry creates an unloaded registry
func NewRegistry(store storage.Store, trainer *Trainer, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:     store,
		trainer:   trainer,
		logger:    slog.Default(),
		observer:  noopObserver{},
		tracer:    telemetry.Tracer("fraud-scoring/model"),
		merchants: features.DefaultMerchantBucketer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load publishes the stored triple. If it is missing, unreadable or
// inconsistent the registry bootstraps exactly once; if that fails too the
// error is returned and the registry stays unloaded.
func (r *Registry) Load(ctx context.Context) (*Artifacts, error) {
	ctx, span := r.tracer.Start(ctx, "model.Load")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	a, err := r.readStore(ctx)
	if err == nil {
		r.publish(a)
		r.observer.RecordModelLoad(ctx, time.Since(start), string(SourceStorage), true)
		r.logger.InfoContext(ctx, "model loaded from storage",
			"generation", a.Generation,
			"kind", a.Classifier.Kind(),
			"features", a.Schema.Len(),
			"backend", r.store.Backend())
		return a, nil
	}

	r.observer.RecordModelLoad(ctx, time.Since(start), string(SourceStorage), false)
	r.logger.WarnContext(ctx, "stored model unusable, bootstrapping",
		"backend", r.store.Backend(),
		"error", err)

	a, bootErr := r.bootstrapLocked(ctx)
	if bootErr != nil {
		telemetry.RecordError(span, bootErr)
		return nil, fmt.Errorf("bootstrap after load failure (%v): %w", err, bootErr)
	}
	return a, nil
}

// Bootstrap trains a fresh triple, persists it and publishes it
func (r *Registry) Bootstrap(ctx context.Context) (*Artifacts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bootstrapLocked(ctx)
}

func (r *Registry) bootstrapLocked(ctx context.Context) (*Artifacts, error) {
	ctx, span := r.tracer.Start(ctx, "model.Bootstrap")
	defer span.End()

	if r.trainer == nil {
		return nil, fmt.Errorf("no trainer configured")
	}

	start := time.Now()
	a, err := r.trainer.Train(ctx)
	if err == nil {
		err = a.Validate()
	}
	if err == nil {
		err = a.CheckMerchantHash(r.merchants)
	}
	if err != nil {
		r.observer.RecordModelLoad(ctx, time.Since(start), string(SourceBootstrap), false)
		telemetry.RecordError(span, err)
		r.logger.ErrorContext(ctx, "bootstrap training failed", "error", err)
		return nil, fmt.Errorf("bootstrap training: %w", err)
	}

	// A model that cannot be persisted still serves; the next start retrains.
	if blobs, encErr := a.Encode(); encErr != nil {
		r.logger.ErrorContext(ctx, "encoding bootstrap model failed", "error", encErr)
	} else if saveErr := r.store.Save(ctx, blobs); saveErr != nil {
		r.logger.ErrorContext(ctx, "persisting bootstrap model failed",
			"backend", r.store.Backend(),
			"error", saveErr)
	}

	r.publish(a)
	r.observer.RecordModelLoad(ctx, time.Since(start), string(SourceBootstrap), true)
	if a.Report != nil {
		r.observer.SetBootstrapAccuracy(a.Report.Test.Accuracy)
		span.SetAttributes(
			attribute.Int("samples", a.Report.Samples),
			attribute.Int("fraud_count", a.Report.FraudCount),
		)
		r.logger.InfoContext(ctx, "bootstrap model trained",
			"generation", a.Generation,
			"algorithm", a.Report.Algorithm,
			"samples", a.Report.Samples,
			"fraud_count", a.Report.FraudCount,
			"fraud_rate", a.Report.FraudRate,
			"topped_up", a.Report.ToppedUp,
			"train_accuracy", a.Report.Train.Accuracy,
			"test_accuracy", a.Report.Test.Accuracy,
			"test_precision", a.Report.Test.Precision,
			"test_recall", a.Report.Test.Recall,
			"duration", a.Report.Duration)
	}
	return a, nil
}

// Reload re-reads storage and publishes the result. On failure the current
// snapshot stays in place and no bootstrap is attempted.
func (r *Registry) Reload(ctx context.Context) (*Artifacts, error) {
	ctx, span := r.tracer.Start(ctx, "model.Reload")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	a, err := r.readStore(ctx)
	if err != nil {
		r.observer.RecordModelLoad(ctx, time.Since(start), "reload", false)
		telemetry.RecordError(span, err)
		r.logger.ErrorContext(ctx, "model reload failed, keeping current model", "error", err)
		return nil, err
	}

	r.publish(a)
	r.observer.RecordModelLoad(ctx, time.Since(start), "reload", true)
	r.logger.InfoContext(ctx, "model reloaded", "generation", a.Generation)
	return a, nil
}

// Install validates and publishes a copy of an externally built triple.
// Later changes to a do not reach the published snapshot.
func (r *Registry) Install(a *Artifacts) error {
	if err := a.Validate(); err != nil {
		return errors.NewModelInconsistentError(errors.CodeArtifactCorrupt, "refusing to install inconsistent model").WithCause(err)
	}
	if err := a.CheckMerchantHash(r.merchants); err != nil {
		return errors.NewModelInconsistentError(errors.CodeMerchantHashDrift, "refusing to install model with different merchant hash").WithCause(err)
	}

	clf, err := ml.CloneClassifier(a.Classifier)
	if err != nil {
		return errors.NewModelInconsistentError(errors.CodeArtifactCorrupt, "refusing to install model that cannot be copied").WithCause(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	installed := *a
	installed.Classifier = clf
	installed.Scaler = a.Scaler.Clone()
	installed.Schema = a.Schema.Clone()
	if installed.Source == "" {
		installed.Source = SourceInstalled
	}
	r.publish(&installed)
	return nil
}

// Unload clears the published triple; scoring fails with ModelNotLoaded
func (r *Registry) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current.Store(nil)
	r.observer.SetModelReady(false)
	r.logger.Info("model unloaded")
}

// IsReady reports whether a triple is published
func (r *Registry) IsReady() bool {
	return r.current.Load() != nil
}

// Snapshot returns the published triple or ErrModelNotLoaded. Everything a
// request needs must come from one snapshot.
func (r *Registry) Snapshot() (*Artifacts, error) {
	a := r.current.Load()
	if a == nil {
		return nil, errors.ErrModelNotLoaded
	}
	return a, nil
}

// Store returns the backing artifact store
func (r *Registry) Store() storage.Store {
	return r.store
}

// ReadStore decodes and validates the stored triple without publishing it
func (r *Registry) ReadStore(ctx context.Context) (*Artifacts, error) {
	return r.readStore(ctx)
}

func (r *Registry) readStore(ctx context.Context) (*Artifacts, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no artifact store configured")
	}

	var blobs [3][]byte
	for i, name := range []string{BlobClassifier, BlobScaler, BlobSchema} {
		spanCtx, span := telemetry.StartStorageSpan(ctx, r.tracer, r.store.Backend(), "load", name)
		data, err := r.store.Load(spanCtx, name)
		telemetry.RecordError(span, err)
		span.End()
		if err != nil {
			return nil, storeLoadError(r.store.Backend(), name, err)
		}
		blobs[i] = data
	}

	a, err := DecodeArtifacts(blobs[0], blobs[1], blobs[2])
	if err != nil {
		return nil, errors.NewModelInconsistentError(errors.CodeArtifactCorrupt, "stored model is invalid").WithCause(err)
	}
	if err := a.CheckMerchantHash(r.merchants); err != nil {
		return nil, errors.NewModelInconsistentError(errors.CodeMerchantHashDrift, "stored model uses a different merchant hash").WithCause(err)
	}
	return a, nil
}

// storeLoadError separates a missing artifact from a failing backend
func storeLoadError(backend, name string, err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NewNotFoundError("model artifact "+name).
			WithCause(err).
			WithDetails(map[string]interface{}{"artifact": name, "backend": backend})
	}
	return errors.NewExternalError("artifact_store", "loading "+name+" failed").
		WithCause(err).
		WithDetails(map[string]interface{}{"service": "artifact_store", "artifact": name, "backend": backend})
}

func (r *Registry) publish(a *Artifacts) {
	r.current.Store(a)
	r.observer.SetModelReady(true)
}
