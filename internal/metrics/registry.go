package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the scoring and model lifecycle metrics
type Registry struct {
	meter metric.Meter

	// Scoring Metrics
	ScoreDuration     metric.Float64Histogram
	ScoreCounter      metric.Int64Counter
	ScoreErrorCounter metric.Int64Counter
	FraudProbability  metric.Float64Histogram
	ScoresPerSecond   metric.Float64ObservableGauge

	// Model Metrics
	ModelLoadCounter      metric.Int64Counter
	ModelLoadDuration     metric.Float64Histogram
	ModelReady            metric.Int64ObservableGauge
	BootstrapTestAccuracy metric.Float64ObservableGauge

	// State for observable metrics
	mu              sync.RWMutex
	modelReady      bool
	testAccuracy    float64
	scoresProcessed int64
	lastScoreCount  int64
	lastScoreTime   time.Time
}

// NewRegistry creates a registry on the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithProvider(otel.GetMeterProvider(), meterName)
}

// NewRegistryWithProvider creates a registry on an explicit meter provider
func NewRegistryWithProvider(provider metric.MeterProvider, meterName string) (*Registry, error) {
	r := &Registry{
		meter:         provider.Meter(meterName),
		lastScoreTime: time.Now(),
	}

	if err := r.initScoreMetrics(); err != nil {
		return nil, err
	}
	if err := r.initModelMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

// initScoreMetrics initializes per-request scoring metrics
func (r *Registry) initScoreMetrics() error {
	var err error

	r.ScoreDuration, err = r.meter.Float64Histogram(
		"fraud.score.duration",
		metric.WithDescription("Duration of one scoring request in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50),
	)
	if err != nil {
		return err
	}

	r.ScoreCounter, err = r.meter.Int64Counter(
		"fraud.score.total",
		metric.WithDescription("Total number of scored transactions by verdict"),
	)
	if err != nil {
		return err
	}

	r.ScoreErrorCounter, err = r.meter.Int64Counter(
		"fraud.score.errors_total",
		metric.WithDescription("Total number of failed scoring requests by error code"),
	)
	if err != nil {
		return err
	}

	r.FraudProbability, err = r.meter.Float64Histogram(
		"fraud.score.probability",
		metric.WithDescription("Distribution of returned fraud probabilities"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9),
	)
	if err != nil {
		return err
	}

	r.ScoresPerSecond, err = r.meter.Float64ObservableGauge(
		"fraud.score.throughput_per_second",
		metric.WithDescription("Current scoring throughput per second"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			now := time.Now()
			elapsed := now.Sub(r.lastScoreTime).Seconds()
			if elapsed > 0 {
				o.Observe(float64(r.scoresProcessed-r.lastScoreCount) / elapsed)
				r.lastScoreCount = r.scoresProcessed
				r.lastScoreTime = now
			}
			return nil
		}),
	)
	return err
}

// initModelMetrics initializes model lifecycle metrics
func (r *Registry) initModelMetrics() error {
	var err error

	r.ModelLoadCounter, err = r.meter.Int64Counter(
		"fraud.model.loads_total",
		metric.WithDescription("Model publications by source and outcome"),
	)
	if err != nil {
		return err
	}

	r.ModelLoadDuration, err = r.meter.Float64Histogram(
		"fraud.model.load_duration",
		metric.WithDescription("Duration of model load or bootstrap in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}

	r.ModelReady, err = r.meter.Int64ObservableGauge(
		"fraud.model.ready",
		metric.WithDescription("1 when a model is loaded and scoring is possible"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			if r.modelReady {
				o.Observe(1)
			} else {
				o.Observe(0)
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.BootstrapTestAccuracy, err = r.meter.Float64ObservableGauge(
		"fraud.model.bootstrap_test_accuracy",
		metric.WithDescription("Held-out accuracy of the last bootstrap-trained model"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.testAccuracy)
			return nil
		}),
	)
	return err
}

// RecordScore records a successful scoring request
func (r *Registry) RecordScore(ctx context.Context, durationMS, probability float64, isFraud bool, generation string) {
	attrs := metric.WithAttributes(
		attribute.Bool("fraud", isFraud),
		attribute.String("model_generation", generation),
	)
	r.ScoreDuration.Record(ctx, durationMS, attrs)
	r.ScoreCounter.Add(ctx, 1, attrs)
	r.FraudProbability.Record(ctx, probability)

	r.mu.Lock()
	r.scoresProcessed++
	r.mu.Unlock()
}

// RecordScoreError records a failed scoring request
func (r *Registry) RecordScoreError(ctx context.Context, durationMS float64, code string) {
	attrs := metric.WithAttributes(attribute.String("code", code))
	r.ScoreDuration.Record(ctx, durationMS, attrs)
	r.ScoreErrorCounter.Add(ctx, 1, attrs)
}

// RecordModelLoad records a load, bootstrap or reload attempt
func (r *Registry) RecordModelLoad(ctx context.Context, duration time.Duration, source string, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("success", success),
	)
	r.ModelLoadCounter.Add(ctx, 1, attrs)
	r.ModelLoadDuration.Record(ctx, duration.Seconds(), attrs)
}

// SetModelReady updates the readiness gauge
func (r *Registry) SetModelReady(ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelReady = ready
}

// SetBootstrapAccuracy updates the bootstrap accuracy gauge
func (r *Registry) SetBootstrapAccuracy(accuracy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testAccuracy = accuracy
}
