package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
	"github.com/davidleathers/fraud-scoring-service/internal/ml"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
)

// TrainingConfig controls a bootstrap training run
type TrainingConfig struct {
	Dataset          DatasetConfig
	TestFraction     float64
	Algorithm        string
	Forest           ml.ForestConfig
	Logistic         ml.LogisticConfig
	MerchantHashSeed uint64
}

// DefaultTrainingConfig returns the standard bootstrap parameters
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Dataset:          DefaultDatasetConfig(),
		TestFraction:     0.2,
		Algorithm:        ml.KindRandomForest,
		Forest:           ml.DefaultForestConfig(),
		Logistic:         ml.DefaultLogisticConfig(),
		MerchantHashSeed: features.DefaultMerchantHashSeed,
	}
}

// TrainingConfigFrom maps the model section of the service config
func TrainingConfigFrom(mc config.ModelConfig) TrainingConfig {
	cfg := mc.Bootstrap
	tc := DefaultTrainingConfig()
	tc.MerchantHashSeed = mc.MerchantHashSeed
	tc.Dataset.Seed = cfg.Seed
	tc.Dataset.Samples = cfg.Samples
	tc.Dataset.LabelNoise = cfg.LabelNoise
	tc.Dataset.MinFraud = cfg.MinFraud
	tc.Dataset.FraudTopUp = cfg.FraudTopUp
	tc.TestFraction = cfg.TestFraction
	tc.Algorithm = cfg.Algorithm
	tc.Forest.Trees = cfg.Trees
	tc.Forest.MaxDepth = cfg.MaxDepth
	tc.Forest.MinSamplesSplit = cfg.MinSamplesSplit
	tc.Forest.Seed = cfg.Seed
	tc.Forest.Workers = cfg.Workers
	return tc
}

// Trainer fits a fresh artifact triple on synthetic data
type Trainer struct {
	cfg TrainingConfig
	now func() time.Time
}

// NewTrainer creates a trainer
func NewTrainer(cfg TrainingConfig) *Trainer {
	return &Trainer{cfg: cfg, now: time.Now}
}

// Config returns the training parameters
func (t *Trainer) Config() TrainingConfig {
	return t.cfg
}

// Train generates the dataset, fits the scaler on the training split, fits
// the classifier on scaled rows and evaluates on both splits. The same
// configuration always yields the same probabilities.
func (t *Trainer) Train(ctx context.Context) (*Artifacts, error) {
	start := t.now()

	ds, err := GenerateDataset(t.cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("generating dataset: %w", err)
	}

	split, err := StratifiedSplit(ds, t.cfg.TestFraction, t.cfg.Dataset.Seed)
	if err != nil {
		return nil, err
	}

	scaler, err := ml.FitStandardScaler(split.TrainX)
	if err != nil {
		return nil, fmt.Errorf("fitting scaler: %w", err)
	}
	trainX, err := scaler.TransformAll(split.TrainX)
	if err != nil {
		return nil, err
	}
	testX, err := scaler.TransformAll(split.TestX)
	if err != nil {
		return nil, err
	}

	var clf ml.Classifier
	switch t.cfg.Algorithm {
	case ml.KindRandomForest, "":
		clf, err = ml.FitRandomForest(ctx, trainX, split.TrainY, t.cfg.Forest)
	case ml.KindLogisticRegression:
		clf, err = ml.FitLogisticRegression(ctx, trainX, split.TrainY, t.cfg.Logistic)
	default:
		return nil, fmt.Errorf("unknown algorithm %q", t.cfg.Algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("fitting classifier: %w", err)
	}

	trainEval, err := ml.Evaluate(clf, trainX, split.TrainY)
	if err != nil {
		return nil, err
	}
	testEval, err := ml.Evaluate(clf, testX, split.TestY)
	if err != nil {
		return nil, err
	}

	fraud := ds.FraudCount()
	report := &TrainingReport{
		Algorithm:  clf.Kind(),
		Seed:       t.cfg.Dataset.Seed,
		Samples:    len(ds.Y),
		FraudCount: fraud,
		FraudRate:  float64(fraud) / float64(len(ds.Y)),
		ToppedUp:   ds.ToppedUp,
		RuleHits:   ds.RuleHits,
		Train:      trainEval,
		Test:       testEval,
		Duration:   t.now().Sub(start),
	}

	return &Artifacts{
		Generation:       uuid.NewString(),
		Classifier:       clf,
		Scaler:           scaler,
		Schema:           ds.Schema.Clone(),
		MerchantHash:     features.MerchantHashVersion,
		MerchantHashSeed: t.cfg.MerchantHashSeed,
		Source:           SourceBootstrap,
		CreatedAt:        t.now().UTC(),
		Report:           report,
	}, nil
}
