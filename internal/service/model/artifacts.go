package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/storage"
	"github.com/davidleathers/fraud-scoring-service/internal/ml"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
)

// Artifacts is the classifier, scaler and schema triple that is always
// published together. A published value is never mutated.
type Artifacts struct {
	Generation       string
	Classifier       ml.Classifier
	Scaler           *ml.StandardScaler
	Schema           features.Schema
	MerchantHash     string
	MerchantHashSeed uint64
	Source           Source
	CreatedAt        time.Time
	Report           *TrainingReport
}

// TrainingReport summarizes a bootstrap training run
type TrainingReport struct {
	Algorithm  string         `json:"algorithm"`
	Seed       uint64         `json:"seed"`
	Samples    int            `json:"samples"`
	FraudCount int            `json:"fraud_count"`
	FraudRate  float64        `json:"fraud_rate"`
	ToppedUp   int            `json:"topped_up"`
	RuleHits   map[string]int `json:"rule_hits"`
	Train      ml.Evaluation  `json:"train"`
	Test       ml.Evaluation  `json:"test"`
	Duration   time.Duration  `json:"duration"`
}

// Validate checks the triple is internally consistent and compatible with
// the feature extractor.
func (a *Artifacts) Validate() error {
	if a == nil {
		return fmt.Errorf("artifacts are nil")
	}
	if a.Generation == "" {
		return fmt.Errorf("artifacts have no generation id")
	}
	if a.Classifier == nil || a.Scaler == nil {
		return fmt.Errorf("artifacts are incomplete")
	}
	if err := a.Schema.Validate(); err != nil {
		return fmt.Errorf("feature schema: %w", err)
	}
	if err := a.Scaler.Validate(); err != nil {
		return err
	}
	if n := a.Scaler.NumFeatures(); n != a.Schema.Len() {
		return &ml.DimensionMismatchError{Component: "scaler", Expected: a.Schema.Len(), Got: n}
	}
	if n := a.Classifier.NumFeatures(); n != a.Schema.Len() {
		return &ml.DimensionMismatchError{Component: a.Classifier.Kind(), Expected: a.Schema.Len(), Got: n}
	}
	if a.MerchantHash != "" && a.MerchantHash != features.MerchantHashVersion {
		return fmt.Errorf("merchant hash scheme %q is not supported (want %q)", a.MerchantHash, features.MerchantHashVersion)
	}
	return nil
}

// CheckMerchantHash reports whether the triple was trained with the same
// merchant bucketing as b. Triples built in process without a recorded
// scheme are not checked.
func (a *Artifacts) CheckMerchantHash(b features.MerchantBucketer) error {
	if a.MerchantHash == "" {
		return nil
	}
	if a.MerchantHashSeed != b.Seed() {
		return fmt.Errorf("model was trained with merchant hash seed %d, extractor uses %d", a.MerchantHashSeed, b.Seed())
	}
	return nil
}

type classifierDoc struct {
	Generation string          `json:"generation"`
	CreatedAt  time.Time       `json:"created_at"`
	Classifier json.RawMessage `json:"classifier"`
}

type scalerDoc struct {
	Generation string             `json:"generation"`
	Scaler     *ml.StandardScaler `json:"scaler"`
}

type schemaDoc struct {
	Generation       string          `json:"generation"`
	Features         []string        `json:"features"`
	MerchantHash     string          `json:"merchant_hash"`
	MerchantHashSeed *uint64         `json:"merchant_hash_seed,omitempty"`
	Report           *TrainingReport `json:"report,omitempty"`
}

// Encode renders the triple as the three storage blobs
func (a *Artifacts) Encode() ([]storage.Blob, error) {
	clf, err := ml.MarshalClassifier(a.Classifier)
	if err != nil {
		return nil, err
	}

	merchantHash, merchantSeed := a.MerchantHash, a.MerchantHashSeed
	if merchantHash == "" {
		merchantHash, merchantSeed = features.MerchantHashVersion, features.DefaultMerchantHashSeed
	}

	docs := []struct {
		name string
		doc  any
	}{
		{BlobClassifier, classifierDoc{Generation: a.Generation, CreatedAt: a.CreatedAt, Classifier: clf}},
		{BlobScaler, scalerDoc{Generation: a.Generation, Scaler: a.Scaler}},
		{BlobSchema, schemaDoc{
			Generation:       a.Generation,
			Features:         a.Schema,
			MerchantHash:     merchantHash,
			MerchantHashSeed: &merchantSeed,
			Report:           a.Report,
		}},
	}

	blobs := make([]storage.Blob, 0, len(docs))
	for _, d := range docs {
		data, err := json.Marshal(d.doc)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", d.name, err)
		}
		blobs = append(blobs, storage.Blob{Name: d.name, Data: data})
	}
	return blobs, nil
}

// DecodeArtifacts rebuilds a triple from its blobs and validates it. The
// three blobs must carry the same generation id.
func DecodeArtifacts(classifierData, scalerData, schemaData []byte) (*Artifacts, error) {
	var cd classifierDoc
	if err := json.Unmarshal(classifierData, &cd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", BlobClassifier, err)
	}
	var sd scalerDoc
	if err := json.Unmarshal(scalerData, &sd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", BlobScaler, err)
	}
	var fd schemaDoc
	if err := json.Unmarshal(schemaData, &fd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", BlobSchema, err)
	}

	if cd.Generation != sd.Generation || cd.Generation != fd.Generation {
		return nil, fmt.Errorf("generation mismatch: classifier=%q scaler=%q schema=%q",
			cd.Generation, sd.Generation, fd.Generation)
	}
	if sd.Scaler == nil {
		return nil, fmt.Errorf("%s has no parameters", BlobScaler)
	}

	clf, err := ml.UnmarshalClassifier(cd.Classifier)
	if err != nil {
		return nil, err
	}

	// blobs written before the seed was recorded used the pinned default
	merchantSeed := features.DefaultMerchantHashSeed
	if fd.MerchantHashSeed != nil {
		merchantSeed = *fd.MerchantHashSeed
	}

	a := &Artifacts{
		Generation:       cd.Generation,
		Classifier:       clf,
		Scaler:           sd.Scaler,
		Schema:           features.Schema(fd.Features),
		MerchantHash:     fd.MerchantHash,
		MerchantHashSeed: merchantSeed,
		Source:           SourceStorage,
		CreatedAt:        cd.CreatedAt,
		Report:           fd.Report,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
