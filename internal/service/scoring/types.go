package scoring

import (
	"time"

	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
)

// ScoreResult is the verdict for one transaction
type ScoreResult struct {
	IsFraud          bool            `json:"fraud"`
	FraudProbability float64         `json:"fraudProbability"`
	Confidence       float64         `json:"confidence"`
	FeaturesUsed     features.Record `json:"featuresUsed"`
	Timestamp        time.Time       `json:"timestamp"`
	ModelGeneration  string          `json:"-"`
}

// ModelInfo describes the published model
type ModelInfo struct {
	ModelLoaded  bool                  `json:"model_loaded"`
	Kind         string                `json:"kind,omitempty"`
	Generation   string                `json:"generation,omitempty"`
	Source       model.Source          `json:"source,omitempty"`
	Schema       []string              `json:"schema,omitempty"`
	NumFeatures  int                   `json:"n_features,omitempty"`
	MerchantHash string                `json:"merchant_hash,omitempty"`
	CreatedAt    *time.Time            `json:"created_at,omitempty"`
	Report       *model.TrainingReport `json:"training_report,omitempty"`
}

// Verdict applies the strict p > 0.5 rule; confidence is max(p, 1-p)
func Verdict(p float64) (isFraud bool, confidence float64) {
	return p > FraudThreshold, max(p, 1-p)
}
