package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// LogisticConfig controls logistic regression training
type LogisticConfig struct {
	LearningRate float64
	Epochs       int
	L2           float64
	Balanced     bool
}

// DefaultLogisticConfig returns parameters that converge on standardized inputs
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		LearningRate: 0.1,
		Epochs:       500,
		L2:           0.001,
		Balanced:     true,
	}
}

// LogisticRegression is a linear model over standardized features
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// FitLogisticRegression trains with full-batch gradient descent
func FitLogisticRegression(ctx context.Context, X [][]float64, y []int, cfg LogisticConfig) (*LogisticRegression, error) {
	dims, err := validateTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	if cfg.Epochs <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid logistic config: epochs=%d learning_rate=%v", cfg.Epochs, cfg.LearningRate)
	}

	classWeights := [2]float64{1, 1}
	if cfg.Balanced {
		classWeights = balancedClassWeights(y)
	}

	m := &LogisticRegression{Weights: make([]float64, dims)}
	grad := make([]float64, dims)
	n := float64(len(X))

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		clear(grad)
		var gradBias float64
		for i, row := range X {
			diff := (m.score(row) - float64(y[i])) * classWeights[y[i]]
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}

		for j := range m.Weights {
			m.Weights[j] -= cfg.LearningRate * (grad[j]/n + cfg.L2*m.Weights[j])
		}
		m.Bias -= cfg.LearningRate * gradBias / n
	}

	return m, nil
}

func (m *LogisticRegression) score(x []float64) float64 {
	z := m.Bias
	for j, v := range x {
		z += m.Weights[j] * v
	}
	return sigmoid(z)
}

// PredictProbability implements Classifier
func (m *LogisticRegression) PredictProbability(x []float64) (float64, error) {
	if err := checkDims(KindLogisticRegression, len(m.Weights), x); err != nil {
		return 0, err
	}
	return clamp01(m.score(x)), nil
}

// NumFeatures implements Classifier
func (m *LogisticRegression) NumFeatures() int {
	return len(m.Weights)
}

// Kind implements Classifier
func (m *LogisticRegression) Kind() string {
	return KindLogisticRegression
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func decodeLogisticRegression(data []byte) (Classifier, error) {
	var m LogisticRegression
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("logistic regression has no weights")
	}
	return &m, nil
}
