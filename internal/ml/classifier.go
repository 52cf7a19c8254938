package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

// Classifier kinds
const (
	KindRandomForest       = "random_forest"
	KindLogisticRegression = "logistic_regression"
)

// Classifier maps a standardized feature vector to the probability of the
// positive (fraud) class. Implementations are safe for concurrent use once
// fit.
type Classifier interface {
	PredictProbability(x []float64) (float64, error)
	NumFeatures() int
	Kind() string
}

// DecodeFunc builds a classifier from its serialized model body
type DecodeFunc func(data []byte) (Classifier, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]DecodeFunc{}
)

func init() {
	RegisterDecoder(KindRandomForest, decodeRandomForest)
	RegisterDecoder(KindLogisticRegression, decodeLogisticRegression)
}

// RegisterDecoder makes a classifier kind available to UnmarshalClassifier
func RegisterDecoder(kind string, fn DecodeFunc) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[kind] = fn
}

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// MarshalClassifier serializes c with its kind tag
func MarshalClassifier(c Classifier) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", c.Kind(), err)
	}
	return json.Marshal(envelope{Kind: c.Kind(), Model: body})
}

// UnmarshalClassifier restores a classifier written by MarshalClassifier
func UnmarshalClassifier(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding classifier envelope: %w", err)
	}

	decodersMu.RLock()
	fn, ok := decoders[env.Kind]
	decodersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown classifier kind %q", env.Kind)
	}

	c, err := fn(env.Model)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Kind, err)
	}
	return c, nil
}

// CloneClassifier returns an independent copy of c through its codec
func CloneClassifier(c Classifier) (Classifier, error) {
	data, err := MarshalClassifier(c)
	if err != nil {
		return nil, err
	}
	return UnmarshalClassifier(data)
}

func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// balancedClassWeights returns n / (2 * count_c) for each class
func balancedClassWeights(y []int) [2]float64 {
	var counts [2]int
	for _, label := range y {
		counts[label]++
	}
	var w [2]float64
	n := float64(len(y))
	for c := range counts {
		if counts[c] > 0 {
			w[c] = n / (2 * float64(counts[c]))
		}
	}
	return w
}
