package ml

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableSet labels a row positive when its first feature exceeds 0.6
func separableSet(n int, seed uint64) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		X[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		if X[i][0] > 0.6 {
			y[i] = 1
		}
	}
	return X, y
}

func TestStandardScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {3, 5}, {5, 5}}

	s, err := FitStandardScaler(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, s.Mean)
	assert.InDelta(t, 1.632993, s.Scale[0], 1e-6)
	assert.Equal(t, 1.0, s.Scale[1], "zero variance column gets unit scale")
	require.NoError(t, s.Validate())

	in := []float64{3, 7}
	out, err := s.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, out)
	assert.Equal(t, []float64{3, 7}, in, "input must not be modified")

	_, err = s.Transform([]float64{1})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 1, dimErr.Got)
}

func TestStandardScaler_Empty(t *testing.T) {
	_, err := FitStandardScaler(nil)
	assert.ErrorIs(t, err, ErrEmptyTrainingSet)
}

func TestRandomForest_Fit(t *testing.T) {
	X, y := separableSet(400, 7)
	cfg := ForestConfig{Trees: 15, MaxDepth: 4, MinSamplesSplit: 2, MaxFeatures: 3, Balanced: true, Seed: 3}

	f, err := FitRandomForest(context.Background(), X, y, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, f.NumFeatures())
	assert.Len(t, f.Trees, 15)
	assert.LessOrEqual(t, f.MaxDepth(), 4)

	ev, err := Evaluate(f, X, y)
	require.NoError(t, err)
	assert.Greater(t, ev.Accuracy, 0.95)

	hi, err := f.PredictProbability([]float64{0.95, 0.5, 0.5})
	require.NoError(t, err)
	lo, err := f.PredictProbability([]float64{0.05, 0.5, 0.5})
	require.NoError(t, err)
	assert.Greater(t, hi, 0.5)
	assert.Less(t, lo, 0.5)

	_, err = f.PredictProbability([]float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRandomForest_Reproducible(t *testing.T) {
	X, y := separableSet(200, 11)
	cfg := ForestConfig{Trees: 8, MaxDepth: 5, Balanced: true, Seed: 99}

	serial := cfg
	serial.Workers = 1
	parallel := cfg
	parallel.Workers = 8

	a, err := FitRandomForest(context.Background(), X, y, serial)
	require.NoError(t, err)
	b, err := FitRandomForest(context.Background(), X, y, parallel)
	require.NoError(t, err)

	for _, row := range X[:50] {
		pa, _ := a.PredictProbability(row)
		pb, _ := b.PredictProbability(row)
		assert.Equal(t, pa, pb)
	}
}

func TestRandomForest_Cancelled(t *testing.T) {
	X, y := separableSet(50, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FitRandomForest(ctx, X, y, ForestConfig{Trees: 4, MaxDepth: 3, Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		X    [][]float64
		y    []int
	}{
		{"empty", nil, nil},
		{"label count", [][]float64{{1}, {2}}, []int{0}},
		{"ragged rows", [][]float64{{1, 2}, {3}}, []int{0, 1}},
		{"non binary label", [][]float64{{1}, {2}}, []int{0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitRandomForest(context.Background(), tt.X, tt.y, DefaultForestConfig())
			assert.Error(t, err)
			_, err = FitLogisticRegression(context.Background(), tt.X, tt.y, DefaultLogisticConfig())
			assert.Error(t, err)
		})
	}
}

func TestLogisticRegression_Fit(t *testing.T) {
	X, y := separableSet(300, 5)
	s, err := FitStandardScaler(X)
	require.NoError(t, err)
	Xs, err := s.TransformAll(X)
	require.NoError(t, err)

	m, err := FitLogisticRegression(context.Background(), Xs, y, DefaultLogisticConfig())
	require.NoError(t, err)
	assert.Equal(t, KindLogisticRegression, m.Kind())
	assert.Greater(t, m.Weights[0], 0.0)

	ev, err := Evaluate(m, Xs, y)
	require.NoError(t, err)
	assert.Greater(t, ev.Accuracy, 0.85)
}

func TestClassifierCodec(t *testing.T) {
	X, y := separableSet(120, 2)
	forest, err := FitRandomForest(context.Background(), X, y, ForestConfig{Trees: 5, MaxDepth: 3, Seed: 8})
	require.NoError(t, err)
	logistic, err := FitLogisticRegression(context.Background(), X, y, LogisticConfig{LearningRate: 0.5, Epochs: 50})
	require.NoError(t, err)

	for _, c := range []Classifier{forest, logistic} {
		t.Run(c.Kind(), func(t *testing.T) {
			data, err := MarshalClassifier(c)
			require.NoError(t, err)

			decoded, err := UnmarshalClassifier(data)
			require.NoError(t, err)
			assert.Equal(t, c.Kind(), decoded.Kind())
			assert.Equal(t, c.NumFeatures(), decoded.NumFeatures())

			for _, row := range X[:20] {
				want, _ := c.PredictProbability(row)
				got, err := decoded.PredictProbability(row)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestUnmarshalClassifier_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `{`,
		"unknown kind": `{"kind":"svm","model":{}}`,
		"empty forest": `{"kind":"random_forest","model":{"n_features":3,"trees":[]}}`,
		"bad feature":  `{"kind":"random_forest","model":{"n_features":1,"trees":[{"nodes":[{"f":4,"t":1,"l":1,"r":2,"v":0.5},{"f":-1,"v":0},{"f":-1,"v":1}]}]}}`,
		"cyclic node":  `{"kind":"random_forest","model":{"n_features":1,"trees":[{"nodes":[{"f":0,"t":1,"l":0,"r":0,"v":0.5}]}]}}`,
		"no weights":   `{"kind":"logistic_regression","model":{"weights":[],"bias":0}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalClassifier([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestRandomForest_ConcurrentPredict(t *testing.T) {
	X, y := separableSet(150, 4)
	f, err := FitRandomForest(context.Background(), X, y, ForestConfig{Trees: 6, MaxDepth: 4, Seed: 4})
	require.NoError(t, err)

	want := make([]float64, len(X))
	for i, row := range X {
		want[i], _ = f.PredictProbability(row)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, row := range X {
				p, err := f.PredictProbability(row)
				assert.NoError(t, err)
				assert.Equal(t, want[i], p)
			}
		}()
	}
	wg.Wait()
}

func TestEvaluate(t *testing.T) {
	c := &LogisticRegression{Weights: []float64{10}, Bias: -5}
	X := [][]float64{{0}, {1}, {1}, {0}}
	y := []int{0, 1, 0, 1}

	ev, err := Evaluate(c, X, y)
	require.NoError(t, err)
	assert.Equal(t, 4, ev.Samples)
	assert.Equal(t, 2, ev.Positives)
	assert.Equal(t, 0.5, ev.Accuracy)
	assert.Equal(t, 0.5, ev.Precision)
	assert.Equal(t, 0.5, ev.Recall)
}
