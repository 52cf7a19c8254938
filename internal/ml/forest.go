package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestConfig controls random forest training
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures is the number of features considered per split; 0 means sqrt(n).
	MaxFeatures int
	Balanced    bool
	Seed        uint64
	// Workers bounds parallel tree fitting; 0 means GOMAXPROCS.
	Workers int
}

// DefaultForestConfig returns the bootstrap training parameters
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		Balanced:        true,
		Seed:            42,
	}
}

// RandomForest averages the leaf probabilities of bagged CART trees
type RandomForest struct {
	Features int             `json:"n_features"`
	Trees    []*DecisionTree `json:"trees"`
}

// FitRandomForest trains a forest on X (rows) and binary labels y. Per-tree
// seeds are drawn up front from cfg.Seed so the result does not depend on
// scheduling.
func FitRandomForest(ctx context.Context, X [][]float64, y []int, cfg ForestConfig) (*RandomForest, error) {
	dims, err := validateTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("forest needs at least one tree, got %d", cfg.Trees)
	}
	if cfg.MaxDepth <= 0 {
		return nil, fmt.Errorf("max depth must be positive, got %d", cfg.MaxDepth)
	}

	params := treeParams{
		maxDepth:        cfg.MaxDepth,
		minSamplesSplit: max(cfg.MinSamplesSplit, 2),
		maxFeatures:     cfg.MaxFeatures,
	}
	if params.maxFeatures <= 0 {
		params.maxFeatures = max(1, int(math.Sqrt(float64(dims))))
	}

	classWeights := [2]float64{1, 1}
	if cfg.Balanced {
		classWeights = balancedClassWeights(y)
	}

	master := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d))
	seeds := make([]uint64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	n := len(X)
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(seeds[t], uint64(t)))

			// bootstrap sample: a row drawn k times carries k times its class weight
			w := make([]float64, n)
			idx := make([]int, 0, n)
			for range n {
				i := rng.IntN(n)
				if w[i] == 0 {
					idx = append(idx, i)
				}
				w[i] += classWeights[y[i]]
			}

			trees[t] = fitTree(X, y, w, idx, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fitting forest: %w", err)
	}

	return &RandomForest{Features: dims, Trees: trees}, nil
}

// PredictProbability implements Classifier
func (f *RandomForest) PredictProbability(x []float64) (float64, error) {
	if err := checkDims(KindRandomForest, f.Features, x); err != nil {
		return 0, err
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return clamp01(sum / float64(len(f.Trees))), nil
}

// NumFeatures implements Classifier
func (f *RandomForest) NumFeatures() int {
	return f.Features
}

// Kind implements Classifier
func (f *RandomForest) Kind() string {
	return KindRandomForest
}

// MaxDepth returns the depth of the deepest tree
func (f *RandomForest) MaxDepth() int {
	d := 0
	for _, t := range f.Trees {
		d = max(d, t.depth())
	}
	return d
}

func decodeRandomForest(data []byte) (Classifier, error) {
	var f RandomForest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Features <= 0 {
		return nil, fmt.Errorf("forest has %d features", f.Features)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	for i, t := range f.Trees {
		if t == nil {
			return nil, fmt.Errorf("tree %d is null", i)
		}
		if err := t.validate(f.Features); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &f, nil
}
