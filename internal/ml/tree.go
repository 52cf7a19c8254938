package ml

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

const leafFeature = -1

// treeNode is one node of a flattened CART tree. Leaves have Feature == -1
// and carry the weighted positive-class fraction in Value.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// DecisionTree is a binary CART classifier stored as a node array rooted at 0
type DecisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
}

type treeBuilder struct {
	X      [][]float64
	y      []int
	w      []float64
	dims   int
	params treeParams
	rng    *rand.Rand
	nodes  []treeNode
}

// fitTree grows a tree over the rows in idx with per-row weights w
func fitTree(X [][]float64, y []int, w []float64, idx []int, params treeParams, rng *rand.Rand) *DecisionTree {
	b := &treeBuilder{
		X:      X,
		y:      y,
		w:      w,
		dims:   len(X[0]),
		params: params,
		rng:    rng,
	}
	b.build(idx, 0)
	return &DecisionTree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	var wPos, wTotal float64
	for _, i := range idx {
		wTotal += b.w[i]
		if b.y[i] == 1 {
			wPos += b.w[i]
		}
	}

	self := len(b.nodes)
	value := 0.0
	if wTotal > 0 {
		value = wPos / wTotal
	}
	b.nodes = append(b.nodes, treeNode{Feature: leafFeature, Value: value})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || wPos == 0 || wPos == wTotal {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, wPos, wTotal)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: value}
	return self
}

// bestSplit searches a random subset of features for the threshold with the
// lowest weighted gini impurity. ok is false when no split improves on the parent.
func (b *treeBuilder) bestSplit(idx []int, wPos, wTotal float64) (int, float64, bool) {
	parent := wTotal * gini(wPos, wTotal)
	bestScore := parent
	bestFeature := -1
	bestThreshold := 0.0

	candidates := b.rng.Perm(b.dims)
	if b.params.maxFeatures > 0 && b.params.maxFeatures < len(candidates) {
		candidates = candidates[:b.params.maxFeatures]
	}

	sorted := make([]int, len(idx))
	for _, f := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var lPos, lTotal float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			lTotal += b.w[i]
			if b.y[i] == 1 {
				lPos += b.w[i]
			}

			cur, next := b.X[i][f], b.X[sorted[k+1]][f]
			if cur == next {
				continue
			}

			rPos, rTotal := wPos-lPos, wTotal-lTotal
			score := lTotal*gini(lPos, lTotal) + rTotal*gini(rPos, rTotal)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(pos, total float64) float64 {
	if total <= 0 {
		return 0
	}
	p := pos / total
	return 2 * p * (1 - p)
}

// predict returns the positive-class fraction of the leaf x falls into
func (t *DecisionTree) predict(x []float64) float64 {
	n := 0
	for t.Nodes[n].Feature != leafFeature {
		node := t.Nodes[n]
		if x[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

// depth returns the length of the longest root-to-leaf path
func (t *DecisionTree) depth() int {
	var walk func(n, d int) int
	walk = func(n, d int) int {
		node := t.Nodes[n]
		if node.Feature == leafFeature {
			return d
		}
		return max(walk(node.Left, d+1), walk(node.Right, d+1))
	}
	return walk(0, 0)
}

// validate checks node references so predict cannot index out of range or loop
func (t *DecisionTree) validate(dims int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, node := range t.Nodes {
		if node.Feature == leafFeature {
			if node.Value < 0 || node.Value > 1 {
				return fmt.Errorf("leaf %d value %v outside [0,1]", i, node.Value)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= dims {
			return fmt.Errorf("node %d splits on feature %d of %d", i, node.Feature, dims)
		}
		if node.Left <= i || node.Right <= i || node.Left >= len(t.Nodes) || node.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, node.Left, node.Right)
		}
	}
	return nil
}
