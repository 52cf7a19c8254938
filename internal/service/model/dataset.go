package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
)

// LabelRule is one named condition that marks a synthetic row as fraud
type LabelRule struct {
	Name  string
	Match func(r features.Record) bool
}

// DefaultLabelRules are OR-ed to produce the clean bootstrap label
var DefaultLabelRules = []LabelRule{
	{
		Name: "high_amount_at_night",
		Match: func(r features.Record) bool {
			return r.Amount > nightAmountThreshold && r.IsNight == 1
		},
	},
	{
		Name: "high_amount_far_from_home",
		Match: func(r features.Record) bool {
			return r.Amount > farAmountThreshold && r.DistanceFromHome > farDistanceThreshold
		},
	},
	{
		Name: "early_morning_spend",
		Match: func(r features.Record) bool {
			return r.Hour < earlyMorningHour && r.Amount > earlyMorningAmountThreshold
		},
	},
	{
		Name: "high_frequency_spend",
		Match: func(r features.Record) bool {
			return r.TransactionFrequency > highFrequencyThreshold && r.Amount > highFrequencyAmount
		},
	},
	{
		Name: "risky_merchant_category",
		Match: func(r features.Record) bool {
			return r.MerchantCategory == riskyMerchantCategory && r.Amount > riskyMerchantAmount
		},
	},
}

// DatasetConfig controls synthetic data generation
type DatasetConfig struct {
	Seed       uint64
	Samples    int
	LabelNoise float64
	// MinFraud triggers the top-up when fewer rows are labelled fraud
	MinFraud   int
	FraudTopUp int
	Rules      []LabelRule
}

// DefaultDatasetConfig matches the bootstrap defaults
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Seed:       42,
		Samples:    10000,
		LabelNoise: 0.05,
		MinFraud:   100,
		FraudTopUp: 200,
		Rules:      DefaultLabelRules,
	}
}

// Dataset is a labelled feature matrix in DefaultSchema order
type Dataset struct {
	Schema   features.Schema
	X        [][]float64
	Y        []int
	RuleHits map[string]int
	ToppedUp int
}

// FraudCount returns the number of positive labels
func (d *Dataset) FraudCount() int {
	n := 0
	for _, label := range d.Y {
		n += label
	}
	return n
}

// GenerateDataset draws a synthetic transaction set. Each column is drawn in
// full before the next one so the output depends only on the seed.
func GenerateDataset(cfg DatasetConfig) (*Dataset, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("samples must be positive, got %d", cfg.Samples)
	}
	if cfg.LabelNoise < 0 || cfg.LabelNoise > 1 {
		return nil, fmt.Errorf("label noise %v outside [0,1]", cfg.LabelNoise)
	}
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultLabelRules
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	n := cfg.Samples
	records := make([]features.Record, n)

	for i := range records {
		records[i].Amount = rng.ExpFloat64() * meanAmount
	}
	for i := range records {
		records[i].Hour = float64(rng.IntN(hoursPerDay))
	}
	for i := range records {
		records[i].DayOfWeek = float64(rng.IntN(daysPerWeek))
	}
	for i := range records {
		records[i].MerchantCategory = float64(rng.IntN(features.MerchantCategories))
	}
	for i := range records {
		records[i].CardAgeDays = float64(1 + rng.IntN(maxCardAgeDays))
	}
	for i := range records {
		records[i].TransactionFrequency = float64(poisson(rng, meanFrequency))
	}
	for i := range records {
		records[i].AvgTransactionAmount = rng.ExpFloat64() * meanAvgAmount
	}
	for i := range records {
		records[i].DistanceFromHome = rng.ExpFloat64() * meanDistance
	}
	for i := range records {
		records[i].IsWeekend = bernoulli(rng, weekendProbability)
	}
	for i := range records {
		records[i].IsNight = bernoulli(rng, nightProbability)
	}

	d := &Dataset{
		Schema:   features.DefaultSchema(),
		X:        make([][]float64, n),
		Y:        make([]int, n),
		RuleHits: make(map[string]int, len(rules)),
	}

	for i, r := range records {
		fraud := false
		for _, rule := range rules {
			if rule.Match(r) {
				d.RuleHits[rule.Name]++
				fraud = true
			}
		}
		if fraud {
			d.Y[i] = 1
		}
	}

	for i := range d.Y {
		if rng.Float64() < cfg.LabelNoise {
			d.Y[i] = 1
		}
	}

	if d.FraudCount() < cfg.MinFraud {
		legit := make([]int, 0, n)
		for i, label := range d.Y {
			if label == 0 {
				legit = append(legit, i)
			}
		}
		rng.Shuffle(len(legit), func(a, b int) { legit[a], legit[b] = legit[b], legit[a] })
		d.ToppedUp = min(cfg.FraudTopUp, len(legit))
		for _, i := range legit[:d.ToppedUp] {
			d.Y[i] = 1
		}
	}

	for i, r := range records {
		row, err := features.Vectorize(r, d.Schema)
		if err != nil {
			return nil, err
		}
		d.X[i] = row
	}

	return d, nil
}

// Split is a train/test partition of a Dataset
type Split struct {
	TrainX [][]float64
	TrainY []int
	TestX  [][]float64
	TestY  []int
}

// StratifiedSplit holds out testFraction of each class, preserving class
// ratios in both halves.
func StratifiedSplit(d *Dataset, testFraction float64, seed uint64) (*Split, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, fmt.Errorf("test fraction %v outside (0,1)", testFraction)
	}

	rng := rand.New(rand.NewPCG(seed, ^seed))
	var byClass [2][]int
	for i, label := range d.Y {
		byClass[label] = append(byClass[label], i)
	}

	s := &Split{}
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(math.Round(testFraction * float64(len(idx))))
		for k, i := range idx {
			if k < nTest {
				s.TestX = append(s.TestX, d.X[i])
				s.TestY = append(s.TestY, d.Y[i])
			} else {
				s.TrainX = append(s.TrainX, d.X[i])
				s.TrainY = append(s.TrainY, d.Y[i])
			}
		}
	}

	if len(s.TrainX) == 0 || len(s.TestX) == 0 {
		return nil, fmt.Errorf("split produced an empty partition (train=%d test=%d)", len(s.TrainX), len(s.TestX))
	}
	return s, nil
}

// poisson uses Knuth's multiplication method, adequate for small means
func poisson(rng *rand.Rand, mean float64) int {
	limit := math.Exp(-mean)
	k := 0
	p := rng.Float64()
	for p > limit {
		k++
		p *= rng.Float64()
	}
	return k
}

func bernoulli(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}
