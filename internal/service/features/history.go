package features

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
)

// Placeholder ranges used until a real account history store exists.
const (
	minCardAgeDays          = 30
	maxCardAgeDays          = 999
	minTransactionFrequency = 1
	maxTransactionFrequency = 14
	minAvgAmountFactor      = 0.5
	maxAvgAmountFactor      = 2.0
	meanDistanceFromHome    = 5.0
)

// HistoryQuery identifies the transaction whose account history is requested
type HistoryQuery struct {
	Amount   float64
	Merchant string
	At       time.Time
}

// HistoryFeatures are the account-history derived features
type HistoryFeatures struct {
	CardAgeDays          float64
	TransactionFrequency float64
	AvgTransactionAmount float64
	DistanceFromHome     float64
}

// HistoryFeatureProvider supplies account-history features for a transaction
type HistoryFeatureProvider interface {
	HistoryFeatures(ctx context.Context, q HistoryQuery) (HistoryFeatures, error)
}

// SyntheticRandomProvider produces placeholder history features from a
// random source. Output is not meaningful for fraud detection; it exists so
// the pipeline has values with realistic magnitudes.
type SyntheticRandomProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticRandomProvider wraps rng. A nil rng is replaced by a randomly
// seeded PCG source.
func NewSyntheticRandomProvider(rng *rand.Rand) *SyntheticRandomProvider {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SyntheticRandomProvider{rng: rng}
}

// NewSeededSyntheticProvider returns a provider with deterministic output
func NewSeededSyntheticProvider(seed uint64) *SyntheticRandomProvider {
	return NewSyntheticRandomProvider(rand.New(rand.NewPCG(seed, seed)))
}

// HistoryFeatures implements HistoryFeatureProvider
func (p *SyntheticRandomProvider) HistoryFeatures(ctx context.Context, q HistoryQuery) (HistoryFeatures, error) {
	if err := ctx.Err(); err != nil {
		return HistoryFeatures{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	factor := minAvgAmountFactor + p.rng.Float64()*(maxAvgAmountFactor-minAvgAmountFactor)

	return HistoryFeatures{
		CardAgeDays:          float64(minCardAgeDays + p.rng.IntN(maxCardAgeDays-minCardAgeDays+1)),
		TransactionFrequency: float64(minTransactionFrequency + p.rng.IntN(maxTransactionFrequency-minTransactionFrequency+1)),
		AvgTransactionAmount: q.Amount * factor,
		DistanceFromHome:     p.rng.ExpFloat64() * meanDistanceFromHome,
	}, nil
}

// StaticHistoryProvider always returns the same features. Useful for tests
// and for replaying a fixed account profile.
type StaticHistoryProvider struct {
	Features HistoryFeatures
}

// HistoryFeatures implements HistoryFeatureProvider
func (p StaticHistoryProvider) HistoryFeatures(ctx context.Context, _ HistoryQuery) (HistoryFeatures, error) {
	return p.Features, ctx.Err()
}

// NeutralProfile is the account profile returned by the static provider
var NeutralProfile = HistoryFeatures{
	CardAgeDays:          365,
	TransactionFrequency: 5,
	AvgTransactionAmount: 50,
	DistanceFromHome:     5,
}

// NewHistoryProvider builds the provider named in cfg. A synthetic provider
// with seed 0 is randomly seeded.
func NewHistoryProvider(cfg config.HistoryConfig) (HistoryFeatureProvider, error) {
	switch cfg.Provider {
	case "synthetic", "":
		if cfg.Seed == 0 {
			return NewSyntheticRandomProvider(nil), nil
		}
		return NewSeededSyntheticProvider(cfg.Seed), nil
	case "static":
		return StaticHistoryProvider{Features: NeutralProfile}, nil
	default:
		return nil, fmt.Errorf("unknown history provider %q", cfg.Provider)
	}
}
