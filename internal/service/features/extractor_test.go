package features

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
)

var fixedHistory = StaticHistoryProvider{Features: HistoryFeatures{
	CardAgeDays:          120,
	TransactionFrequency: 3,
	AvgTransactionAmount: 80,
	DistanceFromHome:     2.5,
}}

func TestExtractor_Extract(t *testing.T) {
	ext := NewExtractor(fixedHistory)
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name    string
		payload transaction.Payload
		check   func(t *testing.T, r Record)
	}{
		{
			name: "saturday night",
			payload: transaction.Payload{
				Amount:          json.Number("750.25"),
				Merchant:        "acme",
				TransactionDate: "2024-01-06T02:00:00Z",
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, 750.25, r.Amount)
				assert.Equal(t, 2.0, r.Hour)
				assert.Equal(t, 5.0, r.DayOfWeek)
				assert.Equal(t, 1.0, r.IsWeekend)
				assert.Equal(t, 1.0, r.IsNight)
				assert.Equal(t, 120.0, r.CardAgeDays)
			},
		},
		{
			name: "weekday afternoon",
			payload: transaction.Payload{
				Amount:          json.Number("12"),
				TransactionDate: "2024-01-08T15:30:00Z",
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, 15.0, r.Hour)
				assert.Equal(t, 0.0, r.DayOfWeek)
				assert.Equal(t, 0.0, r.IsWeekend)
				assert.Equal(t, 0.0, r.IsNight)
			},
		},
		{
			name:    "missing date uses now",
			payload: transaction.Payload{Amount: 5.0},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, 12.0, r.Hour)
				assert.Equal(t, 2.0, r.DayOfWeek)
			},
		},
		{
			name: "offset keeps wall clock",
			payload: transaction.Payload{
				Amount:          json.Number("1"),
				TransactionDate: "2024-01-07T23:15:00+05:30",
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, 23.0, r.Hour)
				assert.Equal(t, 6.0, r.DayOfWeek)
				assert.Equal(t, 1.0, r.IsNight)
			},
		},
		{
			name: "zone-less timestamp taken as written",
			payload: transaction.Payload{
				TransactionDate: "2024-01-09T22:00:00",
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, 0.0, r.Amount)
				assert.Equal(t, 22.0, r.Hour)
				assert.Equal(t, 0.0, r.IsNight)
			},
		},
		{
			name: "hour six is not night",
			payload: transaction.Payload{
				TransactionDate: "2024-01-09T06:00:00Z",
			},
			check: func(t *testing.T, r Record) {
				assert.Equal(t, 0.0, r.IsNight)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ext.Extract(context.Background(), tt.payload, now)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, r.MerchantCategory, 0.0)
			assert.Less(t, r.MerchantCategory, float64(MerchantCategories))
			tt.check(t, r)
		})
	}
}

func TestExtractor_NightBoundaries(t *testing.T) {
	ext := NewExtractor(fixedHistory)

	tests := []struct {
		hour int
		want float64
	}{
		{0, 1},
		{5, 1},
		{6, 0},
		{12, 0},
		{21, 0},
		{22, 0},
		{23, 1},
	}

	for _, tt := range tests {
		at := time.Date(2024, 1, 9, tt.hour, 30, 0, 0, time.UTC)
		r, err := ext.Extract(context.Background(), transaction.Payload{TransactionDate: at.Format(time.RFC3339)}, at)
		require.NoError(t, err)
		assert.Equal(t, float64(tt.hour), r.Hour)
		assert.Equal(t, tt.want, r.IsNight, "hour %d", tt.hour)
	}
}

func TestExtractor_Errors(t *testing.T) {
	ext := NewExtractor(fixedHistory)
	now := time.Now()

	tests := []struct {
		name    string
		payload transaction.Payload
		reason  Reason
	}{
		{"negative amount", transaction.Payload{Amount: json.Number("-1")}, ReasonInvalidAmount},
		{"boolean amount", transaction.Payload{Amount: true}, ReasonInvalidAmount},
		{"text amount", transaction.Payload{Amount: "lots"}, ReasonInvalidAmount},
		{"NaN amount", transaction.Payload{Amount: math.NaN()}, ReasonInvalidAmount},
		{"overflowing amount", transaction.Payload{Amount: json.Number("1e400")}, ReasonInvalidAmount},
		{"garbage date", transaction.Payload{TransactionDate: "yesterday"}, ReasonMalformedTimestamp},
		{"numeric date", transaction.Payload{TransactionDate: json.Number("1704506400")}, ReasonMalformedTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ext.Extract(context.Background(), tt.payload, now)
			require.Error(t, err)
			assert.True(t, IsReason(err, tt.reason), "got %v", err)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{nil, 0},
		{json.Number("0.1"), 0.1},
		{"42.50", 42.5},
		{json.Number("1e3"), 1000},
		{7, 7},
		{float64(3.25), 3.25},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSyntheticRandomProvider(t *testing.T) {
	q := HistoryQuery{Amount: 100}

	a := NewSeededSyntheticProvider(42)
	b := NewSeededSyntheticProvider(42)

	for i := 0; i < 200; i++ {
		ha, err := a.HistoryFeatures(context.Background(), q)
		require.NoError(t, err)
		hb, err := b.HistoryFeatures(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, ha, hb)

		assert.GreaterOrEqual(t, ha.CardAgeDays, 30.0)
		assert.LessOrEqual(t, ha.CardAgeDays, 999.0)
		assert.GreaterOrEqual(t, ha.TransactionFrequency, 1.0)
		assert.LessOrEqual(t, ha.TransactionFrequency, 14.0)
		assert.GreaterOrEqual(t, ha.AvgTransactionAmount, 50.0)
		assert.Less(t, ha.AvgTransactionAmount, 200.0)
		assert.GreaterOrEqual(t, ha.DistanceFromHome, 0.0)
	}
}

func TestSyntheticRandomProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSeededSyntheticProvider(1).HistoryFeatures(ctx, HistoryQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMerchantBucketer(t *testing.T) {
	b := DefaultMerchantBucketer()

	first := b.Bucket("coffee-shop")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.Bucket("coffee-shop"))
	}
	assert.Equal(t, first, NewMerchantBucketer(DefaultMerchantHashSeed).Bucket("coffee-shop"))

	seen := map[int]bool{}
	for _, m := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o", "p"} {
		c := b.Bucket(m)
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, MerchantCategories)
		seen[c] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestNewHistoryProvider(t *testing.T) {
	ctx := context.Background()
	q := HistoryQuery{Amount: 100}

	static, err := NewHistoryProvider(config.HistoryConfig{Provider: "static"})
	require.NoError(t, err)
	got, err := static.HistoryFeatures(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, NeutralProfile, got)

	a, err := NewHistoryProvider(config.HistoryConfig{Provider: "synthetic", Seed: 7})
	require.NoError(t, err)
	b, err := NewHistoryProvider(config.HistoryConfig{Provider: "synthetic", Seed: 7})
	require.NoError(t, err)
	fa, _ := a.HistoryFeatures(ctx, q)
	fb, _ := b.HistoryFeatures(ctx, q)
	assert.Equal(t, fa, fb)

	_, err = NewHistoryProvider(config.HistoryConfig{Provider: "ledger"})
	assert.Error(t, err)
}
