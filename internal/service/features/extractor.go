package features

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
)

// Night is hour > lateNightHour or hour < earlyMorningHour
const (
	lateNightHour    = 22
	earlyMorningHour = 6
)

// Monday = 0 ... Sunday = 6
const saturday = 5

// timestampLayouts are tried in order. Layouts without a zone are parsed as
// written and keep their wall clock.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Extractor derives a Record from a transaction payload
type Extractor struct {
	history   HistoryFeatureProvider
	merchants MerchantBucketer
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// WithMerchantBucketer overrides the merchant hashing scheme
func WithMerchantBucketer(b MerchantBucketer) ExtractorOption {
	return func(e *Extractor) {
		e.merchants = b
	}
}

// NewExtractor creates an extractor. A nil history provider is replaced with
// a randomly seeded SyntheticRandomProvider.
func NewExtractor(history HistoryFeatureProvider, opts ...ExtractorOption) *Extractor {
	if history == nil {
		history = NewSyntheticRandomProvider(nil)
	}
	e := &Extractor{
		history:   history,
		merchants: DefaultMerchantBucketer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes every feature for p. now is used when the payload has no
// transactionDate.
func (e *Extractor) Extract(ctx context.Context, p transaction.Payload, now time.Time) (Record, error) {
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return Record{}, err
	}

	at := now
	if p.TransactionDate != nil {
		at, err = ParseTimestamp(p.TransactionDate)
		if err != nil {
			return Record{}, err
		}
	}

	merchant := p.MerchantName()
	hist, err := e.history.HistoryFeatures(ctx, HistoryQuery{
		Amount:   amount,
		Merchant: merchant,
		At:       at,
	})
	if err != nil {
		return Record{}, fmt.Errorf("history features: %w", err)
	}

	hour := at.Hour()
	dow := isoWeekday(at)

	return Record{
		Amount:               amount,
		Hour:                 float64(hour),
		DayOfWeek:            float64(dow),
		MerchantCategory:     float64(e.merchants.Bucket(merchant)),
		CardAgeDays:          hist.CardAgeDays,
		TransactionFrequency: hist.TransactionFrequency,
		AvgTransactionAmount: hist.AvgTransactionAmount,
		DistanceFromHome:     hist.DistanceFromHome,
		IsWeekend:            boolFeature(dow >= saturday),
		IsNight:              boolFeature(hour > lateNightHour || hour < earlyMorningHour),
	}, nil
}

// ParseAmount coerces a payload amount. Absent or null is 0. Negative,
// non-finite and non-numeric values are rejected.
func ParseAmount(v any) (float64, error) {
	var (
		d   decimal.Decimal
		err error
	)

	switch a := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		d, err = decimal.NewFromString(a.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(a))
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return 0, invalidAmount(v, nil)
		}
		d = decimal.NewFromFloat(a)
	case float32:
		return ParseAmount(float64(a))
	case int:
		d = decimal.NewFromInt(int64(a))
	case int64:
		d = decimal.NewFromInt(a)
	case int32:
		d = decimal.NewFromInt(int64(a))
	default:
		return 0, invalidAmount(v, fmt.Errorf("unsupported type %T", v))
	}
	if err != nil {
		return 0, invalidAmount(v, err)
	}
	if d.IsNegative() {
		return 0, invalidAmount(v, fmt.Errorf("amount must not be negative"))
	}

	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, invalidAmount(v, fmt.Errorf("amount out of range"))
	}
	return f, nil
}

// ParseTimestamp parses an ISO-8601 timestamp. The returned time keeps the
// offset written in the input so Hour and Weekday reflect its wall clock.
func ParseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, &ExtractionError{
			Reason:  ReasonMalformedTimestamp,
			Feature: transaction.FieldTransactionDate,
			Value:   v,
			Err:     fmt.Errorf("expected string, got %T", v),
		}
	}

	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, &ExtractionError{
		Reason:  ReasonMalformedTimestamp,
		Feature: transaction.FieldTransactionDate,
		Value:   v,
		Err:     lastErr,
	}
}

func invalidAmount(v any, err error) error {
	return &ExtractionError{
		Reason:  ReasonInvalidAmount,
		Feature: transaction.FieldAmount,
		Value:   v,
		Err:     err,
	}
}

func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
