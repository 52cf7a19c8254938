package features

import (
	"encoding/json"
	"fmt"
)

// Feature names. The set is fixed; a model schema may use any ordered subset.
const (
	Amount               = "amount"
	Hour                 = "hour"
	DayOfWeek            = "day_of_week"
	MerchantCategory     = "merchant_category"
	CardAgeDays          = "card_age_days"
	TransactionFrequency = "transaction_frequency"
	AvgTransactionAmount = "avg_transaction_amount"
	DistanceFromHome     = "distance_from_home"
	IsWeekend            = "is_weekend"
	IsNight              = "is_night"
)

// allFeatures lists every feature the extractor produces, in default schema order
var allFeatures = []string{
	Amount,
	Hour,
	DayOfWeek,
	MerchantCategory,
	CardAgeDays,
	TransactionFrequency,
	AvgTransactionAmount,
	DistanceFromHome,
	IsWeekend,
	IsNight,
}

// Record is the fixed-schema feature set derived from one transaction.
// It is a value type; copies never share state.
type Record struct {
	Amount               float64
	Hour                 float64
	DayOfWeek            float64
	MerchantCategory     float64
	CardAgeDays          float64
	TransactionFrequency float64
	AvgTransactionAmount float64
	DistanceFromHome     float64
	IsWeekend            float64
	IsNight              float64
}

// Lookup returns the value of a named feature
func (r Record) Lookup(name string) (float64, bool) {
	switch name {
	case Amount:
		return r.Amount, true
	case Hour:
		return r.Hour, true
	case DayOfWeek:
		return r.DayOfWeek, true
	case MerchantCategory:
		return r.MerchantCategory, true
	case CardAgeDays:
		return r.CardAgeDays, true
	case TransactionFrequency:
		return r.TransactionFrequency, true
	case AvgTransactionAmount:
		return r.AvgTransactionAmount, true
	case DistanceFromHome:
		return r.DistanceFromHome, true
	case IsWeekend:
		return r.IsWeekend, true
	case IsNight:
		return r.IsNight, true
	}
	return 0, false
}

// Map returns the record as name -> value
func (r Record) Map() map[string]float64 {
	m := make(map[string]float64, len(allFeatures))
	for _, name := range allFeatures {
		v, _ := r.Lookup(name)
		m[name] = v
	}
	return m
}

// MarshalJSON renders the record as a flat object keyed by feature name
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Schema is the ordered list of feature names a classifier was trained on
type Schema []string

// DefaultSchema returns the schema used by bootstrap training
func DefaultSchema() Schema {
	return AllFeatures()
}

// AllFeatures returns a copy of every known feature name
func AllFeatures() []string {
	out := make([]string, len(allFeatures))
	copy(out, allFeatures)
	return out
}

// IsKnown reports whether name is produced by the extractor
func IsKnown(name string) bool {
	for _, f := range allFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// Len returns the number of features in the schema
func (s Schema) Len() int {
	return len(s)
}

// Clone returns an independent copy
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both schemas list the same names in the same order
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate checks that the schema is non-empty, has no duplicates and only
// names features the extractor produces.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return &ExtractionError{Reason: ReasonSchemaMismatch, Err: fmt.Errorf("schema is empty")}
	}

	seen := make(map[string]struct{}, len(s))
	for _, name := range s {
		if !IsKnown(name) {
			return &ExtractionError{Reason: ReasonSchemaMismatch, Feature: name}
		}
		if _, dup := seen[name]; dup {
			return &ExtractionError{
				Reason:  ReasonSchemaMismatch,
				Feature: name,
				Err:     fmt.Errorf("duplicate feature"),
			}
		}
		seen[name] = struct{}{}
	}
	return nil
}
