package transaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Payload field names as they appear on the wire
const (
	FieldAmount          = "amount"
	FieldMerchant        = "merchant"
	FieldTransactionDate = "transactionDate"
)

// DefaultMerchant is used when the payload carries no merchant
const DefaultMerchant = "unknown"

// ErrEmptyPayload is returned for a missing, non-object or empty payload
var ErrEmptyPayload = errors.New("no transaction data provided")

// Payload is the semi-structured transaction supplied by the caller.
// Values are kept as decoded (json.Number, string, bool, ...) so that
// coercion and its failure modes stay in the feature extractor.
// A nil field means the key was absent or null.
type Payload struct {
	Amount          any
	Merchant        any
	TransactionDate any
}

// FromMap builds a Payload from a decoded JSON object
func FromMap(m map[string]any) (Payload, error) {
	if len(m) == 0 {
		return Payload{}, ErrEmptyPayload
	}

	return Payload{
		Amount:          m[FieldAmount],
		Merchant:        m[FieldMerchant],
		TransactionDate: m[FieldTransactionDate],
	}, nil
}

// Decode reads a JSON object from r. Numbers are kept as json.Number so that
// amounts keep their decimal representation.
func Decode(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Payload{}, ErrEmptyPayload
		}
		return Payload{}, fmt.Errorf("decoding transaction payload: %w", err)
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return Payload{}, ErrEmptyPayload
	}

	return FromMap(m)
}

// DecodeBytes is Decode over an in-memory document
func DecodeBytes(data []byte) (Payload, error) {
	return Decode(bytes.NewReader(data))
}

// MerchantName returns the merchant as a string, defaulting to "unknown".
// Non-string scalars are rendered with their default formatting.
func (p Payload) MerchantName() string {
	switch v := p.Merchant.(type) {
	case nil:
		return DefaultMerchant
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
