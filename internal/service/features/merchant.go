package features

import (
	"github.com/cespare/xxhash/v2"
)

// MerchantHashVersion names the bucketing scheme. Changing the hash function
// or the default seed changes every merchant_category and requires a new one.
const MerchantHashVersion = "xxh64-v1"

// DefaultMerchantHashSeed is the pinned seed for MerchantHashVersion
const DefaultMerchantHashSeed uint64 = 0x9e3779b97f4a7c15

// MerchantCategories is the number of merchant buckets
const MerchantCategories = 10

// MerchantBucketer maps merchant names onto a stable category in [0, MerchantCategories).
// The mapping depends only on the seed and the merchant string, so it is
// identical across processes, restarts and hosts.
type MerchantBucketer struct {
	seed uint64
}

// NewMerchantBucketer creates a bucketer with the given hash seed
func NewMerchantBucketer(seed uint64) MerchantBucketer {
	return MerchantBucketer{seed: seed}
}

// DefaultMerchantBucketer uses DefaultMerchantHashSeed
func DefaultMerchantBucketer() MerchantBucketer {
	return NewMerchantBucketer(DefaultMerchantHashSeed)
}

// Bucket returns the merchant category for name
func (b MerchantBucketer) Bucket(name string) int {
	d := xxhash.NewWithSeed(b.seed)
	_, _ = d.WriteString(name)
	return int(d.Sum64() % MerchantCategories)
}

// Seed returns the hash seed
func (b MerchantBucketer) Seed() uint64 {
	return b.seed
}
