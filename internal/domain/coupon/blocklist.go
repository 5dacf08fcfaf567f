package coupon

import (
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// Blocklist is a bloom filter of coupon codes known to be abused or leaked.
// A membership hit rejects the code locally before any network round trip.
// False positives are possible at the configured rate; a falsely blocked
// customer retries with another code, which is an acceptable trade against
// hammering the check endpoint with known-bad codes.
type Blocklist struct {
	filter *bloom.BloomFilter
}

// NewBlocklist wraps an existing filter. Used by the ingest tool.
func NewBlocklist(filter *bloom.BloomFilter) *Blocklist {
	return &Blocklist{filter: filter}
}

// LoadBlocklist reads a serialized bloom filter produced by
// cmd/blocklist-ingest.
func LoadBlocklist(path string) (*Blocklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open blocklist")
	}
	defer f.Close()

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(f); err != nil {
		return nil, errors.Wrap(err, "read bloom filter")
	}
	return &Blocklist{filter: filter}, nil
}

// Contains reports whether code is (probably) blocklisted.
func (b *Blocklist) Contains(code string) bool {
	return b.filter.TestString(code)
}
