package storage

import (
	"github.com/bits-and-blooms/bloom/v3"
)

const (
	falsePositive = 0.01
)

// MakeBloom builds a filter over the given transaction ids
func MakeBloom(ids [][]byte) ([]byte, error) {
	n := uint(len(ids))
	if n == 0 {
		n = 1
	}

	b := bloom.NewWithEstimates(n, falsePositive)

	for _, id := range ids {
		b.Add(id)
	}

	return b.GobEncode()
}

// BloomContains reports whether id may be in the filter. An empty filter
// always answers true so callers fall back to a full scan.
func BloomContains(b []byte, id []byte) (bool, error) {
	if len(b) == 0 {
		return true, nil
	}

	filter := &bloom.BloomFilter{}

	if err := filter.GobDecode(b); err != nil {
		return false, err
	}

	return filter.Test(id), nil
}
