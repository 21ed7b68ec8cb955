package storage

import (
	"context"
)

// Reader looks up opaque payloads previously written by the chain. Missing
// keys return ErrNotFound; a stored empty payload is returned as a non-nil
// empty slice.
type Reader interface {
	GetBlock(ctx context.Context, hash string) ([]byte, error)
	GetTip(ctx context.Context) (string, error)
	GetUTXOs(ctx context.Context, txID string) ([]byte, error)
}

// Writer holds the mutating half of the store. Blocks and UTXO entries live in
// two independent logical tables.
type Writer interface {
	Reader

	PutBlock(ctx context.Context, hash string, data []byte) error
	PutTip(ctx context.Context, hash string) error

	PutUTXOs(ctx context.Context, txID string, data []byte) error
	// DeleteUTXOs is a no-op for a missing entry
	DeleteUTXOs(ctx context.Context, txID string) error
	ClearUTXOs(ctx context.Context) error
}

// UTXOIterFunc is called per UTXO entry; returning false stops iteration
type UTXOIterFunc func(txID string, data []byte) (bool, error)

type Store interface {
	Writer

	ForEachUTXOs(ctx context.Context, fn UTXOIterFunc) error

	// Update runs fn against a write batch and commits it atomically. Reads
	// made through the batch observe its own pending writes. If fn returns an
	// error nothing is written.
	Update(ctx context.Context, fn func(Writer) error) error

	Close() error
}
