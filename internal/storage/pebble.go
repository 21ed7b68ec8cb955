package storage

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/tcfw/utxochain/internal/utils/logging"
	"github.com/tcfw/utxochain/pkg/storage"
)

var (
	_ storage.Store  = (*PebbleStore)(nil)
	_ storage.Writer = (*pebbleBatch)(nil)
)

const (
	cacheSize = 1 << 20 * 100

	tableSep byte = ':'
)

type keyType byte

const (
	blockTPrefix keyType = iota + 1
	tipTPrefix
	utxoTPrefix
)

// PebbleStore persists the block and UTXO tables in a single pebble database,
// separated by key prefix.
type PebbleStore struct {
	db *pebble.DB

	//serialises batches so read-modify-write in Update is isolated
	updateMu sync.Mutex

	closeMu sync.RWMutex
	closed  bool
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	c := pebble.NewCache(cacheSize)
	tc := pebble.NewTableCache(c, 16, 100)
	defer tc.Unref()
	defer c.Unref()

	db, err := pebble.Open(path, &pebble.Options{Cache: c, TableCache: tc})
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble store")
	}

	logging.Component("storage").WithField("path", path).Debug("opened chain store")

	return &PebbleStore{db: db}, nil
}

type getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func get(g getter, key []byte) ([]byte, error) {
	v, done, err := g.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	defer done.Close()

	d := make([]byte, len(v))
	copy(d, v)

	return d, nil
}

func (s *PebbleStore) guard() (func(), error) {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return nil, storage.ErrClosed
	}

	return s.closeMu.RUnlock, nil
}

func (s *PebbleStore) GetBlock(_ context.Context, hash string) ([]byte, error) {
	release, err := s.guard()
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := get(s.db, typedKey(blockTPrefix, hash))
	if err != nil && err != storage.ErrNotFound {
		return nil, errors.Wrap(err, "getting block")
	}

	return d, err
}

func (s *PebbleStore) GetTip(_ context.Context) (string, error) {
	release, err := s.guard()
	if err != nil {
		return "", err
	}
	defer release()

	d, err := get(s.db, typedKey(tipTPrefix))
	if err != nil {
		if err == storage.ErrNotFound {
			return "", err
		}
		return "", errors.Wrap(err, "getting tip")
	}

	return string(d), nil
}

func (s *PebbleStore) GetUTXOs(_ context.Context, txID string) ([]byte, error) {
	release, err := s.guard()
	if err != nil {
		return nil, err
	}
	defer release()

	d, err := get(s.db, typedKey(utxoTPrefix, txID))
	if err != nil && err != storage.ErrNotFound {
		return nil, errors.Wrap(err, "getting utxos")
	}

	return d, err
}

func (s *PebbleStore) PutBlock(ctx context.Context, hash string, data []byte) error {
	return s.Update(ctx, func(w storage.Writer) error { return w.PutBlock(ctx, hash, data) })
}

func (s *PebbleStore) PutTip(ctx context.Context, hash string) error {
	return s.Update(ctx, func(w storage.Writer) error { return w.PutTip(ctx, hash) })
}

func (s *PebbleStore) PutUTXOs(ctx context.Context, txID string, data []byte) error {
	return s.Update(ctx, func(w storage.Writer) error { return w.PutUTXOs(ctx, txID, data) })
}

func (s *PebbleStore) DeleteUTXOs(ctx context.Context, txID string) error {
	return s.Update(ctx, func(w storage.Writer) error { return w.DeleteUTXOs(ctx, txID) })
}

func (s *PebbleStore) ClearUTXOs(ctx context.Context) error {
	return s.Update(ctx, func(w storage.Writer) error { return w.ClearUTXOs(ctx) })
}

func (s *PebbleStore) ForEachUTXOs(_ context.Context, fn storage.UTXOIterFunc) error {
	release, err := s.guard()
	if err != nil {
		return err
	}
	defer release()

	lower, upper := prefixBounds(utxoTPrefix)
	iter := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		txID := string(k[len(lower):])

		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())

		more, err := fn(txID, v)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}

	return errors.Wrap(iter.Error(), "iterating utxos")
}

func (s *PebbleStore) Update(_ context.Context, fn func(storage.Writer) error) error {
	release, err := s.guard()
	if err != nil {
		return err
	}
	defer release()

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	b := &pebbleBatch{b: s.db.NewIndexedBatch()}
	defer b.b.Close()

	if err := fn(b); err != nil {
		return err
	}

	if err := b.b.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "committing batch")
	}

	return nil
}

func (s *PebbleStore) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

type pebbleBatch struct {
	b *pebble.Batch
}

func (b *pebbleBatch) GetBlock(_ context.Context, hash string) ([]byte, error) {
	return get(b.b, typedKey(blockTPrefix, hash))
}

func (b *pebbleBatch) GetTip(_ context.Context) (string, error) {
	d, err := get(b.b, typedKey(tipTPrefix))
	if err != nil {
		return "", err
	}

	return string(d), nil
}

func (b *pebbleBatch) GetUTXOs(_ context.Context, txID string) ([]byte, error) {
	return get(b.b, typedKey(utxoTPrefix, txID))
}

func (b *pebbleBatch) PutBlock(_ context.Context, hash string, data []byte) error {
	return errors.Wrap(b.b.Set(typedKey(blockTPrefix, hash), data, nil), "storing block")
}

func (b *pebbleBatch) PutTip(_ context.Context, hash string) error {
	return errors.Wrap(b.b.Set(typedKey(tipTPrefix), []byte(hash), nil), "storing tip")
}

func (b *pebbleBatch) PutUTXOs(_ context.Context, txID string, data []byte) error {
	return errors.Wrap(b.b.Set(typedKey(utxoTPrefix, txID), data, nil), "storing utxos")
}

func (b *pebbleBatch) DeleteUTXOs(_ context.Context, txID string) error {
	return errors.Wrap(b.b.Delete(typedKey(utxoTPrefix, txID), nil), "deleting utxos")
}

func (b *pebbleBatch) ClearUTXOs(_ context.Context) error {
	lower, upper := prefixBounds(utxoTPrefix)
	return errors.Wrap(b.b.DeleteRange(lower, upper, nil), "clearing utxos")
}

// prefixBounds returns the key range holding every entry of a table
func prefixBounds(kType keyType) ([]byte, []byte) {
	return []byte{byte(kType), tableSep}, []byte{byte(kType), tableSep + 1}
}

func typedKey(kType keyType, parts ...string) []byte {
	n := 1
	for _, p := range parts {
		n += len(p) + 1 //add sep as well
	}

	k := make([]byte, 0, n)
	k = append(k, byte(kType))
	for _, p := range parts {
		k = append(k, tableSep)
		k = append(k, []byte(p)...)
	}

	return k
}
