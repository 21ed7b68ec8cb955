package storage

import (
	"context"
	"sort"
	"sync"
)

var (
	_ Store  = (*MemStore)(nil)
	_ Writer = (*memBatch)(nil)
)

// MemStore keeps both tables in maps. Payloads are copied in and out so
// callers never share backing arrays with the store.
type MemStore struct {
	mu sync.RWMutex

	blocks map[string][]byte
	utxos  map[string][]byte

	tip    string
	hasTip bool
	closed bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		blocks: make(map[string][]byte),
		utxos:  make(map[string][]byte),
	}
}

func clone(d []byte) []byte {
	c := make([]byte, len(d))
	copy(c, d)
	return c
}

func (m *MemStore) GetBlock(_ context.Context, hash string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.getBlock(hash)
}

func (m *MemStore) getBlock(hash string) ([]byte, error) {
	if m.closed {
		return nil, ErrClosed
	}

	d, ok := m.blocks[hash]
	if !ok {
		return nil, ErrNotFound
	}

	return clone(d), nil
}

func (m *MemStore) GetTip(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.getTip()
}

func (m *MemStore) getTip() (string, error) {
	if m.closed {
		return "", ErrClosed
	}

	if !m.hasTip {
		return "", ErrNotFound
	}

	return m.tip, nil
}

func (m *MemStore) GetUTXOs(_ context.Context, txID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.getUTXOs(txID)
}

func (m *MemStore) getUTXOs(txID string) ([]byte, error) {
	if m.closed {
		return nil, ErrClosed
	}

	d, ok := m.utxos[txID]
	if !ok {
		return nil, ErrNotFound
	}

	return clone(d), nil
}

func (m *MemStore) PutBlock(ctx context.Context, hash string, data []byte) error {
	return m.Update(ctx, func(w Writer) error { return w.PutBlock(ctx, hash, data) })
}

func (m *MemStore) PutTip(ctx context.Context, hash string) error {
	return m.Update(ctx, func(w Writer) error { return w.PutTip(ctx, hash) })
}

func (m *MemStore) PutUTXOs(ctx context.Context, txID string, data []byte) error {
	return m.Update(ctx, func(w Writer) error { return w.PutUTXOs(ctx, txID, data) })
}

func (m *MemStore) DeleteUTXOs(ctx context.Context, txID string) error {
	return m.Update(ctx, func(w Writer) error { return w.DeleteUTXOs(ctx, txID) })
}

func (m *MemStore) ClearUTXOs(ctx context.Context) error {
	return m.Update(ctx, func(w Writer) error { return w.ClearUTXOs(ctx) })
}

// ForEachUTXOs iterates a snapshot of the UTXO table in txID order
func (m *MemStore) ForEachUTXOs(_ context.Context, fn UTXOIterFunc) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}

	keys := make([]string, 0, len(m.utxos))
	snap := make(map[string][]byte, len(m.utxos))
	for k, v := range m.utxos {
		keys = append(keys, k)
		snap[k] = clone(v)
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	for _, k := range keys {
		more, err := fn(k, snap[k])
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}

	return nil
}

func (m *MemStore) Update(_ context.Context, fn func(Writer) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	b := &memBatch{
		m:      m,
		blocks: make(map[string][]byte),
		utxos:  make(map[string][]byte),
	}

	if err := fn(b); err != nil {
		return err
	}

	b.apply()

	return nil
}

func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

// memBatch overlays pending writes on the store. It is only used while the
// store's write lock is held.
type memBatch struct {
	m *MemStore

	blocks map[string][]byte
	//nil value marks a delete
	utxos   map[string][]byte
	cleared bool
	tip     *string
}

func (b *memBatch) GetBlock(_ context.Context, hash string) ([]byte, error) {
	if d, ok := b.blocks[hash]; ok {
		return clone(d), nil
	}

	return b.m.getBlock(hash)
}

func (b *memBatch) GetTip(_ context.Context) (string, error) {
	if b.tip != nil {
		return *b.tip, nil
	}

	return b.m.getTip()
}

func (b *memBatch) GetUTXOs(_ context.Context, txID string) ([]byte, error) {
	if d, ok := b.utxos[txID]; ok {
		if d == nil {
			return nil, ErrNotFound
		}
		return clone(d), nil
	}

	if b.cleared {
		return nil, ErrNotFound
	}

	return b.m.getUTXOs(txID)
}

func (b *memBatch) PutBlock(_ context.Context, hash string, data []byte) error {
	b.blocks[hash] = clone(data)
	return nil
}

func (b *memBatch) PutTip(_ context.Context, hash string) error {
	b.tip = &hash
	return nil
}

func (b *memBatch) PutUTXOs(_ context.Context, txID string, data []byte) error {
	b.utxos[txID] = clone(data)
	return nil
}

func (b *memBatch) DeleteUTXOs(_ context.Context, txID string) error {
	b.utxos[txID] = nil
	return nil
}

func (b *memBatch) ClearUTXOs(_ context.Context) error {
	b.cleared = true
	b.utxos = make(map[string][]byte)
	return nil
}

func (b *memBatch) apply() {
	m := b.m

	for k, v := range b.blocks {
		m.blocks[k] = v
	}

	if b.cleared {
		m.utxos = make(map[string][]byte)
	}

	for k, v := range b.utxos {
		if v == nil {
			delete(m.utxos, k)
			continue
		}
		m.utxos[k] = v
	}

	if b.tip != nil {
		m.tip = *b.tip
		m.hasTip = true
	}
}
