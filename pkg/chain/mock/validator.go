package mock

import (
	"context"
	"sync"

	"github.com/tcfw/utxochain/pkg/chain"
	"github.com/tcfw/utxochain/pkg/tx"
)

var _ chain.Validator = (*MockValidator)(nil)

// MockValidator accepts everything unless Err is set, and records the
// transactions it was asked about.
type MockValidator struct {
	Err error

	mu  sync.Mutex
	Txs []*tx.Transaction
}

func (m *MockValidator) IsBlockValid(_ context.Context, _ *chain.Block) error {
	return m.Err
}

func (m *MockValidator) IsTxValid(_ context.Context, t *tx.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Txs = append(m.Txs, t)

	return m.Err
}
