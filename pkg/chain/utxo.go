package chain

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/utxochain/internal/utils/logging"
	"github.com/tcfw/utxochain/pkg/storage"
	"github.com/tcfw/utxochain/pkg/tx"
)

// UnspentOutput is an output still spendable, with its position in the
// transaction that created it.
type UnspentOutput struct {
	Index  int         `msgpack:"i"`
	Output tx.TXOutput `msgpack:"o"`
}

// SpendableOutputs is the result of a spend selection. Outputs maps tx ids to
// the indexes of the selected outputs.
type SpendableOutputs struct {
	Accumulated int64
	Outputs     map[string][]int
}

// UTXOSet is the persisted index of unspent outputs derived from a chain.
// Sets created over the same chain share its index lock.
type UTXOSet struct {
	bc     *Blockchain
	logger *logrus.Entry
}

func NewUTXOSet(bc *Blockchain) *UTXOSet {
	initPrometheusMetrics()

	return &UTXOSet{
		bc:     bc,
		logger: logging.Component("utxo"),
	}
}

func (u *UTXOSet) Blockchain() *Blockchain {
	return u.bc
}

func encodeOutputs(outs []UnspentOutput) ([]byte, error) {
	d, err := msgpack.Marshal(outs)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling outputs")
	}

	return d, nil
}

func decodeOutputs(d []byte) ([]UnspentOutput, error) {
	outs := []UnspentOutput{}
	if err := msgpack.Unmarshal(d, &outs); err != nil {
		return nil, errors.Wrap(err, "unmarshaling outputs")
	}

	return outs, nil
}

// ReIndex rebuilds the index from a full scan of the chain in one atomic
// store update.
func (u *UTXOSet) ReIndex(ctx context.Context) error {
	u.bc.utxoMu.Lock()
	defer u.bc.utxoMu.Unlock()

	utxos, err := u.bc.FindAllUTXOs(ctx)
	if err != nil {
		return err
	}

	err = u.bc.store.Update(ctx, func(w storage.Writer) error {
		if err := w.ClearUTXOs(ctx); err != nil {
			return err
		}

		for id, outs := range utxos {
			d, err := encodeOutputs(outs)
			if err != nil {
				return err
			}

			if err := w.PutUTXOs(ctx, id, d); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "reindexing utxos")
	}

	prometheusUTXOReIndex.Inc()
	u.logger.WithField("txs", len(utxos)).Info("rebuilt utxo index")

	return nil
}

// Update applies a newly appended block to the index. It must be called once
// per block, in chain order.
func (u *UTXOSet) Update(ctx context.Context, b *Block) error {
	u.bc.utxoMu.Lock()
	defer u.bc.utxoMu.Unlock()

	err := u.bc.store.Update(ctx, func(w storage.Writer) error {
		for _, t := range b.Transactions {
			if !t.IsCoinbase() {
				for _, in := range t.Inputs {
					if err := spendOutput(ctx, w, in); err != nil {
						return err
					}
				}
			}

			if len(t.Outputs) == 0 {
				continue
			}

			outs := make([]UnspentOutput, 0, len(t.Outputs))
			for idx, out := range t.Outputs {
				outs = append(outs, UnspentOutput{Index: idx, Output: out})
			}

			d, err := encodeOutputs(outs)
			if err != nil {
				return err
			}

			if err := w.PutUTXOs(ctx, t.IDString(), d); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "updating utxo index")
	}

	prometheusUTXOUpdate.Inc()
	u.logger.WithField("block", b.Hash).Debug("applied block to utxo index")

	return nil
}

// spendOutput removes the output referenced by in. An entry already missing
// from the index is left alone.
func spendOutput(ctx context.Context, w storage.Writer, in tx.TXInput) error {
	id := in.PrevTxIDString()

	d, err := w.GetUTXOs(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	outs, err := decodeOutputs(d)
	if err != nil {
		return err
	}

	remaining := make([]UnspentOutput, 0, len(outs))
	for _, out := range outs {
		if out.Index != in.OutputIndex {
			remaining = append(remaining, out)
		}
	}

	if len(remaining) == 0 {
		return w.DeleteUTXOs(ctx, id)
	}

	nd, err := encodeOutputs(remaining)
	if err != nil {
		return err
	}

	return w.PutUTXOs(ctx, id, nd)
}

// forEach walks the index decoding each entry
func (u *UTXOSet) forEach(ctx context.Context, fn func(id string, outs []UnspentOutput) (bool, error)) error {
	return u.bc.store.ForEachUTXOs(ctx, func(id string, d []byte) (bool, error) {
		outs, err := decodeOutputs(d)
		if err != nil {
			return false, errors.Wrapf(err, "utxo entry %s", id)
		}

		return fn(id, outs)
	})
}

// FindSpendableOutputs greedily selects outputs locked to pubKeyHash until
// their value reaches amount. The accumulated value may exceed amount.
func (u *UTXOSet) FindSpendableOutputs(ctx context.Context, pubKeyHash []byte, amount int64) (*SpendableOutputs, error) {
	u.bc.utxoMu.RLock()
	defer u.bc.utxoMu.RUnlock()

	res := &SpendableOutputs{Outputs: map[string][]int{}}

	err := u.forEach(ctx, func(id string, outs []UnspentOutput) (bool, error) {
		for _, out := range outs {
			if res.Accumulated >= amount {
				break
			}

			if out.Output.IsLockedWithKey(pubKeyHash) {
				res.Accumulated += out.Output.Value
				res.Outputs[id] = append(res.Outputs[id], out.Index)
			}
		}

		return res.Accumulated < amount, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "finding spendable outputs")
	}

	return res, nil
}

// FindUTXOs returns every unspent output locked to pubKeyHash
func (u *UTXOSet) FindUTXOs(ctx context.Context, pubKeyHash []byte) ([]tx.TXOutput, error) {
	u.bc.utxoMu.RLock()
	defer u.bc.utxoMu.RUnlock()

	utxos := []tx.TXOutput{}

	err := u.forEach(ctx, func(_ string, outs []UnspentOutput) (bool, error) {
		for _, out := range outs {
			if out.Output.IsLockedWithKey(pubKeyHash) {
				utxos = append(utxos, out.Output)
			}
		}

		return true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "finding utxos")
	}

	return utxos, nil
}

func (u *UTXOSet) Balance(ctx context.Context, pubKeyHash []byte) (int64, error) {
	utxos, err := u.FindUTXOs(ctx, pubKeyHash)
	if err != nil {
		return 0, err
	}

	var balance int64
	for _, out := range utxos {
		balance += out.Value
	}

	return balance, nil
}

// CountTransactions returns the number of transactions with unspent outputs
func (u *UTXOSet) CountTransactions(ctx context.Context) (int, error) {
	u.bc.utxoMu.RLock()
	defer u.bc.utxoMu.RUnlock()

	n := 0
	err := u.bc.store.ForEachUTXOs(ctx, func(string, []byte) (bool, error) {
		n++
		return true, nil
	})

	return n, err
}
