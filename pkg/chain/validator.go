package chain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tcfw/utxochain/pkg/tx"
)

type Validator interface {
	IsBlockValid(context.Context, *Block) error
	IsTxValid(context.Context, *tx.Transaction) error
}

// TxValidator checks blocks and transactions against the chain they extend
type TxValidator struct {
	bc *Blockchain
}

func NewTxValidator(bc *Blockchain) *TxValidator {
	return &TxValidator{bc}
}

func (v *TxValidator) IsBlockValid(ctx context.Context, b *Block) error {
	if err := v.bc.ValidateBlock(b); err != nil {
		return errors.Wrap(err, "invalid proof of work")
	}

	seen := map[string]struct{}{}
	coinbases := 0

	for _, t := range b.Transactions {
		id := t.IDString()
		if _, ok := seen[id]; ok {
			return errors.Errorf("duplicate tx %s in block", id)
		}
		seen[id] = struct{}{}

		if t.IsCoinbase() {
			coinbases++
		}

		if err := v.IsTxValid(ctx, t); err != nil {
			return errors.Wrap(err, "invalid tx in block")
		}
	}

	if coinbases > 1 {
		return errors.New("block contains more than one coinbase")
	}

	return nil
}

func (v *TxValidator) IsTxValid(ctx context.Context, t *tx.Transaction) error {
	if len(t.Outputs) == 0 {
		return errors.New("tx has no outputs")
	}

	for _, out := range t.Outputs {
		if out.Value < 0 {
			return errors.New("tx output value is negative")
		}
	}

	return v.bc.VerifyTransaction(ctx, t)
}
