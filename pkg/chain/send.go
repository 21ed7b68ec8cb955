package chain

import (
	"context"
	"encoding/hex"
	"sort"

	"github.com/pkg/errors"

	"github.com/tcfw/utxochain/internal/utils/logging"
	"github.com/tcfw/utxochain/pkg/cryptography"
	"github.com/tcfw/utxochain/pkg/tx"
)

// Sender owns the key pair funding a payment
type Sender interface {
	Address() string
	PublicKey() []byte
	SignMessage(msg []byte) ([]byte, error)
}

// NewUTXOTransaction builds and signs a payment of amount from the sender to
// the to address, returning any surplus to the sender as change.
func NewUTXOTransaction(ctx context.Context, from Sender, to string, amount int64, set *UTXOSet) (*tx.Transaction, error) {
	if amount < 1 {
		return nil, ErrInvalidAmount
	}

	if !cryptography.ValidateAddress(to) {
		return nil, errors.Wrap(cryptography.ErrInvalidAddress, to)
	}

	pubKeyHash := cryptography.Hash160(from.PublicKey())

	spendable, err := set.FindSpendableOutputs(ctx, pubKeyHash, amount)
	if err != nil {
		return nil, err
	}

	if spendable.Accumulated < amount {
		prometheusInsufficientFunds.Inc()
		return nil, errors.Wrapf(ErrInsufficientFunds, "have %d, need %d", spendable.Accumulated, amount)
	}

	ids := make([]string, 0, len(spendable.Outputs))
	for id := range spendable.Outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inputs := []tx.TXInput{}
	for _, id := range ids {
		txID, err := hex.DecodeString(id)
		if err != nil {
			return nil, errors.Wrap(err, "decoding utxo tx id")
		}

		for _, idx := range spendable.Outputs[id] {
			inputs = append(inputs, tx.TXInput{
				PrevTxID:    txID,
				OutputIndex: idx,
				PubKey:      from.PublicKey(),
			})
		}
	}

	pay, err := tx.NewTXOutput(amount, to)
	if err != nil {
		return nil, err
	}
	outputs := []tx.TXOutput{*pay}

	if spendable.Accumulated > amount {
		change, err := tx.NewTXOutput(spendable.Accumulated-amount, from.Address())
		if err != nil {
			return nil, errors.Wrap(err, "creating change output")
		}
		outputs = append(outputs, *change)
	}

	t, err := tx.NewTransaction(inputs, outputs)
	if err != nil {
		return nil, err
	}

	if err := set.Blockchain().SignTransaction(ctx, t, from); err != nil {
		return nil, errors.Wrap(err, "signing transaction")
	}

	return t, nil
}

// Send pays amount to the to address in a newly mined block that also rewards
// the sender, then applies the block to the index. Payments on one chain run
// one at a time so no output is selected twice.
func Send(ctx context.Context, set *UTXOSet, from Sender, to string, amount int64) (*Block, error) {
	bc := set.Blockchain()

	bc.sendMu.Lock()
	defer bc.sendMu.Unlock()

	t, err := NewUTXOTransaction(ctx, from, to, amount, set)
	if err != nil {
		return nil, err
	}

	reward, err := tx.NewCoinbaseTX(from.Address(), "")
	if err != nil {
		return nil, errors.Wrap(err, "creating reward")
	}

	b, err := bc.MineBlock(ctx, []*tx.Transaction{t, reward})
	if err != nil {
		return nil, err
	}

	if err := set.Update(ctx, b); err != nil {
		return nil, err
	}

	logging.Component("chain").WithFields(logging.Fields{
		"from":   from.Address(),
		"to":     to,
		"amount": amount,
		"block":  b.Hash,
	}).Info("sent payment")

	return b, nil
}
