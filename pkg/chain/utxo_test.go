package chain

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tcfw/utxochain/pkg/tx"
)

func TestSendScenario(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	utxos, err := set.FindUTXOs(ctx, a.pubKeyHash())
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, utxos, 1)
	assert.Equal(t, tx.Subsidy, utxos[0].Value)

	blk, err := Send(ctx, set, a, b.Address(), 4)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, blk.Transactions, 2)
	assert.False(t, blk.Transactions[0].IsCoinbase())
	assert.True(t, blk.Transactions[1].IsCoinbase())

	tip, _ := bc.Tip(ctx)
	assert.Equal(t, blk.Hash, tip)

	utxos, err = set.FindUTXOs(ctx, b.pubKeyHash())
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, utxos, 1)
	assert.Equal(t, int64(4), utxos[0].Value)

	utxos, err = set.FindUTXOs(ctx, a.pubKeyHash())
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, utxos, 2)
	assert.Equal(t, tx.Subsidy-4+tx.Subsidy, sumOutputs(utxos))

	//genesis coinbase was fully spent
	n, err := set.CountTransactions(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSendExactAmountHasNoChange(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	_, set := newTestChain(t, a)

	blk, err := Send(ctx, set, a, b.Address(), tx.Subsidy)
	if err != nil {
		t.Fatal(err)
	}

	assert.Len(t, blk.Transactions[0].Outputs, 1)

	balance, _ := set.Balance(ctx, b.pubKeyHash())
	assert.Equal(t, tx.Subsidy, balance)
}

func TestIncrementalUpdateMatchesReIndex(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	c := newSender(t)
	bc, set := newTestChain(t, a)

	before := testutil.ToFloat64(prometheusUTXOUpdate)

	steps := []struct {
		from   *testSender
		to     *testSender
		amount int64
	}{
		{a, b, 4},
		{b, a, 1},
		{a, c, 17},
		{c, b, 2},
		{b, b, 5},
	}

	for _, s := range steps {
		if _, err := Send(ctx, set, s.from, s.to.Address(), s.amount); err != nil {
			t.Fatal(err)
		}
	}

	assert.Equal(t, before+float64(len(steps)), testutil.ToFloat64(prometheusUTXOUpdate))

	incremental := indexSnapshot(t, set)

	full, err := bc.FindAllUTXOs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, full, incremental)

	if err := set.ReIndex(ctx); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, incremental, indexSnapshot(t, set))

	var total int64
	for _, s := range []*testSender{a, b, c} {
		bal, err := set.Balance(ctx, s.pubKeyHash())
		assert.NoError(t, err)
		total += bal
	}

	//genesis plus one reward per send
	assert.Equal(t, tx.Subsidy*int64(len(steps)+1), total)
}

func TestUpdateKeepsOutputIndexes(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	c := newSender(t)
	bc, set := newTestChain(t, a)

	//a pays b 4 with 6 change; output 0 goes to b and output 1 back to a
	if _, err := Send(ctx, set, a, b.Address(), 4); err != nil {
		t.Fatal(err)
	}

	//b spends output 0 only, leaving the change at index 1
	if _, err := Send(ctx, set, b, c.Address(), 4); err != nil {
		t.Fatal(err)
	}

	//a now spends everything it owns, including that index 1 change
	if _, err := Send(ctx, set, a, c.Address(), 16); err != nil {
		t.Fatal(err)
	}

	full, err := bc.FindAllUTXOs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, full, indexSnapshot(t, set))

	bal, _ := set.Balance(ctx, c.pubKeyHash())
	assert.Equal(t, int64(20), bal)
}

func TestFindSpendableOutputs(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	_, set := newTestChain(t, a)

	for i := 0; i < 3; i++ {
		if _, err := Send(ctx, set, a, b.Address(), 1); err != nil {
			t.Fatal(err)
		}
	}

	res, err := set.FindSpendableOutputs(ctx, b.pubKeyHash(), 2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(2), res.Accumulated)

	n := 0
	for _, idxs := range res.Outputs {
		n += len(idxs)
	}
	assert.Equal(t, 2, n)

	res, err = set.FindSpendableOutputs(ctx, b.pubKeyHash(), 100)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), res.Accumulated)

	res, err = set.FindSpendableOutputs(ctx, a.pubKeyHash(), 11)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, res.Accumulated, int64(11))
}

func TestInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	tipBefore, _ := bc.Tip(ctx)
	indexBefore := indexSnapshot(t, set)

	_, err := Send(ctx, set, a, b.Address(), tx.Subsidy+1)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	_, err = Send(ctx, set, b, a.Address(), 1)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	tipAfter, _ := bc.Tip(ctx)
	assert.Equal(t, tipBefore, tipAfter)
	assert.Equal(t, indexBefore, indexSnapshot(t, set))
}

func TestSendInvalidInput(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	_, set := newTestChain(t, a)

	_, err := Send(ctx, set, a, b.Address(), 0)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = Send(ctx, set, a, b.Address(), -3)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = Send(ctx, set, a, "not-an-address", 1)
	assert.Error(t, err)
}

func TestUpdateSkipsMissingEntries(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	trx, err := NewUTXOTransaction(ctx, a, b.Address(), 4, set)
	if err != nil {
		t.Fatal(err)
	}

	blk, err := bc.MineBlock(ctx, []*tx.Transaction{trx})
	if err != nil {
		t.Fatal(err)
	}

	//drop the referenced entry so the spend finds nothing to remove
	if err := bc.Store().DeleteUTXOs(ctx, trx.Inputs[0].PrevTxIDString()); err != nil {
		t.Fatal(err)
	}

	assert.NoError(t, set.Update(ctx, blk))

	bal, _ := set.Balance(ctx, b.pubKeyHash())
	assert.Equal(t, int64(4), bal)
}
