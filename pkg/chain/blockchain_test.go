package chain

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	istorage "github.com/tcfw/utxochain/internal/storage"
	"github.com/tcfw/utxochain/pkg/storage"
	"github.com/tcfw/utxochain/pkg/tx"
)

func TestCreateBlockchain(t *testing.T) {
	ctx := context.Background()
	owner := newSender(t)
	s := storage.NewMemStore()

	bc, err := CreateBlockchain(ctx, s, owner.Address(), WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}

	tip, err := bc.Tip(ctx)
	if err != nil {
		t.Fatal(err)
	}

	genesis, err := bc.GetBlock(ctx, tip)
	if err != nil {
		t.Fatal(err)
	}

	assert.True(t, genesis.IsGenesis())
	assert.Len(t, genesis.Transactions, 1)
	assert.True(t, genesis.Transactions[0].IsCoinbase())
	assert.Equal(t, DefaultGenesisData, string(genesis.Transactions[0].Inputs[0].PubKey))
	assert.NoError(t, bc.ValidateBlock(genesis))

	//second create binds to the existing chain
	other := newSender(t)
	bc2, err := CreateBlockchain(ctx, s, other.Address(), WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}

	tip2, err := bc2.Tip(ctx)
	assert.NoError(t, err)
	assert.Equal(t, tip, tip2)
}

func TestCreateBlockchainBadAddress(t *testing.T) {
	s := storage.NewMemStore()

	_, err := CreateBlockchain(context.Background(), s, "invalid0", WithDifficulty(testBits))
	assert.Error(t, err)

	_, err = s.GetTip(context.Background())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestCreateBlockchainBadDifficulty(t *testing.T) {
	owner := newSender(t)

	_, err := CreateBlockchain(context.Background(), storage.NewMemStore(), owner.Address(), WithDifficulty(0))
	assert.Error(t, err)
}

func TestLoadBlockchain(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()

	_, err := LoadBlockchain(ctx, s)
	assert.True(t, errors.Is(err, ErrNoBlockchain))

	owner := newSender(t)
	if _, err := CreateBlockchain(ctx, s, owner.Address(), WithDifficulty(testBits)); err != nil {
		t.Fatal(err)
	}

	bc, err := LoadBlockchain(ctx, s, WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint(testBits), bc.Difficulty())
}

func TestIterator(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	if _, err := Send(ctx, set, a, b.Address(), 3); err != nil {
		t.Fatal(err)
	}
	if _, err := Send(ctx, set, a, b.Address(), 3); err != nil {
		t.Fatal(err)
	}

	it, err := bc.Iterator(ctx)
	if err != nil {
		t.Fatal(err)
	}

	n := 0
	var last *Block
	for {
		blk, err := it.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if blk == nil {
			break
		}
		if last != nil {
			assert.Equal(t, last.PrevBlockHash, blk.Hash)
		}
		last = blk
		n++
	}

	assert.Equal(t, 3, n)
	assert.True(t, last.IsGenesis())

	blk, err := it.Next(ctx)
	assert.NoError(t, err)
	assert.Nil(t, blk)
}

func TestIteratorStopsAtMissingBlock(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemStore()

	owner := newSender(t)
	bc, err := CreateBlockchain(ctx, s, owner.Address(), WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}

	//tip pointing at a block that was never stored
	s.PutTip(ctx, "ab")

	n := 0
	err = bc.ForEachBlock(ctx, func(*Block) (bool, error) {
		n++
		return true, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFindTransaction(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	blk, err := Send(ctx, set, a, b.Address(), 4)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range blk.Transactions {
		got, err := bc.FindTransaction(ctx, want.ID)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, want.ID, got.ID)
	}

	_, err = bc.FindTransaction(ctx, []byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrTxNotFound))
}

func TestMineBlockRejectsInvalidSignature(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	trx, err := NewUTXOTransaction(ctx, a, b.Address(), 4, set)
	if err != nil {
		t.Fatal(err)
	}
	trx.Inputs[0].Signature[3] ^= 0x01

	assert.True(t, errors.Is(bc.VerifyTransaction(ctx, trx), ErrInvalidSignature))

	tipBefore, _ := bc.Tip(ctx)
	before := testutil.ToFloat64(prometheusTxVerifyFailures)

	_, err = bc.MineBlock(ctx, []*tx.Transaction{trx})
	assert.True(t, errors.Is(err, ErrInvalidSignature))
	assert.Equal(t, before+1, testutil.ToFloat64(prometheusTxVerifyFailures))

	tipAfter, _ := bc.Tip(ctx)
	assert.Equal(t, tipBefore, tipAfter)
}

func TestMineBlockUnknownInput(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	bc, _ := newTestChain(t, a)

	out, _ := tx.NewTXOutput(1, a.Address())
	trx, err := tx.NewTransaction(
		[]tx.TXInput{{PrevTxID: []byte{0xde, 0xad}, OutputIndex: 0, PubKey: a.PublicKey()}},
		[]tx.TXOutput{*out},
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = bc.MineBlock(ctx, []*tx.Transaction{trx})
	assert.True(t, errors.Is(err, tx.ErrPrevTxNotFound))
}

func TestMineBlockMetrics(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	bc, _ := newTestChain(t, a)

	before := testutil.ToFloat64(prometheusBlocksMined)

	cb, _ := tx.NewCoinbaseTX(a.Address(), "")
	blk, err := bc.MineBlock(ctx, []*tx.Transaction{cb})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, before+1, testutil.ToFloat64(prometheusBlocksMined))

	tip, _ := bc.Tip(ctx)
	assert.Equal(t, blk.Hash, tip)
}

func TestBlocksStatus(t *testing.T) {
	ctx := context.Background()
	a := newSender(t)
	b := newSender(t)
	bc, set := newTestChain(t, a)

	if _, err := Send(ctx, set, a, b.Address(), 1); err != nil {
		t.Fatal(err)
	}

	blocks, err := bc.Blocks(ctx)
	if err != nil {
		t.Fatal(err)
	}

	assert.Len(t, blocks, 2)
	for _, st := range blocks {
		assert.True(t, st.Valid)
		assert.NoError(t, st.Err)
		assert.NoError(t, bc.validator.IsBlockValid(ctx, st.Block))
	}
}

func TestPebbleBackedChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newSender(t)
	b := newSender(t)

	s, err := istorage.NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	bc, err := CreateBlockchain(ctx, s, a.Address(), WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}
	set := NewUTXOSet(bc)
	if err := set.ReIndex(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := Send(ctx, set, a, b.Address(), 7); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = istorage.NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	bc, err = LoadBlockchain(ctx, s, WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}
	set = NewUTXOSet(bc)

	balance, err := set.Balance(ctx, b.pubKeyHash())
	assert.NoError(t, err)
	assert.Equal(t, int64(7), balance)

	balance, err = set.Balance(ctx, a.pubKeyHash())
	assert.NoError(t, err)
	assert.Equal(t, int64(13), balance)
}
