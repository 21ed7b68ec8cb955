package chain_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/tcfw/utxochain/pkg/chain"
	"github.com/tcfw/utxochain/pkg/chain/mock"
	"github.com/tcfw/utxochain/pkg/cryptography"
	"github.com/tcfw/utxochain/pkg/storage"
	"github.com/tcfw/utxochain/pkg/tx"
)

func TestMineBlockWithValidator(t *testing.T) {
	ctx := context.Background()

	k, err := cryptography.NewEcdsaSecp256k1PrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := cryptography.AddressFromPubKey(k.PublicKeyBytes())

	v := &mock.MockValidator{}

	bc, err := chain.CreateBlockchain(ctx, storage.NewMemStore(), addr,
		chain.WithDifficulty(8),
		chain.WithValidator(v),
	)
	if err != nil {
		t.Fatal(err)
	}

	cb, _ := tx.NewCoinbaseTX(addr, "")
	if _, err := bc.MineBlock(ctx, []*tx.Transaction{cb}); err != nil {
		t.Fatal(err)
	}
	assert.Len(t, v.Txs, 1)

	tip, _ := bc.Tip(ctx)

	v.Err = errors.New("rejected")
	cb2, _ := tx.NewCoinbaseTX(addr, "")

	_, err = bc.MineBlock(ctx, []*tx.Transaction{cb2})
	assert.True(t, errors.Is(err, v.Err))

	tipAfter, _ := bc.Tip(ctx)
	assert.Equal(t, tip, tipAfter)
}
