package chain

import (
	"context"
	"testing"

	"github.com/tcfw/utxochain/pkg/cryptography"
	"github.com/tcfw/utxochain/pkg/storage"
	"github.com/tcfw/utxochain/pkg/tx"
)

const (
	testBits = 8
)

type testSender struct {
	key *cryptography.Secp256k1PrivateKey
}

func newSender(t *testing.T) *testSender {
	k, err := cryptography.NewEcdsaSecp256k1PrivateKey()
	if err != nil {
		t.Fatal(err)
	}

	return &testSender{k}
}

func (s *testSender) Address() string {
	return cryptography.AddressFromPubKey(s.key.PublicKeyBytes())
}

func (s *testSender) PublicKey() []byte {
	return s.key.PublicKeyBytes()
}

func (s *testSender) SignMessage(msg []byte) ([]byte, error) {
	return s.key.SignMessage(msg)
}

func (s *testSender) pubKeyHash() []byte {
	return cryptography.Hash160(s.PublicKey())
}

func newTestChain(t *testing.T, owner *testSender) (*Blockchain, *UTXOSet) {
	ctx := context.Background()

	bc, err := CreateBlockchain(ctx, storage.NewMemStore(), owner.Address(), WithDifficulty(testBits))
	if err != nil {
		t.Fatal(err)
	}

	set := NewUTXOSet(bc)
	if err := set.ReIndex(ctx); err != nil {
		t.Fatal(err)
	}

	return bc, set
}

func sumOutputs(outs []tx.TXOutput) int64 {
	var n int64
	for _, o := range outs {
		n += o.Value
	}
	return n
}

// indexSnapshot reads the persisted utxo index back into memory
func indexSnapshot(t *testing.T, set *UTXOSet) map[string][]UnspentOutput {
	snap := map[string][]UnspentOutput{}

	err := set.forEach(context.Background(), func(id string, outs []UnspentOutput) (bool, error) {
		snap[id] = outs
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	return snap
}
