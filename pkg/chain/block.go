package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/utxochain/pkg/merkle"
	"github.com/tcfw/utxochain/pkg/pow"
	"github.com/tcfw/utxochain/pkg/storage"
	"github.com/tcfw/utxochain/pkg/tx"
)

// ZeroHash is the parent hash of the genesis block
var ZeroHash = strings.Repeat("0", 64)

type Block struct {
	Hash          string            `msgpack:"h"`
	PrevBlockHash string            `msgpack:"p"`
	Transactions  []*tx.Transaction `msgpack:"x"`
	Timestamp     int64             `msgpack:"t"`
	Nonce         uint64            `msgpack:"n"`

	//tx id filter; not covered by the block hash
	Bloom []byte `msgpack:"b,omitempty"`
}

// NewBlock assembles a block on top of prevHash and mines it. Mining stops
// early if ctx is cancelled.
func NewBlock(ctx context.Context, p *pow.ProofOfWork, prevHash string, txs []*tx.Transaction) (*Block, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyBlock
	}

	b := &Block{
		PrevBlockHash: prevHash,
		Transactions:  txs,
		Timestamp:     time.Now().Unix(),
	}

	nonce, hash, err := p.Mine(ctx, b.Header())
	if err != nil {
		return nil, errors.Wrap(err, "mining block")
	}

	b.Nonce = nonce
	b.Hash = hash

	ids := make([][]byte, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}

	b.Bloom, err = storage.MakeBloom(ids)
	if err != nil {
		return nil, errors.Wrap(err, "creating block bloom filter")
	}

	return b, nil
}

func NewGenesisBlock(ctx context.Context, p *pow.ProofOfWork, coinbase *tx.Transaction) (*Block, error) {
	return NewBlock(ctx, p, ZeroHash, []*tx.Transaction{coinbase})
}

// HashTransactions returns the merkle root of the block's transaction ids
func (b *Block) HashTransactions() []byte {
	ids := make([][]byte, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		ids = append(ids, t.ID)
	}

	return merkle.Root(ids)
}

func (b *Block) Header() pow.Header {
	return pow.Header{
		PrevBlockHash: b.PrevBlockHash,
		MerkleRoot:    b.HashTransactions(),
		Timestamp:     b.Timestamp,
	}
}

// Validate checks the stored nonce and hash against p
func (b *Block) Validate(p *pow.ProofOfWork) error {
	if len(b.Transactions) == 0 {
		return ErrEmptyBlock
	}

	return p.Validate(b.Header(), b.Nonce, b.Hash)
}

// MayContain reports whether the tx id could be in the block. Blocks without
// a filter always answer true.
func (b *Block) MayContain(id []byte) bool {
	ok, err := storage.BloomContains(b.Bloom, id)
	if err != nil {
		return true
	}

	return ok
}

func (b *Block) IsGenesis() bool {
	return b.PrevBlockHash == ZeroHash
}

func (b *Block) Marshal() ([]byte, error) {
	d, err := msgpack.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling block")
	}

	return d, nil
}

func UnmarshalBlock(d []byte) (*Block, error) {
	b := &Block{}
	if err := msgpack.Unmarshal(d, b); err != nil {
		return nil, errors.Wrap(err, "unmarshaling block")
	}

	return b, nil
}

func (b *Block) String() string {
	var s strings.Builder

	fmt.Fprintf(&s, "============ Block %s ============\n", b.Hash)
	fmt.Fprintf(&s, "Prev. block: %s\n", b.PrevBlockHash)
	fmt.Fprintf(&s, "Timestamp:   %s\n", time.Unix(b.Timestamp, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&s, "Nonce:       %d\n", b.Nonce)
	for _, t := range b.Transactions {
		s.WriteString(t.String())
	}

	return s.String()
}
