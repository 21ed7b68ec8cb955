package chain

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/utxochain/internal/utils/logging"
	"github.com/tcfw/utxochain/pkg/pow"
	"github.com/tcfw/utxochain/pkg/storage"
	"github.com/tcfw/utxochain/pkg/tx"
)

const (
	DefaultGenesisData = "Genesis Block Data"
)

type Option func(*Blockchain) error

// WithDifficulty sets the number of leading zero bits demanded of block hashes
func WithDifficulty(bits uint) Option {
	return func(bc *Blockchain) error {
		bc.bits = bits
		return nil
	}
}

// WithGenesisData sets the coinbase payload of a newly created genesis block
func WithGenesisData(data string) Option {
	return func(bc *Blockchain) error {
		bc.genesisData = data
		return nil
	}
}

// WithValidator replaces the transaction validator used when mining
func WithValidator(v Validator) Option {
	return func(bc *Blockchain) error {
		bc.validator = v
		return nil
	}
}

// Blockchain is a handle on a chain persisted in a store. Blocks form a
// backward linked list from the tip to the zero hash.
type Blockchain struct {
	store     storage.Store
	pow       *pow.ProofOfWork
	validator Validator
	logger    *logrus.Entry

	bits        uint
	genesisData string

	//serialises appends so each new block extends the latest tip
	mu sync.Mutex

	//guards the utxo index derived from this chain, shared by every UTXOSet
	utxoMu sync.RWMutex

	//held by Send from spend selection until the index reflects the mined block
	sendMu sync.Mutex
}

func newBlockchain(s storage.Store, opts ...Option) (*Blockchain, error) {
	initPrometheusMetrics()

	bc := &Blockchain{
		store:       s,
		bits:        pow.DefaultBits,
		genesisData: DefaultGenesisData,
		logger:      logging.Component("chain"),
	}

	for _, opt := range opts {
		if err := opt(bc); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}

	p, err := pow.New(bc.bits)
	if err != nil {
		return nil, err
	}
	bc.pow = p

	if bc.validator == nil {
		bc.validator = NewTxValidator(bc)
	}

	return bc, nil
}

// CreateBlockchain mines a genesis block paying address unless the store
// already holds a chain, in which case a handle on the existing chain is
// returned.
func CreateBlockchain(ctx context.Context, s storage.Store, address string, opts ...Option) (*Blockchain, error) {
	bc, err := newBlockchain(s, opts...)
	if err != nil {
		return nil, err
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	tip, err := s.GetTip(ctx)
	if err == nil {
		bc.logger.WithField("tip", tip).Info("blockchain already exists")
		return bc, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrap(err, "reading tip")
	}

	cb, err := tx.NewCoinbaseTX(address, bc.genesisData)
	if err != nil {
		return nil, errors.Wrap(err, "creating genesis coinbase")
	}

	genesis, err := NewGenesisBlock(ctx, bc.pow, cb)
	if err != nil {
		return nil, errors.Wrap(err, "creating genesis block")
	}

	if err := bc.addBlock(ctx, genesis); err != nil {
		return nil, err
	}

	bc.logger.WithFields(logging.Fields{
		"hash":    genesis.Hash,
		"address": address,
	}).Info("created blockchain")

	return bc, nil
}

// LoadBlockchain binds to an existing chain and fails with ErrNoBlockchain if
// the store has no tip.
func LoadBlockchain(ctx context.Context, s storage.Store, opts ...Option) (*Blockchain, error) {
	bc, err := newBlockchain(s, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetTip(ctx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoBlockchain
		}
		return nil, errors.Wrap(err, "reading tip")
	}

	return bc, nil
}

func (bc *Blockchain) Store() storage.Store {
	return bc.store
}

func (bc *Blockchain) Difficulty() uint {
	return bc.bits
}

func (bc *Blockchain) Tip(ctx context.Context) (string, error) {
	tip, err := bc.store.GetTip(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoBlockchain
		}
		return "", errors.Wrap(err, "reading tip")
	}

	return tip, nil
}

func (bc *Blockchain) GetBlock(ctx context.Context, hash string) (*Block, error) {
	d, err := bc.store.GetBlock(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.Wrap(ErrBlockNotFound, hash)
		}
		return nil, errors.Wrap(err, "reading block")
	}

	return UnmarshalBlock(d)
}

// AddBlock persists b and makes it the tip. The block is trusted; callers
// validate it beforehand.
func (bc *Blockchain) AddBlock(ctx context.Context, b *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	return bc.addBlock(ctx, b)
}

func (bc *Blockchain) addBlock(ctx context.Context, b *Block) error {
	d, err := b.Marshal()
	if err != nil {
		return err
	}

	err = bc.store.Update(ctx, func(w storage.Writer) error {
		if err := w.PutBlock(ctx, b.Hash, d); err != nil {
			return err
		}
		return w.PutTip(ctx, b.Hash)
	})
	if err != nil {
		return errors.Wrap(err, "storing block")
	}

	return nil
}

// MineBlock validates txs, mines a block on the current tip and appends it.
// Nothing is written if any transaction is invalid or mining fails.
func (bc *Blockchain) MineBlock(ctx context.Context, txs []*tx.Transaction) (*Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(txs) == 0 {
		return nil, ErrEmptyBlock
	}

	for _, t := range txs {
		if err := bc.validator.IsTxValid(ctx, t); err != nil {
			return nil, errors.Wrapf(err, "tx %s", t.IDString())
		}
	}

	tip, err := bc.Tip(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	b, err := NewBlock(ctx, bc.pow, tip, txs)
	if err != nil {
		return nil, err
	}

	prometheusMiningDuration.Observe(time.Since(start).Seconds())

	if err := bc.addBlock(ctx, b); err != nil {
		return nil, err
	}

	prometheusBlocksMined.Inc()

	bc.logger.WithFields(logging.Fields{
		"hash":  b.Hash,
		"prev":  b.PrevBlockHash,
		"txs":   len(b.Transactions),
		"nonce": b.Nonce,
	}).Info("mined block")

	return b, nil
}

// FindTransaction scans the chain from the tip for a transaction id, skipping
// blocks whose filter rules the id out.
func (bc *Blockchain) FindTransaction(ctx context.Context, id []byte) (*tx.Transaction, error) {
	var found *tx.Transaction

	err := bc.ForEachBlock(ctx, func(b *Block) (bool, error) {
		if !b.MayContain(id) {
			return true, nil
		}

		for _, t := range b.Transactions {
			if string(t.ID) == string(id) {
				found = t
				return false, nil
			}
		}

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, ErrTxNotFound
	}

	return found, nil
}

// FindAllUTXOs derives the unspent outputs of the whole chain, grouped by
// owning transaction id. Outputs keep their index in the owning transaction.
func (bc *Blockchain) FindAllUTXOs(ctx context.Context) (map[string][]UnspentOutput, error) {
	spent := map[string]map[int]struct{}{}

	err := bc.ForEachBlock(ctx, func(b *Block) (bool, error) {
		for _, t := range b.Transactions {
			if t.IsCoinbase() {
				continue
			}

			for _, in := range t.Inputs {
				id := in.PrevTxIDString()
				if _, ok := spent[id]; !ok {
					spent[id] = map[int]struct{}{}
				}
				spent[id][in.OutputIndex] = struct{}{}
			}
		}

		return true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "collecting spent outputs")
	}

	utxos := map[string][]UnspentOutput{}

	err = bc.ForEachBlock(ctx, func(b *Block) (bool, error) {
		for _, t := range b.Transactions {
			id := t.IDString()

			for idx, out := range t.Outputs {
				if _, ok := spent[id][idx]; ok {
					continue
				}

				utxos[id] = append(utxos[id], UnspentOutput{Index: idx, Output: out})
			}
		}

		return true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "collecting unspent outputs")
	}

	return utxos, nil
}

// prevTransactions resolves every transaction referenced by the inputs of t
func (bc *Blockchain) prevTransactions(ctx context.Context, t *tx.Transaction) (map[string]*tx.Transaction, error) {
	prev := map[string]*tx.Transaction{}

	for _, in := range t.Inputs {
		id := in.PrevTxIDString()
		if _, ok := prev[id]; ok {
			continue
		}

		pt, err := bc.FindTransaction(ctx, in.PrevTxID)
		if err != nil {
			if errors.Is(err, ErrTxNotFound) {
				return nil, errors.Wrap(tx.ErrPrevTxNotFound, id)
			}
			return nil, err
		}

		prev[id] = pt
	}

	return prev, nil
}

// SignTransaction signs t with key using the outputs it spends from the chain
func (bc *Blockchain) SignTransaction(ctx context.Context, t *tx.Transaction, key tx.Signer) error {
	if t.IsCoinbase() {
		return nil
	}

	prev, err := bc.prevTransactions(ctx, t)
	if err != nil {
		return err
	}

	return t.Sign(key, prev)
}

// VerifyTransaction checks the input signatures of t. Coinbase transactions
// are always valid.
func (bc *Blockchain) VerifyTransaction(ctx context.Context, t *tx.Transaction) error {
	if t.IsCoinbase() {
		return nil
	}

	prev, err := bc.prevTransactions(ctx, t)
	if err != nil {
		return err
	}

	ok, err := t.Verify(prev)
	if err != nil {
		return errors.Wrap(err, "verifying transaction")
	}

	if !ok {
		prometheusTxVerifyFailures.Inc()
		return ErrInvalidSignature
	}

	return nil
}

// ValidateBlock checks the proof-of-work of b under this chain's difficulty
func (bc *Blockchain) ValidateBlock(b *Block) error {
	return b.Validate(bc.pow)
}

type BlockStatus struct {
	Block *Block
	Valid bool
	Err   error
}

// Blocks lists every block from the tip back to genesis with its
// proof-of-work status.
func (bc *Blockchain) Blocks(ctx context.Context) ([]BlockStatus, error) {
	blocks := []BlockStatus{}

	err := bc.ForEachBlock(ctx, func(b *Block) (bool, error) {
		err := bc.ValidateBlock(b)
		blocks = append(blocks, BlockStatus{Block: b, Valid: err == nil, Err: err})
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

