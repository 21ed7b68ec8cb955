// Package pow implements the hashcash style proof-of-work that admits blocks
// onto the chain.
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/tcfw/utxochain/internal/utils/logging"
)

const (
	// DefaultBits is the number of leading zero bits demanded of a block digest
	DefaultBits uint = 20

	// cancelCheckInterval is how many nonces are tried between context checks
	cancelCheckInterval = 1 << 10
)

var (
	ErrTargetNotMet   = errors.New("block digest does not meet target")
	ErrHashMismatch   = errors.New("block hash does not match digest")
	ErrNonceExhausted = errors.New("nonce range exhausted")
	ErrInvalidBits    = errors.New("difficulty bits out of range")
	ErrInvalidPrev    = errors.New("previous block hash is not hex")
)

// Header is the block linking data covered by the proof-of-work digest
type Header struct {
	PrevBlockHash string
	MerkleRoot    []byte
	Timestamp     int64
}

type ProofOfWork struct {
	bits   uint
	target *big.Int
}

// New creates a proof-of-work with target 2^(256-bits)
func New(bits uint) (*ProofOfWork, error) {
	if bits == 0 || bits >= 256 {
		return nil, errors.Wrapf(ErrInvalidBits, "%d", bits)
	}

	return &ProofOfWork{
		bits:   bits,
		target: new(big.Int).Lsh(big.NewInt(1), 256-bits),
	}, nil
}

func (p *ProofOfWork) Bits() uint {
	return p.bits
}

func (p *ProofOfWork) Target() *big.Int {
	return new(big.Int).Set(p.target)
}

// PrepareData builds the digest input for a nonce. The previous block hash is
// emitted as a minimal two's-complement big-endian integer, so the all-zero
// genesis parent contributes a single zero byte.
func (p *ProofOfWork) PrepareData(h Header, nonce uint64) ([]byte, error) {
	prev, err := minimalBytes(h.PrevBlockHash)
	if err != nil {
		return nil, err
	}

	return p.prepare(prev, h, nonce), nil
}

func (p *ProofOfWork) prepare(prev []byte, h Header, nonce uint64) []byte {
	d := make([]byte, 0, len(prev)+len(h.MerkleRoot)+24)
	d = append(d, prev...)
	d = append(d, h.MerkleRoot...)
	d = append(d, uint64ToBytes(uint64(h.Timestamp))...)
	d = append(d, uint64ToBytes(uint64(p.bits))...)
	d = append(d, uint64ToBytes(nonce)...)

	return d
}

func (p *ProofOfWork) digest(prev []byte, h Header, nonce uint64) (string, *big.Int) {
	sum := sha256.Sum256(p.prepare(prev, h, nonce))
	return hex.EncodeToString(sum[:]), new(big.Int).SetBytes(sum[:])
}

// Mine searches nonces upward from zero and returns the first one whose digest
// is strictly below the target.
func (p *ProofOfWork) Mine(ctx context.Context, h Header) (uint64, string, error) {
	start := time.Now()

	prev, err := minimalBytes(h.PrevBlockHash)
	if err != nil {
		return 0, "", err
	}

	for nonce := uint64(0); nonce < math.MaxInt64; nonce++ {
		if nonce%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, "", errors.Wrap(err, "mining cancelled")
			}
		}

		hash, v := p.digest(prev, h, nonce)
		if v.Cmp(p.target) < 0 {
			logging.Entry().WithFields(logging.Fields{
				"nonce":   nonce,
				"hash":    hash,
				"elapsed": time.Since(start),
			}).Debug("found block nonce")

			return nonce, hash, nil
		}
	}

	return 0, "", ErrNonceExhausted
}

// Validate recomputes the digest for nonce, checks it meets the target and
// that it equals the stored hash.
func (p *ProofOfWork) Validate(h Header, nonce uint64, hash string) error {
	prev, err := minimalBytes(h.PrevBlockHash)
	if err != nil {
		return err
	}

	got, v := p.digest(prev, h, nonce)
	if v.Cmp(p.target) >= 0 {
		return ErrTargetNotMet
	}

	if got != hash {
		return errors.Wrapf(ErrHashMismatch, "stored %s, computed %s", hash, got)
	}

	return nil
}

func minimalBytes(hexHash string) ([]byte, error) {
	if hexHash == "" {
		return nil, nil
	}

	n, ok := new(big.Int).SetString(hexHash, 16)
	if !ok || n.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidPrev, "%q", hexHash)
	}

	b := n.Bytes()
	if len(b) == 0 || b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}

	return b, nil
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}
