package tx

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/utxochain/pkg/cryptography"
)

const (
	// CoinbaseOutputIndex marks the single input of a coinbase transaction
	CoinbaseOutputIndex = -1

	// Subsidy is the amount minted by each coinbase transaction
	Subsidy int64 = 10
)

var (
	lastCreatedAt int64

	ErrPrevTxNotFound = errors.New("previous transaction not found")
	ErrInvalidOutput  = errors.New("referenced output index out of range")
)

// Signer produces an ECDSA signature over the SHA-256 digest of msg
type Signer interface {
	SignMessage(msg []byte) ([]byte, error)
}

type TXInput struct {
	PrevTxID    []byte `msgpack:"p"`
	OutputIndex int    `msgpack:"i"`
	Signature   []byte `msgpack:"s"`
	//holds the spender's raw public key, or arbitrary data for a coinbase
	PubKey []byte `msgpack:"k"`
}

func (in *TXInput) PrevTxIDString() string {
	return hex.EncodeToString(in.PrevTxID)
}

// UsesKey reports whether the input was created by the owner of pubKeyHash
func (in *TXInput) UsesKey(pubKeyHash []byte) bool {
	return bytes.Equal(cryptography.Hash160(in.PubKey), pubKeyHash)
}

type TXOutput struct {
	Value      int64  `msgpack:"v"`
	PubKeyHash []byte `msgpack:"h"`
}

// NewTXOutput locks value to the public key hash encoded in address
func NewTXOutput(value int64, address string) (*TXOutput, error) {
	pkh, err := cryptography.PubKeyHashFromAddress(address)
	if err != nil {
		return nil, errors.Wrap(err, "locking output")
	}

	return &TXOutput{Value: value, PubKeyHash: pkh}, nil
}

func (out *TXOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytes.Equal(out.PubKeyHash, pubKeyHash)
}

type Transaction struct {
	ID        []byte     `msgpack:"id"`
	Inputs    []TXInput  `msgpack:"in"`
	Outputs   []TXOutput `msgpack:"out"`
	CreatedAt int64      `msgpack:"t"`
}

// createdAt returns a strictly increasing unix nano timestamp so identical
// transactions built back to back still get distinct ids
func createdAt() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastCreatedAt)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastCreatedAt, last, now) {
			return now
		}
	}
}

// NewTransaction stamps the creation time and id of an unsigned transaction
func NewTransaction(inputs []TXInput, outputs []TXOutput) (*Transaction, error) {
	t := &Transaction{
		Inputs:    inputs,
		Outputs:   outputs,
		CreatedAt: createdAt(),
	}

	id, err := t.Hash()
	if err != nil {
		return nil, err
	}
	t.ID = id

	return t, nil
}

// NewCoinbaseTX mints the block subsidy to address. An empty data payload is
// replaced with a reward note naming the recipient.
func NewCoinbaseTX(to, data string) (*Transaction, error) {
	if data == "" {
		data = fmt.Sprintf("Reward to '%s'", to)
	}

	out, err := NewTXOutput(Subsidy, to)
	if err != nil {
		return nil, err
	}

	in := TXInput{
		PrevTxID:    []byte{},
		OutputIndex: CoinbaseOutputIndex,
		PubKey:      []byte(data),
	}

	return NewTransaction([]TXInput{in}, []TXOutput{*out})
}

func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 &&
		len(t.Inputs[0].PrevTxID) == 0 &&
		t.Inputs[0].OutputIndex == CoinbaseOutputIndex
}

func (t *Transaction) IDString() string {
	return hex.EncodeToString(t.ID)
}

func (t *Transaction) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling tx")
	}

	return b, nil
}

// Hash returns the SHA-256 of the encoded transaction with its id cleared.
// The transaction itself is not modified.
func (t *Transaction) Hash() ([]byte, error) {
	c := *t
	c.ID = nil

	b, err := c.Marshal()
	if err != nil {
		return nil, err
	}

	h := sha256.Sum256(b)
	return h[:], nil
}

// TrimmedCopy deep copies the transaction with every input's signature and
// public key cleared.
func (t *Transaction) TrimmedCopy() *Transaction {
	inputs := make([]TXInput, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		inputs = append(inputs, TXInput{
			PrevTxID:    append([]byte(nil), in.PrevTxID...),
			OutputIndex: in.OutputIndex,
		})
	}

	outputs := make([]TXOutput, 0, len(t.Outputs))
	for _, out := range t.Outputs {
		outputs = append(outputs, TXOutput{
			Value:      out.Value,
			PubKeyHash: append([]byte(nil), out.PubKeyHash...),
		})
	}

	return &Transaction{
		ID:        append([]byte(nil), t.ID...),
		Inputs:    inputs,
		Outputs:   outputs,
		CreatedAt: t.CreatedAt,
	}
}

// referencedOutput resolves the previous output spent by in
func referencedOutput(in *TXInput, prevTxs map[string]*Transaction) (*TXOutput, error) {
	id := in.PrevTxIDString()

	prev, ok := prevTxs[id]
	if !ok || prev == nil {
		return nil, errors.Wrap(ErrPrevTxNotFound, id)
	}

	if in.OutputIndex < 0 || in.OutputIndex >= len(prev.Outputs) {
		return nil, errors.Wrapf(ErrInvalidOutput, "%s:%d", id, in.OutputIndex)
	}

	return &prev.Outputs[in.OutputIndex], nil
}

// signatureDigest computes the message for input i. The input under signature
// carries the locking hash of the output it spends in place of its key; all
// other keys and signatures are blank.
func signatureDigest(c *Transaction, i int, prevOut *TXOutput) ([]byte, error) {
	c.Inputs[i].Signature = nil
	c.Inputs[i].PubKey = prevOut.PubKeyHash

	id, err := c.Hash()
	c.Inputs[i].PubKey = nil
	if err != nil {
		return nil, err
	}
	c.ID = id

	return id, nil
}

// Sign signs every input with key. Signatures are only assigned once all
// inputs have been signed, so a failure leaves the transaction untouched.
func (t *Transaction) Sign(key Signer, prevTxs map[string]*Transaction) error {
	if t.IsCoinbase() {
		return nil
	}

	prevOuts := make([]*TXOutput, len(t.Inputs))
	for i := range t.Inputs {
		out, err := referencedOutput(&t.Inputs[i], prevTxs)
		if err != nil {
			return err
		}
		prevOuts[i] = out
	}

	c := t.TrimmedCopy()
	sigs := make([][]byte, len(t.Inputs))

	for i := range c.Inputs {
		dig, err := signatureDigest(c, i, prevOuts[i])
		if err != nil {
			return errors.Wrapf(err, "hashing input %d", i)
		}

		sig, err := key.SignMessage(dig)
		if err != nil {
			return errors.Wrapf(err, "signing input %d", i)
		}
		sigs[i] = sig
	}

	for i := range t.Inputs {
		t.Inputs[i].Signature = sigs[i]
	}

	return nil
}

// Verify checks every input signature. A false result with a nil error means a
// signature or key did not match; errors are reserved for unresolvable inputs
// and malformed keys.
func (t *Transaction) Verify(prevTxs map[string]*Transaction) (bool, error) {
	if t.IsCoinbase() {
		return true, nil
	}

	prevOuts := make([]*TXOutput, len(t.Inputs))
	for i := range t.Inputs {
		out, err := referencedOutput(&t.Inputs[i], prevTxs)
		if err != nil {
			return false, err
		}
		prevOuts[i] = out
	}

	c := t.TrimmedCopy()

	for i, in := range t.Inputs {
		pub, err := cryptography.NewSecp256k1PublicKey(in.PubKey)
		if err != nil {
			return false, errors.Wrapf(err, "input %d", i)
		}

		if !in.UsesKey(prevOuts[i].PubKeyHash) {
			return false, nil
		}

		dig, err := signatureDigest(c, i, prevOuts[i])
		if err != nil {
			return false, errors.Wrapf(err, "hashing input %d", i)
		}

		ok, err := pub.VerifyMessage(in.Signature, dig)
		if err != nil {
			return false, errors.Wrapf(err, "verifying input %d", i)
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (t *Transaction) String() string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "--- Transaction %s:\n", t.IDString())
	for i, in := range t.Inputs {
		fmt.Fprintf(&b, "     Input %d:\n", i)
		fmt.Fprintf(&b, "       TXID:      %x\n", in.PrevTxID)
		fmt.Fprintf(&b, "       Out:       %d\n", in.OutputIndex)
		fmt.Fprintf(&b, "       Signature: %x\n", in.Signature)
		fmt.Fprintf(&b, "       PubKey:    %x\n", in.PubKey)
	}
	for i, out := range t.Outputs {
		fmt.Fprintf(&b, "     Output %d:\n", i)
		fmt.Fprintf(&b, "       Value:  %d\n", out.Value)
		fmt.Fprintf(&b, "       Script: %x\n", out.PubKeyHash)
	}

	return b.String()
}
