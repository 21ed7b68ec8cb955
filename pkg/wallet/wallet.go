package wallet

import (
	"github.com/pkg/errors"

	"github.com/tcfw/utxochain/pkg/cryptography"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
)

// Store holds wallets keyed by address
type Store interface {
	Add(*Wallet) error
	Find(address string) (*Wallet, error)
	Addresses() ([]string, error)
}

// Wallet is a secp256k1 key pair and the address derived from it
type Wallet struct {
	key *cryptography.Secp256k1PrivateKey
}

func New() (*Wallet, error) {
	k, err := cryptography.NewEcdsaSecp256k1PrivateKey()
	if err != nil {
		return nil, err
	}

	return &Wallet{k}, nil
}

// FromPrivateKey restores a wallet from its 32 byte private scalar
func FromPrivateKey(d []byte) (*Wallet, error) {
	k, err := cryptography.Secp256k1PrivateKeyFromBytes(d)
	if err != nil {
		return nil, err
	}

	return &Wallet{k}, nil
}

func (w *Wallet) PrivateKey() *cryptography.Secp256k1PrivateKey {
	return w.key
}

// PublicKey returns the 65 byte uncompressed public key
func (w *Wallet) PublicKey() []byte {
	return w.key.PublicKeyBytes()
}

func (w *Wallet) PubKeyHash() []byte {
	return cryptography.Hash160(w.PublicKey())
}

func (w *Wallet) Address() string {
	return cryptography.AddressFromPubKeyHash(w.PubKeyHash())
}

func (w *Wallet) SignMessage(msg []byte) ([]byte, error) {
	return w.key.SignMessage(msg)
}
