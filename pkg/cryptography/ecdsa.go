package cryptography

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"io"

	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	// SignatureLength is the length of an R || S signature
	SignatureLength = 64

	// PublicKeyLength is the length of an uncompressed 0x04 || X || Y point
	PublicKeyLength = 65
)

var (
	_ crypto.Signer = (*Secp256k1PrivateKey)(nil)
)

type Secp256k1PrivateKey struct {
	*ecdsa.PrivateKey
}

func NewEcdsaSecp256k1PrivateKey() (*Secp256k1PrivateKey, error) {
	pk, err := ecdsa.GenerateKey(ethCrypto.S256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating ecdsa key")
	}

	return &Secp256k1PrivateKey{pk}, nil
}

// Secp256k1PrivateKeyFromBytes restores a key from its 32 byte scalar
func Secp256k1PrivateKeyFromBytes(d []byte) (*Secp256k1PrivateKey, error) {
	pk, err := ethCrypto.ToECDSA(d)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshalling ecdsa key")
	}

	return &Secp256k1PrivateKey{pk}, nil
}

func (p *Secp256k1PrivateKey) Bytes() ([]byte, error) {
	return ethCrypto.FromECDSA(p.PrivateKey), nil
}

// Sign signs a 32 byte digest and returns the R || S signature. The recovery
// id produced by the underlying signer is dropped.
func (p *Secp256k1PrivateKey) Sign(_ io.Reader, digest []byte, _ crypto.SignerOpts) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, errors.Errorf("digest must be %d bytes, got %d", sha256.Size, len(digest))
	}

	sig, err := ethCrypto.Sign(digest, p.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "signing digest")
	}

	return sig[:SignatureLength], nil
}

// SignMessage signs the SHA-256 digest of msg
func (p *Secp256k1PrivateKey) SignMessage(msg []byte) ([]byte, error) {
	dig := sha256.Sum256(msg)
	return p.Sign(nil, dig[:], crypto.SHA256)
}

func (p *Secp256k1PrivateKey) Public() crypto.PublicKey {
	return &Secp256k1PublicKey{p.PublicKey}
}

// PublicKeyBytes returns the uncompressed public point
func (p *Secp256k1PrivateKey) PublicKeyBytes() []byte {
	return ethCrypto.FromECDSAPub(&p.PrivateKey.PublicKey)
}

// NewSecp256k1PublicKey decodes an uncompressed 0x04 || X || Y point and
// checks it lies on the curve.
func NewSecp256k1PublicKey(d []byte) (*Secp256k1PublicKey, error) {
	pub, err := ethCrypto.UnmarshalPubkey(d)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshalling ecdsa pub key")
	}

	return &Secp256k1PublicKey{*pub}, nil
}

type Secp256k1PublicKey struct {
	ecdsa.PublicKey
}

func (p *Secp256k1PublicKey) Bytes() ([]byte, error) {
	return ethCrypto.FromECDSAPub(&p.PublicKey), nil
}

// Verify checks an R || S signature over a 32 byte digest
func (p *Secp256k1PublicKey) Verify(sig, digest []byte) (bool, error) {
	if len(sig) != SignatureLength {
		return false, nil
	}
	if len(digest) != sha256.Size {
		return false, errors.Errorf("digest must be %d bytes, got %d", sha256.Size, len(digest))
	}

	return ethCrypto.VerifySignature(
		ethCrypto.FromECDSAPub(&p.PublicKey),
		digest,
		sig,
	), nil
}

// VerifyMessage checks sig against the SHA-256 digest of msg
func (p *Secp256k1PublicKey) VerifyMessage(sig, msg []byte) (bool, error) {
	dig := sha256.Sum256(msg)
	return p.Verify(sig, dig[:])
}
