package cryptography

import (
	"bytes"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// AddressVersion prefixes the public key hash in an address payload
	AddressVersion byte = 0x00
)

var (
	ErrChecksumMismatch = errors.New("base58check checksum mismatch")
	ErrInvalidBase58    = errors.New("invalid base58 string")
	ErrInvalidAddress   = errors.New("invalid address")
)

// EncodeBase58Check appends the 4 byte checksum to payload and base58 encodes it
func EncodeBase58Check(payload []byte) string {
	d := make([]byte, 0, len(payload)+ChecksumLength)
	d = append(d, payload...)
	d = append(d, Checksum(payload)...)

	return base58.Encode(d)
}

// DecodeBase58Check decodes s and returns the payload with the checksum removed
func DecodeBase58Check(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBase58, err.Error())
	}

	if len(raw) < ChecksumLength {
		return nil, errors.Wrap(ErrInvalidBase58, "too short for checksum")
	}

	payload := raw[:len(raw)-ChecksumLength]
	sum := raw[len(raw)-ChecksumLength:]

	if !bytes.Equal(Checksum(payload), sum) {
		return nil, ErrChecksumMismatch
	}

	return payload, nil
}

// AddressFromPubKey derives the address of an uncompressed public key
func AddressFromPubKey(pubKey []byte) string {
	return AddressFromPubKeyHash(Hash160(pubKey))
}

// AddressFromPubKeyHash builds version || hash and encodes it with Base58Check
func AddressFromPubKeyHash(pubKeyHash []byte) string {
	payload := make([]byte, 0, len(pubKeyHash)+1)
	payload = append(payload, AddressVersion)
	payload = append(payload, pubKeyHash...)

	return EncodeBase58Check(payload)
}

// PubKeyHashFromAddress validates an address and returns the locking hash
func PubKeyHashFromAddress(address string) ([]byte, error) {
	payload, err := DecodeBase58Check(address)
	if err != nil {
		return nil, errors.Wrap(err, "decoding address")
	}

	if len(payload) < 2 {
		return nil, errors.Wrap(ErrInvalidAddress, "payload too short")
	}

	return payload[1:], nil
}

// ValidateAddress reports whether address decodes with a valid checksum
func ValidateAddress(address string) bool {
	_, err := PubKeyHashFromAddress(address)
	return err == nil
}
