package cryptography

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

const (
	// ChecksumLength is the number of double-SHA-256 bytes appended by Base58Check
	ChecksumLength = 4
)

// DoubleSHA256 returns sha256(sha256(data))
func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Hash160 returns ripemd160(sha256(data)), the public key hash locking outputs
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)

	h := ripemd160.New()
	h.Write(sha[:])

	return h.Sum(nil)
}

// Checksum returns the leading bytes of the double hash of payload
func Checksum(payload []byte) []byte {
	return DoubleSHA256(payload)[:ChecksumLength]
}
