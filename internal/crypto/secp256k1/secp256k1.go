// Package secp256k1 signs ledger digests and recovers the signing account
// from a recoverable signature, the way Ethereum accounts are authenticated.
package secp256k1

import (
	"errors"
	"fmt"
	"io"

	gocrypto "github.com/filecoin-project/go-crypto"
	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
)

const (
	PrivateKeySize = 32
	PublicKeySize  = 65
	SignatureSize  = 65

	recoveryIDOffset = 27
)

var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrInvalidPrivateKey = errors.New("invalid private key")
)

// halfOrder is floor(n/2) for the secp256k1 group order n. Signatures with an
// s value above it are malleable copies and are rejected.
var halfOrder = uint256.MustFromHex("0x7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0")

type (
	PrivateKey []byte
	PublicKey  []byte
)

// GenerateKey creates a new random private key.
func GenerateKey() (PrivateKey, error) {
	k, err := gocrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return k, nil
}

// GenerateKeyFromSeed derives a private key from the given entropy source.
func GenerateKeyFromSeed(seed io.Reader) (PrivateKey, error) {
	k, err := gocrypto.GenerateKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Public returns the uncompressed public key of k.
func (k PrivateKey) Public() PublicKey {
	return gocrypto.PublicKey(k)
}

// Address returns the account controlled by k.
func (k PrivateKey) Address() common.Address {
	addr, err := AddressFromPublicKey(k.Public())
	if err != nil {
		// A well formed private key always has a well formed public key.
		panic(err)
	}
	return addr
}

// Sign signs a 32 byte digest and returns r ‖ s ‖ v with v in {27, 28}.
func Sign(k PrivateKey, digest crypto.Hash) ([]byte, error) {
	if len(k) != PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	sig, err := gocrypto.Sign(k, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[SignatureSize-1] += recoveryIDOffset
	return sig, nil
}

// AddressFromPublicKey returns the account corresponding to an uncompressed
// public key: the last 20 bytes of the Keccak-256 hash of its coordinates.
func AddressFromPublicKey(pub PublicKey) (common.Address, error) {
	if len(pub) != PublicKeySize {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(pub))
	}
	if pub[0] != 0x04 {
		return common.Address{}, fmt.Errorf("%w: not uncompressed", ErrInvalidPublicKey)
	}
	h := crypto.KeccakData(pub[1:])
	return common.BytesToAddress(h[12:]), nil
}

// RecoverAddress returns the account whose key produced sig over digest.
// Recovery ids 0/1 and 27/28 are both accepted. High-s signatures are
// rejected.
func RecoverAddress(digest crypto.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureSize {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(sig))
	}
	normalized := make([]byte, SignatureSize)
	copy(normalized, sig)

	v := normalized[SignatureSize-1]
	if v >= recoveryIDOffset {
		v -= recoveryIDOffset
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, sig[SignatureSize-1])
	}
	normalized[SignatureSize-1] = v

	s := new(uint256.Int).SetBytes(normalized[32:64])
	if s.IsZero() || s.Gt(halfOrder) {
		return common.Address{}, fmt.Errorf("%w: s out of range", ErrInvalidSignature)
	}

	pub, err := gocrypto.EcRecover(digest[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return AddressFromPublicKey(pub)
}
