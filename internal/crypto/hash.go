package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

type Hash [HashSize]byte

// KeccakData hashes the input data using Keccak-256
func KeccakData(data []byte) Hash {
	return KeccakConcat(data)
}

// KeccakConcat hashes the concatenation of every chunk using Keccak-256
func KeccakConcat(chunks ...[]byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		hash.Write(c)
	}

	var result Hash
	copy(result[:], hash.Sum(nil))
	return result
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HexToHash parses a 0x-prefixed (or bare) 32 byte hex string.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("expected %d bytes, got %d", HashSize, len(b))
	}
	return Hash(b), nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HexToHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
