// Package typeddata builds domain-separated digests of structured messages
// following EIP-712, so that a signature produced for one verifier can never
// be replayed against another.
package typeddata

import (
	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
)

const domainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

var domainTypeHash = TypeHash(domainType)

// Domain identifies the verifier a message is meant for.
type Domain struct {
	Name              string
	Version           string
	ChainID           *uint256.Int
	VerifyingContract common.Address
}

// Separator returns hashStruct(domain).
func (d Domain) Separator() crypto.Hash {
	chainID := d.ChainID
	if chainID == nil {
		chainID = new(uint256.Int)
	}
	return NewEncoder(domainTypeHash).
		String(d.Name).
		String(d.Version).
		Uint256(chainID).
		Address(d.VerifyingContract).
		Hash()
}

// TypeHash hashes an encoded type definition such as
// "Mail(address from,string contents)".
func TypeHash(typeDef string) crypto.Hash {
	return crypto.KeccakData([]byte(typeDef))
}

// Digest returns keccak256("\x19\x01" ‖ domainSeparator ‖ structHash), the
// value that gets signed.
func Digest(d Domain, structHash crypto.Hash) crypto.Hash {
	sep := d.Separator()
	return crypto.KeccakConcat([]byte{0x19, 0x01}, sep[:], structHash[:])
}

// Encoder accumulates the 32 byte words of encodeData for one struct. Call
// its methods in the order the fields appear in the type definition.
type Encoder struct {
	buf []byte
}

func NewEncoder(typeHash crypto.Hash) *Encoder {
	e := &Encoder{buf: make([]byte, 0, 8*crypto.HashSize)}
	e.buf = append(e.buf, typeHash[:]...)
	return e
}

func (e *Encoder) Address(a common.Address) *Encoder {
	var word [crypto.HashSize]byte
	copy(word[crypto.HashSize-common.AddressSize:], a[:])
	e.buf = append(e.buf, word[:]...)
	return e
}

func (e *Encoder) Uint256(v *uint256.Int) *Encoder {
	word := v.Bytes32()
	e.buf = append(e.buf, word[:]...)
	return e
}

func (e *Encoder) Uint64(v uint64) *Encoder {
	return e.Uint256(uint256.NewInt(v))
}

// Bytes encodes a dynamic bytes field as its Keccak-256 hash.
func (e *Encoder) Bytes(b []byte) *Encoder {
	h := crypto.KeccakData(b)
	return e.Word(h)
}

// String encodes a dynamic string field as its Keccak-256 hash.
func (e *Encoder) String(s string) *Encoder {
	return e.Bytes([]byte(s))
}

// Word appends a value that is already a 32 byte word, typically the
// hashStruct of a nested struct.
func (e *Encoder) Word(h crypto.Hash) *Encoder {
	e.buf = append(e.buf, h[:]...)
	return e
}

// Hash returns hashStruct: the Keccak-256 of typeHash ‖ encodeData.
func (e *Encoder) Hash() crypto.Hash {
	return crypto.KeccakData(e.buf)
}
