package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const AddressSize = 20

var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account on the ledger: an externally owned account
// derived from a public key, or a contract.
type Address [AddressSize]byte

// ZeroAddress is the account nobody controls. It stands for "none" wherever
// an address is optional.
var ZeroAddress Address

// BytesToAddress returns the address made of the last AddressSize bytes of b,
// left padded with zeros when b is shorter.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressSize {
		b = b[len(b)-AddressSize:]
	}
	copy(a[AddressSize-len(b):], b)
	return a
}

// HexToAddress parses a 0x-prefixed (or bare) hex string of exactly
// AddressSize bytes.
func HexToAddress(s string) (Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressSize {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(raw))
	}
	return Address(raw), nil
}

// MustHexToAddress is HexToAddress for constants; it panics on bad input.
func MustHexToAddress(s string) Address {
	a, err := HexToAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := HexToAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
