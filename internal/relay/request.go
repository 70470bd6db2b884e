package relay

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
	"github.com/eigerco/custodian/internal/crypto/secp256k1"
	"github.com/eigerco/custodian/internal/crypto/typeddata"
	"github.com/eigerco/custodian/internal/timepoint"
)

const forwardRequestType = "ForwardRequest(address from,address to,uint256 value,uint256 gas,uint256 nonce,uint48 deadline,bytes data)"

var forwardRequestTypeHash = typeddata.TypeHash(forwardRequestType)

// ForwardRequest is an action signed by From to be submitted by anyone
// through a Forwarder.
type ForwardRequest struct {
	From      common.Address
	To        common.Address
	Value     *uint256.Int
	Gas       *uint256.Int
	Nonce     *uint256.Int
	Deadline  timepoint.Timepoint
	Data      []byte
	Signature []byte
}

// StructHash hashes every field but the signature.
func (r *ForwardRequest) StructHash() crypto.Hash {
	return typeddata.NewEncoder(forwardRequestTypeHash).
		Address(r.From).
		Address(r.To).
		Uint256(cloneOrZero(r.Value)).
		Uint256(cloneOrZero(r.Gas)).
		Uint256(cloneOrZero(r.Nonce)).
		Uint64(uint64(r.Deadline)).
		Bytes(r.Data).
		Hash()
}

// Digest is what From signs for the forwarder identified by domain.
func (r *ForwardRequest) Digest(domain typeddata.Domain) crypto.Hash {
	return typeddata.Digest(domain, r.StructHash())
}

// Sign fills in the signature of r with key.
func (r *ForwardRequest) Sign(key secp256k1.PrivateKey, domain typeddata.Domain) error {
	sig, err := secp256k1.Sign(key, r.Digest(domain))
	if err != nil {
		return fmt.Errorf("sign forward request: %w", err)
	}
	r.Signature = sig
	return nil
}

// Clone returns a deep copy of r.
func (r *ForwardRequest) Clone() *ForwardRequest {
	c := *r
	c.Value = cloneOrZero(r.Value)
	c.Gas = cloneOrZero(r.Gas)
	c.Nonce = cloneOrZero(r.Nonce)
	c.Data = append([]byte(nil), r.Data...)
	c.Signature = append([]byte(nil), r.Signature...)
	return &c
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

type hexBytes []byte

func (b hexBytes) MarshalText() ([]byte, error) {
	return []byte("0x" + hex.EncodeToString(b)), nil
}

func (b *hexBytes) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "0x")
	dec, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	*b = dec
	return nil
}

// requestJSON is the wire form of a ForwardRequest: amounts as decimal
// strings, byte fields as 0x prefixed hex.
type requestJSON struct {
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Value     *uint256.Int   `json:"value"`
	Gas       *uint256.Int   `json:"gas"`
	Nonce     *uint256.Int   `json:"nonce"`
	Deadline  uint64         `json:"deadline"`
	Data      hexBytes       `json:"data"`
	Signature hexBytes       `json:"signature,omitempty"`
}

func (r *ForwardRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestJSON{
		From:      r.From,
		To:        r.To,
		Value:     cloneOrZero(r.Value),
		Gas:       cloneOrZero(r.Gas),
		Nonce:     cloneOrZero(r.Nonce),
		Deadline:  uint64(r.Deadline),
		Data:      r.Data,
		Signature: r.Signature,
	})
}

func (r *ForwardRequest) UnmarshalJSON(data []byte) error {
	var w requestJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if w.Deadline > uint64(timepoint.MaxTimepoint) {
		return fmt.Errorf("%w: deadline %d does not fit in 48 bits", ErrInvalidRequest, w.Deadline)
	}
	*r = ForwardRequest{
		From:      w.From,
		To:        w.To,
		Value:     cloneOrZero(w.Value),
		Gas:       cloneOrZero(w.Gas),
		Nonce:     cloneOrZero(w.Nonce),
		Deadline:  timepoint.Timepoint(w.Deadline),
		Data:      w.Data,
		Signature: w.Signature,
	}
	return nil
}
