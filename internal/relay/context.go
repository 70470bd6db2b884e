package relay

import (
	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/ledger"
)

// TrustingTarget is implemented by contracts that accept relayed requests.
type TrustingTarget interface {
	IsTrustedForwarder(forwarder common.Address) bool
}

// Context lets a contract recover the original signer of a call relayed by
// its trusted forwarder, which appends the signer's address to the input.
type Context struct {
	TrustedForwarder common.Address
}

func (c Context) IsTrustedForwarder(forwarder common.Address) bool {
	return !forwarder.IsZero() && forwarder == c.TrustedForwarder
}

// MsgSender is the appended signer when the call comes from the trusted
// forwarder, and the direct caller otherwise.
func (c Context) MsgSender(env *ledger.Env, input []byte) common.Address {
	if c.IsTrustedForwarder(env.Caller) && len(input) >= common.AddressSize {
		return common.BytesToAddress(input[len(input)-common.AddressSize:])
	}
	return env.Caller
}

// MsgData is the input without the appended signer.
func (c Context) MsgData(env *ledger.Env, input []byte) []byte {
	if c.IsTrustedForwarder(env.Caller) && len(input) >= common.AddressSize {
		return input[:len(input)-common.AddressSize]
	}
	return input
}
