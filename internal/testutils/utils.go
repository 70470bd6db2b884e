package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
	"github.com/eigerco/custodian/internal/crypto/secp256k1"
	"github.com/eigerco/custodian/internal/crypto/typeddata"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/timepoint"
)

func RandomHash(t *testing.T) crypto.Hash {
	var hash crypto.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)
	return hash
}

func RandomAddress(t *testing.T) common.Address {
	var addr common.Address
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

// NewKey returns a fresh secp256k1 key and its account.
func NewKey(t *testing.T) (secp256k1.PrivateKey, common.Address) {
	key, err := secp256k1.GenerateKey()
	require.NoError(t, err)
	return key, key.Address()
}

// NewState returns an empty ledger driven by a manual clock set to start.
func NewState(t *testing.T, start timepoint.Timepoint) (*ledger.State, *timepoint.ManualClock) {
	t.Helper()
	clock := timepoint.NewManualClock(start)
	return ledger.NewState(clock), clock
}

// Fund credits amount to account on state.
func Fund(t *testing.T, state *ledger.State, account common.Address, amount uint64) {
	t.Helper()
	_, err := state.Transact(func() error {
		return state.Mint(account, uint256.NewInt(amount))
	})
	require.NoError(t, err)
}

// Domain returns a forwarder domain for tests.
func Domain(forwarder common.Address) typeddata.Domain {
	return typeddata.Domain{
		Name:              "Forwarder",
		Version:           "1",
		ChainID:           uint256.NewInt(31337),
		VerifyingContract: forwarder,
	}
}
