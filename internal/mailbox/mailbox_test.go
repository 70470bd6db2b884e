package mailbox

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/relay"
	"github.com/eigerco/custodian/internal/testutils"
	"github.com/eigerco/custodian/internal/timepoint"
)

const start timepoint.Timepoint = 1_700_000_000

var (
	forwarderAddr = common.MustHexToAddress("0x0000000000000000000000000000000000000102")
	mailboxAddr   = common.MustHexToAddress("0x0000000000000000000000000000000000000001")
)

func setup(t *testing.T) (*ledger.State, *relay.Forwarder, *Mailbox) {
	t.Helper()
	state, _ := testutils.NewState(t, start)
	forwarder, err := relay.NewForwarder(state, testutils.Domain(forwarderAddr))
	require.NoError(t, err)
	m, err := Deploy(state, mailboxAddr, forwarderAddr)
	require.NoError(t, err)
	return state, forwarder, m
}

func TestDirectPost(t *testing.T) {
	state, _, m := setup(t)
	sender := testutils.RandomAddress(t)

	_, err := state.Transact(func() error {
		_, err := state.Call(sender, mailboxAddr, nil, 100_000, []byte("hello"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), m.Message(state, sender))
	assert.Equal(t, uint64(1), m.Count(state, sender))
}

func TestRelayedPost(t *testing.T) {
	state, forwarder, m := setup(t)
	key, signer := testutils.NewKey(t)
	assert.True(t, m.IsTrustedForwarder(forwarderAddr))

	for i, text := range []string{"first", "second"} {
		req := &relay.ForwardRequest{
			From:     signer,
			To:       mailboxAddr,
			Value:    new(uint256.Int),
			Gas:      uint256.NewInt(100_000),
			Nonce:    uint256.NewInt(uint64(i)),
			Deadline: start + 60,
			Data:     []byte(text),
		}
		require.NoError(t, req.Sign(key, forwarder.Domain()))
		require.NoError(t, forwarder.Execute(ledger.Message{Sender: testutils.RandomAddress(t)}, req))
	}

	assert.Equal(t, []byte("second"), m.Message(state, signer))
	assert.Equal(t, uint64(2), m.Count(state, signer))
	assert.Nil(t, m.Message(state, forwarderAddr), "the forwarder is never the sender")

	logs := state.Logs()
	assert.Equal(t, Posted{Sender: signer, Count: 2, Message: "second"}, logs[len(logs)-2].Event)
}

func TestSuffixIgnoredFromUntrustedCaller(t *testing.T) {
	state, _, m := setup(t)
	caller := testutils.RandomAddress(t)
	spoofed := testutils.RandomAddress(t)

	_, err := state.Transact(func() error {
		_, err := state.Call(caller, mailboxAddr, nil, 100_000, append([]byte("hi"), spoofed[:]...))
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, m.Message(state, spoofed))
	assert.Equal(t, uint64(1), m.Count(state, caller))
}

func TestPostErrors(t *testing.T) {
	state, _, _ := setup(t)
	sender := testutils.RandomAddress(t)

	tests := []struct {
		name  string
		input []byte
		gas   uint64
		err   error
	}{
		{name: "empty", input: nil, gas: 100_000, err: ErrEmptyMessage},
		{name: "too long", input: bytes.Repeat([]byte{'a'}, MaxMessageSize+1), gas: 100_000, err: ErrMessageTooLong},
		{name: "out of gas", input: []byte("hello"), gas: GasBase, err: ledger.ErrOutOfGas},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := state.Transact(func() error {
				_, err := state.Call(sender, mailboxAddr, nil, tc.gas, tc.input)
				return err
			})
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDeployTwice(t *testing.T) {
	state, _, _ := setup(t)
	_, err := Deploy(state, mailboxAddr, forwarderAddr)
	assert.ErrorIs(t, err, ledger.ErrAddressInUse)
}
