// Package mailbox is a small contract that accepts relayed calls: every
// account can post a message, and the latest message of each account is
// kept in ledger storage together with a post counter.
package mailbox

import (
	"encoding/binary"
	"errors"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
	"github.com/eigerco/custodian/internal/ledger"
	"github.com/eigerco/custodian/internal/relay"
)

const (
	MaxMessageSize = 1024

	GasBase    = 5000
	GasPerByte = 16
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
)

// Posted is emitted for every accepted message.
type Posted struct {
	Sender  common.Address
	Count   uint64
	Message string
}

type Mailbox struct {
	relay.Context
	self common.Address
}

// Deploy places a mailbox at self, trusting forwarder for relayed calls.
func Deploy(state *ledger.State, self, forwarder common.Address) (*Mailbox, error) {
	m := &Mailbox{Context: relay.Context{TrustedForwarder: forwarder}, self: self}
	if err := state.Deploy(self, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mailbox) Address() common.Address {
	return m.self
}

func (m *Mailbox) Call(env *ledger.Env, input []byte) ([]byte, error) {
	sender := m.MsgSender(env, input)
	msg := m.MsgData(env, input)
	switch {
	case len(msg) == 0:
		return nil, ErrEmptyMessage
	case len(msg) > MaxMessageSize:
		return nil, ErrMessageTooLong
	}
	if err := env.UseGas(GasBase + GasPerByte*uint64(len(msg))); err != nil {
		return nil, err
	}

	count := readCount(env.State, m.self, sender) + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	env.State.SetStorage(m.self, countKey(sender), buf[:])
	env.State.SetStorage(m.self, messageKey(sender), msg)
	env.State.Emit(m.self, Posted{Sender: sender, Count: count, Message: string(msg)})
	return buf[:], nil
}

// Message returns the latest message of sender.
func (m *Mailbox) Message(state *ledger.State, sender common.Address) (msg []byte) {
	state.View(func() { msg = state.Storage(m.self, messageKey(sender)) })
	return msg
}

// Count returns how many messages sender posted.
func (m *Mailbox) Count(state *ledger.State, sender common.Address) (n uint64) {
	state.View(func() { n = readCount(state, m.self, sender) })
	return n
}

func readCount(state *ledger.State, self, sender common.Address) uint64 {
	v := state.Storage(self, countKey(sender))
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func messageKey(sender common.Address) crypto.Hash {
	return crypto.KeccakConcat([]byte("mailbox.message"), sender[:])
}

func countKey(sender common.Address) crypto.Hash {
	return crypto.KeccakConcat([]byte("mailbox.count"), sender[:])
}
