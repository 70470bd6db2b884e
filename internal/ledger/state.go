package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
	"github.com/eigerco/custodian/internal/timepoint"
)

// Message is the envelope of a transaction: who sends it and the value
// attached to it.
type Message struct {
	Sender common.Address
	Value  *uint256.Int
}

// AttachedValue returns the message value, treating nil as zero.
func (m Message) AttachedValue() *uint256.Int {
	if m.Value == nil {
		return new(uint256.Int)
	}
	return m.Value
}

// Log is an event emitted by the contract at Address.
type Log struct {
	Address common.Address
	Event   any
}

// Receipt is the outcome of a committed transaction.
type Receipt struct {
	Now  timepoint.Timepoint
	Logs []Log
}

// State holds balances, contract storage, deployed contracts and the event
// log. Transactions are serialized by Transact and View; within a
// transaction every change is journaled so it can be reverted to a snapshot.
type State struct {
	txMu  sync.Mutex
	clock timepoint.Clock

	inTx bool
	now  timepoint.Timepoint

	balances  map[common.Address]*uint256.Int
	storage   map[common.Address]map[crypto.Hash][]byte
	contracts map[common.Address]Contract
	logs      []Log

	journal []func()
}

func NewState(clock timepoint.Clock) *State {
	return &State{
		clock:     clock,
		balances:  make(map[common.Address]*uint256.Int),
		storage:   make(map[common.Address]map[crypto.Hash][]byte),
		contracts: make(map[common.Address]Contract),
	}
}

// Transact runs fn as one atomic transaction. The clock is read once, before
// fn runs, and Now reports that reading for the whole transaction. If fn
// fails every change it made is reverted.
func (s *State) Transact(fn func() error) (Receipt, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.begin()
	defer s.end()

	firstLog := len(s.logs)
	if err := fn(); err != nil {
		s.RevertToSnapshot(0)
		return Receipt{}, err
	}

	logs := make([]Log, len(s.logs)-firstLog)
	copy(logs, s.logs[firstLog:])
	return Receipt{Now: s.now, Logs: logs}, nil
}

// View runs fn against a consistent snapshot without changing state.
func (s *State) View(fn func()) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.begin()
	defer s.end()
	fn()
}

func (s *State) begin() {
	s.inTx = true
	s.now = s.clock.Now()
	s.journal = s.journal[:0]
}

func (s *State) end() {
	s.inTx = false
	s.journal = s.journal[:0]
}

// Now is the timepoint of the running transaction, or the clock's reading
// outside of one.
func (s *State) Now() timepoint.Timepoint {
	if s.inTx {
		return s.now
	}
	return s.clock.Now()
}

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (s *State) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot undoes every change made after the snapshot was taken.
func (s *State) RevertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:id]
}

// AddJournalEntry records how to undo a change to state kept outside of
// State, such as a contract's own tables.
func (s *State) AddJournalEntry(undo func()) {
	s.journal = append(s.journal, undo)
}

// Deploy places c at addr.
func (s *State) Deploy(addr common.Address, c Contract) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	if _, ok := s.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	s.contracts[addr] = c
	return nil
}

func (s *State) ContractAt(addr common.Address) (Contract, bool) {
	c, ok := s.contracts[addr]
	return c, ok
}

// Balance returns a copy of the balance of addr.
func (s *State) Balance(addr common.Address) *uint256.Int {
	if b, ok := s.balances[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (s *State) setBalance(addr common.Address, v *uint256.Int) {
	prev, had := s.balances[addr]
	s.journal = append(s.journal, func() {
		if had {
			s.balances[addr] = prev
		} else {
			delete(s.balances, addr)
		}
	})
	if v.IsZero() {
		delete(s.balances, addr)
		return
	}
	s.balances[addr] = v
}

// Mint credits amount to addr out of thin air. The ledger is permissioned:
// only genesis and operator tooling call it.
func (s *State) Mint(addr common.Address, amount *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(s.Balance(addr), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	s.setBalance(addr, sum)
	return nil
}

// Transfer moves amount from one account to another.
func (s *State) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	fromBalance := s.Balance(from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromBalance.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBalance, overflow := new(uint256.Int).AddOverflow(s.Balance(to), amount)
	if overflow {
		return ErrBalanceOverflow
	}
	s.setBalance(from, fromBalance.Sub(fromBalance, amount))
	s.setBalance(to, toBalance)
	return nil
}

// Storage returns the value stored by the contract at addr under key.
func (s *State) Storage(addr common.Address, key crypto.Hash) []byte {
	v := s.storage[addr][key]
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// SetStorage stores value under key for the contract at addr. An empty value
// deletes the key.
func (s *State) SetStorage(addr common.Address, key crypto.Hash, value []byte) {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[crypto.Hash][]byte)
		s.storage[addr] = slots
	}
	prev, had := slots[key]
	s.journal = append(s.journal, func() {
		if had {
			slots[key] = prev
		} else {
			delete(slots, key)
		}
	})
	if len(value) == 0 {
		delete(slots, key)
		return
	}
	v := make([]byte, len(value))
	copy(v, value)
	slots[key] = v
}

// Emit appends an event to the log.
func (s *State) Emit(addr common.Address, event any) {
	n := len(s.logs)
	s.journal = append(s.journal, func() { s.logs = s.logs[:n] })
	s.logs = append(s.logs, Log{Address: addr, Event: event})
}

// Logs returns every event emitted so far.
func (s *State) Logs() []Log {
	out := make([]Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// Call sends value and input from caller to the account at to, running its
// contract if it has one. A failed call reverts its own changes only.
func (s *State) Call(caller, to common.Address, value *uint256.Int, gas uint64, input []byte) ([]byte, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	snap := s.Snapshot()
	if err := s.Transfer(caller, to, value); err != nil {
		s.RevertToSnapshot(snap)
		return nil, err
	}

	c, ok := s.contracts[to]
	if !ok {
		return nil, nil
	}
	env := &Env{
		State:    s,
		Caller:   caller,
		Self:     to,
		Value:    value.Clone(),
		Now:      s.Now(),
		gasLimit: gas,
	}
	ret, err := c.Call(env, input)
	if err != nil {
		s.RevertToSnapshot(snap)
		return nil, err
	}
	return ret, nil
}

// ForEachBalance visits every non-zero balance in address order.
func (s *State) ForEachBalance(fn func(addr common.Address, balance *uint256.Int)) {
	addrs := make([]common.Address, 0, len(s.balances))
	for a := range s.balances {
		addrs = append(addrs, a)
	}
	sortAddresses(addrs)
	for _, a := range addrs {
		fn(a, s.balances[a].Clone())
	}
}

// ForEachStorage visits every stored slot.
func (s *State) ForEachStorage(fn func(addr common.Address, key crypto.Hash, value []byte)) {
	for addr, slots := range s.storage {
		for k, v := range slots {
			fn(addr, k, v)
		}
	}
}

// LoadBalance and LoadStorage restore persisted state outside of any
// transaction. They are not journaled.
func (s *State) LoadBalance(addr common.Address, balance *uint256.Int) {
	if balance.IsZero() {
		return
	}
	s.balances[addr] = balance.Clone()
}

func (s *State) LoadStorage(addr common.Address, key crypto.Hash, value []byte) {
	slots, ok := s.storage[addr]
	if !ok {
		slots = make(map[crypto.Hash][]byte)
		s.storage[addr] = slots
	}
	v := make([]byte, len(value))
	copy(v, value)
	slots[key] = v
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return string(addrs[i][:]) < string(addrs[j][:])
	})
}
