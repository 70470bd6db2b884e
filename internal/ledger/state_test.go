package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/crypto"
	"github.com/eigerco/custodian/internal/timepoint"
)

var (
	alice    = common.MustHexToAddress("0xa11ce00000000000000000000000000000000001")
	bob      = common.MustHexToAddress("0xb0b0000000000000000000000000000000000002")
	contract = common.MustHexToAddress("0xc0de000000000000000000000000000000000003")
)

// recorder stores its input and charges one unit of gas per byte.
type recorder struct {
	fail error
	seen []*Env
}

func (r *recorder) Call(env *Env, input []byte) ([]byte, error) {
	r.seen = append(r.seen, env)
	if err := env.UseGas(uint64(len(input))); err != nil {
		return nil, err
	}
	env.State.SetStorage(env.Self, crypto.KeccakData(input), input)
	env.State.Emit(env.Self, string(input))
	if r.fail != nil {
		return nil, r.fail
	}
	return append([]byte("ok:"), input...), nil
}

func newState(t *testing.T) (*State, *timepoint.ManualClock) {
	t.Helper()
	clock := timepoint.NewManualClock(1000)
	return NewState(clock), clock
}

func TestTransactCommitsAndReportsLogs(t *testing.T) {
	s, _ := newState(t)

	receipt, err := s.Transact(func() error {
		require.NoError(t, s.Mint(alice, uint256.NewInt(100)))
		require.NoError(t, s.Transfer(alice, bob, uint256.NewInt(40)))
		s.Emit(alice, "paid")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, timepoint.Timepoint(1000), receipt.Now)
	assert.Equal(t, []Log{{Address: alice, Event: "paid"}}, receipt.Logs)

	assert.Equal(t, uint64(60), s.Balance(alice).Uint64())
	assert.Equal(t, uint64(40), s.Balance(bob).Uint64())
}

func TestTransactRevertsOnError(t *testing.T) {
	s, _ := newState(t)
	_, err := s.Transact(func() error { return s.Mint(alice, uint256.NewInt(10)) })
	require.NoError(t, err)

	boom := errors.New("boom")
	external := 1
	_, err = s.Transact(func() error {
		require.NoError(t, s.Transfer(alice, bob, uint256.NewInt(10)))
		s.SetStorage(contract, crypto.Hash{1}, []byte{1})
		s.Emit(alice, "gone")
		external = 2
		s.AddJournalEntry(func() { external = 1 })
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(10), s.Balance(alice).Uint64())
	assert.True(t, s.Balance(bob).IsZero())
	assert.Nil(t, s.Storage(contract, crypto.Hash{1}))
	assert.Empty(t, s.Logs())
	assert.Equal(t, 1, external)
}

func TestTransactReadsClockOnce(t *testing.T) {
	s, clock := newState(t)

	receipt, err := s.Transact(func() error {
		require.NoError(t, clock.Advance(50))
		assert.Equal(t, timepoint.Timepoint(1000), s.Now())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, timepoint.Timepoint(1000), receipt.Now)
	assert.Equal(t, timepoint.Timepoint(1050), s.Now())
}

func TestSnapshotRevert(t *testing.T) {
	s, _ := newState(t)

	_, err := s.Transact(func() error {
		require.NoError(t, s.Mint(alice, uint256.NewInt(5)))
		snap := s.Snapshot()
		require.NoError(t, s.Mint(alice, uint256.NewInt(5)))
		s.SetStorage(contract, crypto.Hash{2}, []byte("x"))
		s.RevertToSnapshot(snap)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), s.Balance(alice).Uint64())
	assert.Nil(t, s.Storage(contract, crypto.Hash{2}))
}

func TestTransfer(t *testing.T) {
	s, _ := newState(t)

	_, err := s.Transact(func() error {
		require.NoError(t, s.Mint(alice, uint256.NewInt(10)))
		require.NoError(t, s.Transfer(alice, bob, nil))
		require.NoError(t, s.Transfer(bob, alice, new(uint256.Int)))
		require.NoError(t, s.Transfer(alice, alice, uint256.NewInt(10)))
		assert.ErrorIs(t, s.Transfer(alice, alice, uint256.NewInt(11)), ErrInsufficientBalance)
		assert.ErrorIs(t, s.Transfer(alice, bob, uint256.NewInt(11)), ErrInsufficientBalance)

		full := new(uint256.Int).SetAllOne()
		require.NoError(t, s.Mint(bob, full))
		assert.ErrorIs(t, s.Transfer(alice, bob, uint256.NewInt(1)), ErrBalanceOverflow)
		assert.ErrorIs(t, s.Mint(bob, uint256.NewInt(1)), ErrBalanceOverflow)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), s.Balance(alice).Uint64())
}

func TestBalanceIsACopy(t *testing.T) {
	s, _ := newState(t)
	s.LoadBalance(alice, uint256.NewInt(7))

	b := s.Balance(alice)
	b.SetUint64(1000)
	assert.Equal(t, uint64(7), s.Balance(alice).Uint64())
}

func TestDeploy(t *testing.T) {
	s, _ := newState(t)
	c := &recorder{}

	require.NoError(t, s.Deploy(contract, c))
	assert.ErrorIs(t, s.Deploy(contract, c), ErrAddressInUse)
	assert.ErrorIs(t, s.Deploy(common.ZeroAddress, c), ErrZeroAddress)

	got, ok := s.ContractAt(contract)
	require.True(t, ok)
	assert.Same(t, c, got)
	_, ok = s.ContractAt(alice)
	assert.False(t, ok)
}

func TestCall(t *testing.T) {
	s, _ := newState(t)
	c := &recorder{}
	require.NoError(t, s.Deploy(contract, c))
	s.LoadBalance(alice, uint256.NewInt(100))

	var ret []byte
	_, err := s.Transact(func() error {
		var err error
		ret, err = s.Call(alice, contract, uint256.NewInt(30), 10, []byte("hello"))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok:hello"), ret)

	require.Len(t, c.seen, 1)
	env := c.seen[0]
	assert.Equal(t, alice, env.Caller)
	assert.Equal(t, contract, env.Self)
	assert.Equal(t, uint64(30), env.Value.Uint64())
	assert.Equal(t, timepoint.Timepoint(1000), env.Now)
	assert.Equal(t, uint64(5), env.GasUsed())
	assert.Equal(t, uint64(5), env.GasLeft())

	assert.Equal(t, uint64(70), s.Balance(alice).Uint64())
	assert.Equal(t, uint64(30), s.Balance(contract).Uint64())
	assert.Equal(t, []byte("hello"), s.Storage(contract, crypto.KeccakData([]byte("hello"))))
}

func TestCallRevertsOnlyItself(t *testing.T) {
	s, _ := newState(t)
	boom := errors.New("boom")
	c := &recorder{fail: boom}
	require.NoError(t, s.Deploy(contract, c))
	s.LoadBalance(alice, uint256.NewInt(100))

	_, err := s.Transact(func() error {
		s.Emit(alice, "before")
		_, err := s.Call(alice, contract, uint256.NewInt(30), 100, []byte("hello"))
		assert.ErrorIs(t, err, boom)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(100), s.Balance(alice).Uint64())
	assert.True(t, s.Balance(contract).IsZero())
	assert.Nil(t, s.Storage(contract, crypto.KeccakData([]byte("hello"))))
	assert.Equal(t, []Log{{Address: alice, Event: "before"}}, s.Logs())
}

func TestCallOutOfGas(t *testing.T) {
	s, _ := newState(t)
	require.NoError(t, s.Deploy(contract, &recorder{}))

	_, err := s.Transact(func() error {
		_, err := s.Call(alice, contract, nil, 4, []byte("hello"))
		return err
	})
	assert.ErrorIs(t, err, ErrOutOfGas)
}

func TestCallWithoutContractTransfersValue(t *testing.T) {
	s, _ := newState(t)
	s.LoadBalance(alice, uint256.NewInt(10))

	_, err := s.Transact(func() error {
		ret, err := s.Call(alice, bob, uint256.NewInt(10), 0, []byte("ignored"))
		assert.Nil(t, ret)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), s.Balance(bob).Uint64())

	_, err = s.Transact(func() error {
		_, err := s.Call(alice, bob, uint256.NewInt(1), 0, nil)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestGasFromUint256(t *testing.T) {
	assert.Equal(t, uint64(0), GasFromUint256(nil))
	assert.Equal(t, uint64(21000), GasFromUint256(uint256.NewInt(21000)))
	assert.Equal(t, ^uint64(0), GasFromUint256(new(uint256.Int).Lsh(uint256.NewInt(1), 100)))
}

func TestForEach(t *testing.T) {
	s, _ := newState(t)
	s.LoadBalance(bob, uint256.NewInt(2))
	s.LoadBalance(alice, uint256.NewInt(1))
	s.LoadBalance(contract, new(uint256.Int))
	s.LoadStorage(contract, crypto.Hash{3}, []byte("v"))

	var addrs []common.Address
	s.ForEachBalance(func(addr common.Address, _ *uint256.Int) { addrs = append(addrs, addr) })
	assert.Equal(t, []common.Address{alice, bob}, addrs)

	var slots int
	s.ForEachStorage(func(addr common.Address, key crypto.Hash, value []byte) {
		slots++
		assert.Equal(t, contract, addr)
		assert.Equal(t, crypto.Hash{3}, key)
		assert.Equal(t, []byte("v"), value)
	})
	assert.Equal(t, 1, slots)
}
