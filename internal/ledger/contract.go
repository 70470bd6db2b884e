package ledger

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/common"
	"github.com/eigerco/custodian/internal/timepoint"
)

// Contract is code deployed at an address. Call runs with the ledger locked
// inside the caller's transaction; a returned error reverts every change the
// call made.
type Contract interface {
	Call(env *Env, input []byte) ([]byte, error)
}

// Env is what a contract sees while it runs.
type Env struct {
	State  *State
	Caller common.Address
	Self   common.Address
	Value  *uint256.Int
	Now    timepoint.Timepoint

	gasLimit uint64
	gasUsed  uint64
}

// UseGas charges n units against the call's gas limit.
func (e *Env) UseGas(n uint64) error {
	if n > e.gasLimit-e.gasUsed {
		e.gasUsed = e.gasLimit
		return ErrOutOfGas
	}
	e.gasUsed += n
	return nil
}

func (e *Env) GasLeft() uint64 {
	return e.gasLimit - e.gasUsed
}

func (e *Env) GasUsed() uint64 {
	return e.gasUsed
}

// GasFromUint256 clamps a 256 bit gas amount to what a call can be given.
func GasFromUint256(gas *uint256.Int) uint64 {
	if gas == nil {
		return 0
	}
	if !gas.IsUint64() {
		return math.MaxUint64
	}
	return gas.Uint64()
}
