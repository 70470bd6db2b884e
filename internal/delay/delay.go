// Package delay implements a value that is scheduled to change at a future
// timepoint, and its compact 112 bit encoding:
//
//	bits   0..31  valueAfter
//	bits  32..63  valueBefore
//	bits  64..111 effect
//
// The value reads as valueBefore until effect is reached and as valueAfter
// from then on. An effect of zero means nothing is scheduled.
package delay

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/eigerco/custodian/internal/timepoint"
)

const (
	valueBits  = 32
	effectBits = 48

	// WordBits is the width of a packed delay.
	WordBits = 2*valueBits + effectBits
)

var ErrOutOfRange = errors.New("delay field out of range")

var (
	valueMask  = uint256.NewInt(math.MaxUint32)
	effectMask = uint256.NewInt(uint64(timepoint.MaxTimepoint))
)

// Delay is an immutable scheduled value. Updates return a new Delay.
type Delay struct {
	valueBefore uint32
	valueAfter  uint32
	effect      timepoint.Timepoint
}

// New returns a delay that is immediately and permanently v, with no
// transition history.
func New(v uint32) Delay {
	return Delay{valueAfter: v}
}

// Pack composes the 112 bit word for the given fields. It fails with
// ErrOutOfRange when a value exceeds 32 bits or the effect exceeds 48 bits.
func Pack(valueBefore, valueAfter, effect uint64) (*uint256.Int, error) {
	if valueBefore > math.MaxUint32 {
		return nil, fmt.Errorf("%w: valueBefore %d exceeds %d bits", ErrOutOfRange, valueBefore, valueBits)
	}
	if valueAfter > math.MaxUint32 {
		return nil, fmt.Errorf("%w: valueAfter %d exceeds %d bits", ErrOutOfRange, valueAfter, valueBits)
	}
	if effect > uint64(timepoint.MaxTimepoint) {
		return nil, fmt.Errorf("%w: effect %d exceeds %d bits", ErrOutOfRange, effect, effectBits)
	}
	return pack(uint32(valueBefore), uint32(valueAfter), timepoint.Timepoint(effect)), nil
}

func pack(valueBefore, valueAfter uint32, effect timepoint.Timepoint) *uint256.Int {
	word := new(uint256.Int).Lsh(uint256.NewInt(uint64(effect)), 2*valueBits)
	word.Or(word, new(uint256.Int).Lsh(uint256.NewInt(uint64(valueBefore)), valueBits))
	return word.Or(word, uint256.NewInt(uint64(valueAfter)))
}

// Unpack splits a packed word into its fields. Bits above WordBits are
// ignored, so Unpack never fails.
func Unpack(word *uint256.Int) (valueBefore, valueAfter uint32, effect timepoint.Timepoint) {
	if word == nil {
		return 0, 0, 0
	}
	after := new(uint256.Int).And(word, valueMask)
	before := new(uint256.Int).Rsh(word, valueBits)
	before.And(before, valueMask)
	eff := new(uint256.Int).Rsh(word, 2*valueBits)
	eff.And(eff, effectMask)
	return uint32(before.Uint64()), uint32(after.Uint64()), timepoint.Timepoint(eff.Uint64())
}

// FromWord is the Delay held by a packed word.
func FromWord(word *uint256.Int) Delay {
	before, after, effect := Unpack(word)
	return Delay{valueBefore: before, valueAfter: after, effect: effect}
}

// Word packs d.
func (d Delay) Word() *uint256.Int {
	return pack(d.valueBefore, d.valueAfter, d.effect)
}

// Fields returns the raw fields of d.
func (d Delay) Fields() (valueBefore, valueAfter uint32, effect timepoint.Timepoint) {
	return d.valueBefore, d.valueAfter, d.effect
}

// Get returns the value in effect at now. An effect equal to now counts as
// reached; an unset effect is always reached.
func (d Delay) Get(now timepoint.Timepoint) uint32 {
	v, _, _ := d.GetFull(now)
	return v
}

// GetFull returns the value in effect at now together with the pending value
// and its effect timepoint. Once the effect is reached there is nothing
// pending and the last two results are zero.
func (d Delay) GetFull(now timepoint.Timepoint) (value, pendingValue uint32, effect timepoint.Timepoint) {
	if d.effect.HasPassed(now) {
		return d.valueAfter, 0, 0
	}
	return d.valueBefore, d.valueAfter, d.effect
}

// IsPending reports whether a change is scheduled but not yet effective.
func (d Delay) IsPending(now timepoint.Timepoint) bool {
	_, _, effect := d.GetFull(now)
	return effect.IsSet()
}

// WithUpdate collapses d to the value in effect at now and schedules
// newValue to take effect at now + setback. Any change still pending in d is
// discarded. It returns the new delay and the effect timepoint.
func (d Delay) WithUpdate(newValue uint32, now timepoint.Timepoint, setback timepoint.Duration) (Delay, timepoint.Timepoint, error) {
	effect, err := now.Add(setback)
	if err != nil {
		return d, 0, fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return Delay{
		valueBefore: d.Get(now),
		valueAfter:  newValue,
		effect:      effect,
	}, effect, nil
}

// Rollback drops a change that is still pending at now. A change that
// already took effect is kept.
func (d Delay) Rollback(now timepoint.Timepoint) Delay {
	return New(d.Get(now))
}

// Schedule is the state of a Delay at a given time: Stable or Scheduled.
type Schedule interface {
	isSchedule()
}

// Stable means no change is pending.
type Stable struct {
	Value uint32
}

// Scheduled means Before is in effect until Effect, then After.
type Scheduled struct {
	Before uint32
	After  uint32
	Effect timepoint.Timepoint
}

func (Stable) isSchedule()    {}
func (Scheduled) isSchedule() {}

// Schedule returns the state of d at now.
func (d Delay) Schedule(now timepoint.Timepoint) Schedule {
	value, pending, effect := d.GetFull(now)
	if !effect.IsSet() {
		return Stable{Value: value}
	}
	return Scheduled{Before: value, After: pending, Effect: effect}
}
