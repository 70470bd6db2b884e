package timepoint

import (
	"math"
	"strconv"
	"time"

	"github.com/eigerco/custodian/internal/safemath"
)

const (
	// MaxTimepoint is the latest second representable in 48 bits.
	MaxTimepoint Timepoint = 1<<48 - 1

	// MaxDuration is the longest duration representable in 32 bits of seconds,
	// a little over 136 years.
	MaxDuration Duration = math.MaxUint32

	clockMode = "mode=timestamp"
)

// Timepoint is a ledger timestamp: seconds since the Unix epoch, bounded to
// 48 bits. The zero value doubles as "not scheduled" wherever a schedule is
// stored.
type Timepoint uint64

// Duration is a number of seconds, bounded to 32 bits.
type Duration uint32

// ClockMode describes the clock used by every component, in the format of
// EIP-6372.
func ClockMode() string {
	return clockMode
}

// FromTime converts a standard time.Time to a Timepoint, truncating to the
// second.
func FromTime(t time.Time) (Timepoint, error) {
	s := t.Unix()
	if s < 0 {
		return 0, ErrBeforeEpoch
	}
	if uint64(s) > uint64(MaxTimepoint) {
		return 0, ErrAfterMaxTimepoint
	}
	return Timepoint(s), nil
}

// ToTime converts a Timepoint to a UTC time.Time
func (tp Timepoint) ToTime() time.Time {
	return time.Unix(int64(tp), 0).UTC()
}

// IsSet reports whether tp holds a schedule.
func (tp Timepoint) IsSet() bool {
	return tp != 0
}

// HasPassed reports whether tp has been reached at now. The boundary is
// inclusive: a timepoint equal to now has been reached.
func (tp Timepoint) HasPassed(now Timepoint) bool {
	return tp <= now
}

// Before reports whether the timepoint tp is before u
func (tp Timepoint) Before(u Timepoint) bool {
	return tp < u
}

// After reports whether the timepoint tp is after u
func (tp Timepoint) After(u Timepoint) bool {
	return tp > u
}

// Add returns tp+d, failing if the result does not fit in 48 bits.
func (tp Timepoint) Add(d Duration) (Timepoint, error) {
	v, ok := safemath.AddBounded(uint64(tp), uint64(d), uint64(MaxTimepoint))
	if !ok {
		return 0, ErrAfterMaxTimepoint
	}
	return Timepoint(v), nil
}

// Sub returns the duration tp-u, or zero when u is not before tp.
func (tp Timepoint) Sub(u Timepoint) time.Duration {
	if u >= tp {
		return 0
	}
	return time.Duration(tp-u) * time.Second
}

func (tp Timepoint) String() string {
	if tp == 0 {
		return "0"
	}
	return strconv.FormatUint(uint64(tp), 10) + " (" + tp.ToTime().Format(time.RFC3339) + ")"
}

// DurationFrom converts a time.Duration to whole seconds.
func DurationFrom(d time.Duration) (Duration, error) {
	if d < 0 {
		return 0, ErrDurationOutOfRange
	}
	s := uint64(d / time.Second)
	if s > uint64(MaxDuration) {
		return 0, ErrDurationOutOfRange
	}
	return Duration(s), nil
}

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Second
}

func (d Duration) String() string {
	return d.Std().String()
}
