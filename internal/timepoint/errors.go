package timepoint

import "errors"

var (
	// ErrBeforeEpoch is returned when converting a time.Time that lies before
	// the Unix epoch.
	ErrBeforeEpoch = errors.New("time is before the unix epoch")

	// ErrAfterMaxTimepoint is returned when a time or an addition does not fit
	// in the 48 bits reserved for a timepoint.
	ErrAfterMaxTimepoint = errors.New("time is after maximum representable timepoint")

	// ErrDurationOutOfRange is returned when a duration is negative or does not
	// fit in 32 bits of seconds.
	ErrDurationOutOfRange = errors.New("duration out of range")

	// ErrClockWentBackwards is returned by ManualClock.Set when asked to move
	// the clock to an earlier timepoint.
	ErrClockWentBackwards = errors.New("clock went backwards")
)
