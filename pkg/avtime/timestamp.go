package avtime

import (
	"fmt"
	"math"
	"time"

	"github.com/zsiec/avwrap/pkg/averr"
)

// NoPTS is the engine's "no value" tick count. A Timestamp holding it is
// EMPTY: unknown, and carried through rescaling untouched.
const NoPTS int64 = math.MinInt64

// Empty is the timestamp of a buffer that carries no timing information.
var Empty = Timestamp{ticks: NoPTS}

// Timestamp is a tick count bound to one timebase.
type Timestamp struct {
	ticks int64
	tb    Timebase
}

// NewTimestamp creates a timestamp. Negative tick counts are rejected.
func NewTimestamp(ticks int64, tb Timebase) (Timestamp, error) {
	if ticks < 0 {
		return Timestamp{}, averr.InvalidArgument("timestamp", "ticks cannot be negative, got %d", ticks)
	}
	return Timestamp{ticks: ticks, tb: tb}, nil
}

// Native wraps engine coordinates without validation. Engines may report
// negative decoding timestamps around stream start; NoPTS yields EMPTY in tb.
func Native(ticks int64, tb Timebase) Timestamp {
	return Timestamp{ticks: ticks, tb: tb}
}

// Value returns the tick count.
func (ts Timestamp) Value() int64 {
	return ts.ticks
}

// Timebase returns the timebase the ticks are expressed in.
func (ts Timestamp) Timebase() Timebase {
	return ts.tb
}

// IsEmpty reports whether the timestamp is unknown.
func (ts Timestamp) IsEmpty() bool {
	return ts.ticks == NoPTS
}

// ToTimebase returns the equivalent timestamp in tb, rounding half away from
// zero. EMPTY stays EMPTY.
func (ts Timestamp) ToTimebase(tb Timebase) (Timestamp, error) {
	if tb.IsEmpty() {
		return Timestamp{}, averr.InvalidArgument("timestamp.to_timebase", "target timebase is empty")
	}
	if ts.IsEmpty() {
		return Timestamp{ticks: NoPTS, tb: tb}, nil
	}
	v, err := Rescale(ts.ticks, ts.tb, tb)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{ticks: v, tb: tb}, nil
}

// Seconds returns the timestamp in seconds. It is 0 when the timestamp is
// EMPTY or its timebase is unassigned.
func (ts Timestamp) Seconds() float64 {
	if ts.IsEmpty() || ts.tb.IsEmpty() {
		return 0
	}
	return float64(ts.ticks) * float64(ts.tb.Num) / float64(ts.tb.Den)
}

// Duration returns Seconds as a time.Duration.
func (ts Timestamp) Duration() time.Duration {
	return time.Duration(ts.Seconds() * float64(time.Second))
}

// SetSeconds replaces the tick count with the given seconds expressed in the
// timestamp's own timebase, rounded up to the next tick.
func (ts *Timestamp) SetSeconds(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) {
		return averr.InvalidArgument("timestamp.set", "seconds cannot be negative, got %v", seconds)
	}
	if ts.tb.IsEmpty() {
		return averr.InvalidState("timestamp.set", "timestamp has no timebase")
	}
	ticks := math.Ceil(seconds * float64(ts.tb.Den) / float64(ts.tb.Num))
	if ticks >= math.MaxInt64 {
		return averr.InvalidArgument("timestamp.set", "%v seconds overflow in %s", seconds, ts.tb)
	}
	ts.ticks = int64(ticks)
	return nil
}

// Set replaces the tick count. Negative values are rejected.
func (ts *Timestamp) Set(ticks int64) error {
	if ticks < 0 {
		return averr.InvalidArgument("timestamp.set", "ticks cannot be negative, got %d", ticks)
	}
	ts.ticks = ticks
	return nil
}

// Equal compares tick count and timebase.
func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.ticks == other.ticks && ts.tb.Equal(other.tb)
}

func (ts Timestamp) String() string {
	if ts.IsEmpty() {
		return "NOPTS"
	}
	return fmt.Sprintf("%d@%s", ts.ticks, ts.tb)
}
