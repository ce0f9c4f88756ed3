package avtime

import (
	"github.com/zsiec/avwrap/pkg/averr"
)

// Timebase is the duration of one tick in seconds. For instance, 48 kHz audio
// uses {1, 48000}.
//
// The zero value is the empty timebase: it marks a buffer or timestamp whose
// timebase was never assigned and is rejected by every rescale.
type Timebase struct {
	Rational
}

// NewTimebase creates a timebase. Both components must be positive.
func NewTimebase(num, den int) (Timebase, error) {
	if num <= 0 {
		return Timebase{}, averr.InvalidArgument("timebase", "numerator cannot be <= 0, got %d", num)
	}
	if den <= 0 {
		return Timebase{}, averr.InvalidArgument("timebase", "denominator cannot be <= 0, got %d", den)
	}
	return Timebase{Rational{Num: num, Den: den}}, nil
}

// MustTimebase is like NewTimebase but panics on invalid input. Intended for
// package-level constants.
func MustTimebase(num, den int) Timebase {
	tb, err := NewTimebase(num, den)
	if err != nil {
		panic(err)
	}
	return tb
}

// TimebaseFromRational validates r as a timebase.
func TimebaseFromRational(r Rational) (Timebase, error) {
	return NewTimebase(r.Num, r.Den)
}

// IsEmpty reports whether tb is the unassigned sentinel.
func (tb Timebase) IsEmpty() bool {
	return tb.Num <= 0 || tb.Den <= 0
}

// Equal compares two timebases componentwise.
func (tb Timebase) Equal(other Timebase) bool {
	return tb.Rational.Equal(other.Rational)
}

// TicksPerSecond returns den/num, the clock rate of tb.
func (tb Timebase) TicksPerSecond() float64 {
	if tb.IsEmpty() {
		return 0
	}
	return float64(tb.Den) / float64(tb.Num)
}

// Common timebases.
var (
	TimeBase90kHz = Timebase{Rational{Num: 1, Den: 90000}}   // video (MPEG, RTP)
	TimeBase48kHz = Timebase{Rational{Num: 1, Den: 48000}}   // 48kHz audio
	TimeBase44kHz = Timebase{Rational{Num: 1, Den: 44100}}   // 44.1kHz audio
	TimeBase1kHz  = Timebase{Rational{Num: 1, Den: 1000}}    // milliseconds
	TimeBaseMicro = Timebase{Rational{Num: 1, Den: 1000000}} // engine-internal time base
)
