// Package avtime provides the time coordinates exchanged between every
// pipeline stage: exact rationals, timebases and timestamps bound to a
// timebase.
package avtime

import (
	"fmt"

	"github.com/zsiec/avwrap/pkg/averr"
)

// Rational represents a rational number (numerator/denominator).
// It is not reduced to lowest terms.
type Rational struct {
	Num int
	Den int
}

// NewRational creates a new rational number. The denominator must not be zero.
func NewRational(num, den int) (Rational, error) {
	if den == 0 {
		return Rational{}, averr.InvalidArgument("rational", "denominator cannot be zero")
	}
	return Rational{Num: num, Den: den}, nil
}

// Float64 returns the floating point representation, 0 for a zero denominator.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// Equal compares both components.
func (r Rational) Equal(other Rational) bool {
	return r.Num == other.Num && r.Den == other.Den
}

// IsZero reports whether r is the zero value {0, 0}.
func (r Rational) IsZero() bool {
	return r.Num == 0 && r.Den == 0
}

func (r Rational) String() string {
	return fmt.Sprintf("{%d, %d}", r.Num, r.Den)
}

// Common frame rates.
var (
	FrameRate24     = Rational{Num: 24, Den: 1}
	FrameRate25     = Rational{Num: 25, Den: 1}
	FrameRate30     = Rational{Num: 30, Den: 1}
	FrameRate50     = Rational{Num: 50, Den: 1}
	FrameRate60     = Rational{Num: 60, Den: 1}
	FrameRate23_976 = Rational{Num: 24000, Den: 1001}
	FrameRate29_97  = Rational{Num: 30000, Den: 1001}
	FrameRate59_94  = Rational{Num: 60000, Den: 1001}
)
