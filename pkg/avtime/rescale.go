package avtime

import (
	"math"
	"math/big"

	"github.com/zsiec/avwrap/pkg/averr"
)

// RescaleRnd computes a*b/c rounded half away from zero using exact
// arbitrary-precision intermediates. b and c must be positive.
// The second result is false when the quotient does not fit in an int64.
func RescaleRnd(a, b, c int64) (int64, bool) {
	if b <= 0 || c <= 0 {
		return 0, false
	}

	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	den := big.NewInt(c)

	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	// QuoRem truncates toward zero; |m| >= c/2 rounds away from zero.
	twice := new(big.Int).Abs(m)
	twice.Lsh(twice, 1)
	if twice.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}

	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}

// Rescale converts a tick count from src into dst. It is the primitive under
// Timestamp.ToTimebase and is used directly for durations.
func Rescale(ticks int64, src, dst Timebase) (int64, error) {
	if src.IsEmpty() {
		return 0, averr.InvalidArgument("rescale", "source timebase is empty")
	}
	if dst.IsEmpty() {
		return 0, averr.InvalidArgument("rescale", "target timebase is empty")
	}
	if ticks == NoPTS {
		return NoPTS, nil
	}
	if src.Equal(dst) {
		return ticks, nil
	}

	b := int64(src.Num) * int64(dst.Den)
	c := int64(src.Den) * int64(dst.Num)
	v, ok := RescaleRnd(ticks, b, c)
	if !ok || v == math.MinInt64 {
		return 0, averr.InvalidArgument("rescale", "%d ticks in %s overflow in %s", ticks, src, dst)
	}
	return v, nil
}
