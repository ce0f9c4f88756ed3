package avtime

// Unwrapper extends a wrapping timestamp counter (RTP's 32-bit clock, MPEG-TS
// 33-bit PTS) into a monotonic 64-bit tick count.
type Unwrapper struct {
	wrapThreshold int64
	halfThreshold int64

	started   bool
	last      int64
	wrapCount int64
}

// NewUnwrapper creates an unwrapper for a counter of the given bit width.
func NewUnwrapper(bits uint) *Unwrapper {
	if bits == 0 || bits > 62 {
		bits = 32
	}
	threshold := int64(1) << bits
	return &Unwrapper{
		wrapThreshold: threshold,
		halfThreshold: threshold / 2,
	}
}

// Unwrap returns the extended value of raw. A backwards step of more than half
// the counter range counts as a wrap; a forward jump of more than half the
// range right after a wrap is a late packet from before it.
func (u *Unwrapper) Unwrap(raw int64) int64 {
	raw &= u.wrapThreshold - 1
	if !u.started {
		u.started = true
		u.last = raw
		return raw
	}

	switch {
	case raw < u.last && u.last-raw > u.halfThreshold:
		u.wrapCount++
	case raw > u.last && raw-u.last > u.halfThreshold && u.wrapCount > 0:
		// reordered packet from the previous cycle; don't move last
		return raw + (u.wrapCount-1)*u.wrapThreshold
	}

	u.last = raw
	return raw + u.wrapCount*u.wrapThreshold
}

// WrapCount returns the number of wraps seen so far.
func (u *Unwrapper) WrapCount() int64 {
	return u.wrapCount
}

// Reset forgets all state.
func (u *Unwrapper) Reset() {
	u.started = false
	u.last = 0
	u.wrapCount = 0
}
