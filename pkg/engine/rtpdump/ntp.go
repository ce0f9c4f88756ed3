package rtpdump

import (
	"fmt"
	"strconv"
	"time"
)

// Seconds between the NTP epoch (1900) and the Unix epoch.
const ntpEpochOffset = 2208988800

func toNTP(t time.Time) uint64 {
	sec := uint64(t.Unix()) + ntpEpochOffset
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return sec<<32 | frac
}

func fromNTP(v uint64) time.Time {
	sec := int64(v>>32) - ntpEpochOffset
	nsec := (int64(v&0xFFFFFFFF) * int64(time.Second)) >> 32
	return time.Unix(sec, nsec).UTC()
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
