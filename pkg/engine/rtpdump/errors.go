package rtpdump

import "errors"

var (
	errBadMagic       = errors.New("rtpdump: missing #!rtpplay1.0 header")
	errShortRecord    = errors.New("rtpdump: record shorter than its header")
	errRecordTooLarge = errors.New("rtpdump: packet too large for a record")
)
