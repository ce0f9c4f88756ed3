// Package engine defines the contract between the pipeline core and the
// external codec and container engines that do the actual media work.
//
// Engines register themselves by name, the way database/sql drivers do:
//
//	import _ "github.com/zsiec/avwrap/pkg/engine/soft"
//
//	eng, err := engine.Codec("soft")
package engine

import "fmt"

// Code is an engine return code: 0 for success, negative for failure.
// Values follow FFmpeg's AVERROR convention.
type Code int

// Well-known codes.
const (
	OK              Code = 0
	Again           Code = -11         // AVERROR(EAGAIN)
	NoMemory        Code = -12         // AVERROR(ENOMEM)
	IOError         Code = -5          // AVERROR(EIO)
	InvalidArgument Code = -22         // AVERROR(EINVAL)
	EOF             Code = -0x20464F45 // AVERROR_EOF
	InvalidData     Code = -0x41444E49 // AVERROR_INVALIDDATA
	StreamNotFound  Code = -0x525453F8 // AVERROR_STREAM_NOT_FOUND
	DecoderNotFound Code = -0x434544F8 // AVERROR_DECODER_NOT_FOUND
	EncoderNotFound Code = -0x434E45F8 // AVERROR_ENCODER_NOT_FOUND
	Bug             Code = -0x21475542 // AVERROR_BUG
)

var descriptions = map[Code]string{
	OK:              "Success",
	Again:           "Resource temporarily unavailable",
	NoMemory:        "Cannot allocate memory",
	IOError:         "I/O error",
	InvalidArgument: "Invalid argument",
	EOF:             "End of file",
	InvalidData:     "Invalid data found when processing input",
	StreamNotFound:  "Stream not found",
	DecoderNotFound: "Decoder not found",
	EncoderNotFound: "Encoder not found",
	Bug:             "Internal bug, should not have happened",
}

// IsError reports whether c signals failure.
func (c Code) IsError() bool { return c < 0 }

// String returns a generic description for well-known codes. Engines may
// describe their own codes more precisely through Describe.
func (c Code) String() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("Error number %d occurred", int(c))
}
