package media

import (
	"strings"

	"github.com/zsiec/avwrap/pkg/averr"
)

// Kind distinguishes encoded packets from raw frames. It is fixed when a
// buffer is constructed.
type Kind uint8

const (
	KindPacket Kind = iota
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindPacket:
		return "packet"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// ContentType is the media type of a stream or buffer.
type ContentType uint8

const (
	ContentNone ContentType = iota
	ContentVideo
	ContentAudio
	ContentSubtitle
	ContentData
)

// ProbeOrder is the order in which stream types are matched when classifying
// a stream.
var ProbeOrder = []ContentType{ContentVideo, ContentAudio, ContentSubtitle, ContentData}

func (c ContentType) String() string {
	switch c {
	case ContentVideo:
		return "video"
	case ContentAudio:
		return "audio"
	case ContentSubtitle:
		return "subtitle"
	case ContentData:
		return "data"
	default:
		return "none"
	}
}

// ParseContentType parses the names produced by ContentType.String.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video":
		return ContentVideo, nil
	case "audio":
		return ContentAudio, nil
	case "subtitle":
		return ContentSubtitle, nil
	case "data":
		return ContentData, nil
	case "none", "":
		return ContentNone, nil
	default:
		return ContentNone, averr.InvalidArgument("content_type.parse", "unknown content type %q", s)
	}
}

// Flags contains buffer metadata bits.
type Flags uint32

const (
	FlagKey     Flags = 1 << 0
	FlagCorrupt Flags = 1 << 1
	FlagDiscard Flags = 1 << 2
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// SideDataType identifies a side data blob.
type SideDataType uint16

const (
	SideDataUnknown SideDataType = iota
	SideDataNewExtraData
	SideDataParamChange
	SideDataSkipSamples
	SideDataDisplayMatrix
	SideDataStereo3D
	SideDataMasteringDisplay
	SideDataContentLight
	SideDataA53CC
)

// SideData is a typed blob attached to a buffer.
type SideData struct {
	Type SideDataType
	Data []byte
}

// FrameProps describes the raw content of a frame.
type FrameProps struct {
	Width      int
	Height     int
	Format     string // pixel or sample format name
	Samples    int    // audio samples per channel
	SampleRate int
	Channels   int
	KeyFrame   bool
}
