package engine

import (
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/media"
)

// Describer turns engine codes into human-readable messages.
type Describer interface {
	Describe(code Code) string
}

// CodecContext is one opened decoder or encoder instance. Calls on a single
// context must be serialized by the caller.
type CodecContext interface {
	// Feed submits one input buffer. A nil buffer signals end of input.
	// Again means the context is full and must be drained first.
	Feed(in *media.Buffer) Code
	// Drain writes one output buffer into out. Again means more input is
	// needed; EOF means the context is exhausted after end of input.
	Drain(out *media.Buffer) Code
	// Timebase is the timebase of the buffers the context produces.
	Timebase() avtime.Timebase
	// Parameters describes the output stream of an encoder, or the decoded
	// stream of a decoder.
	Parameters() media.StreamInfo
	Close() error
}

// CodecEngine opens codec contexts.
type CodecEngine interface {
	Describer
	Name() string
	OpenDecoder(info media.StreamInfo, opts media.Options) (CodecContext, error)
	OpenEncoder(info media.StreamInfo, opts media.Options) (CodecContext, error)
	// Codecs lists the codec names the engine can open.
	Codecs() []string
}

// RawPacket is a packet in engine-native coordinates. Timestamps are ticks of
// the owning stream's timebase and may be avtime.NoPTS.
//
// On Read the engine stores a new payload reference that the caller takes
// over. On Write the payload is only borrowed for the duration of the call.
type RawPacket struct {
	Payload     *media.Payload
	StreamIndex int
	Pts         int64
	Dts         int64
	Duration    int64
	Flags       media.Flags
	Pos         int64
	SideData    []media.SideData
}

// Reset prepares p for the next Read.
func (p *RawPacket) Reset() {
	*p = RawPacket{Pts: avtime.NoPTS, Dts: avtime.NoPTS, Pos: -1}
}

// InputContext is an opened demuxer.
type InputContext interface {
	// Probe reads stream information.
	Probe() (*media.MediaInfo, error)
	// Read fills pkt with the next packet. EOF ends the input.
	Read(pkt *RawPacket) Code
	// BestStream returns wanted if stream wanted is of type t, or the best
	// stream of type t when wanted is negative. A negative code means no
	// stream matched.
	BestStream(t media.ContentType, wanted int) int
	Close() error
}

// OutputContext is an opened muxer.
type OutputContext interface {
	// AddStream creates an output stream copying info's codec parameters and
	// returns its index.
	AddStream(info media.StreamInfo) (int, error)
	// StreamTimebase is the timebase packets of stream i are written in. It is
	// final only after WriteHeader.
	StreamTimebase(i int) (avtime.Timebase, bool)
	WriteHeader(opts media.Options) Code
	Write(pkt *RawPacket) Code
	WriteTrailer() Code
	Close() error
}

// FormatEngine opens containers.
type FormatEngine interface {
	Describer
	Name() string
	OpenInput(uri string, opts media.Options) (InputContext, error)
	// OpenOutput opens uri for writing. format may be empty to guess it from
	// the uri.
	OpenOutput(uri, format string, opts media.Options) (OutputContext, error)
	// Formats lists the container names the engine handles.
	Formats() []string
}
