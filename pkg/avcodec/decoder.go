package avcodec

import (
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Decoder turns packets of one stream into frames.
type Decoder struct {
	c *codec
}

// NewDecoder opens a decoder for the stream described by info. It fails with
// a config error if the engine has no matching codec or cannot open it.
func NewDecoder(eng engine.CodecEngine, info media.StreamInfo, opts ...Option) (*Decoder, error) {
	c, err := openCodec("decoder", media.KindPacket, media.KindFrame, eng, info, opts)
	if err != nil {
		return nil, err
	}
	return &Decoder{c: c}, nil
}

// Decode feeds pkt to the engine and drains at most one frame into frame.
//
// Retry means pkt was consumed but no frame is ready yet; keep feeding.
// OK means frame holds a frame in the decoder timebase. On any other result
// frame is left cleared. The returned error is only set on misuse.
// When the engine is still full after giving up a frame, the decoder keeps a
// reference to pkt and submits it before the next packet or on Flush.
func (d *Decoder) Decode(pkt, frame *media.Buffer) (engine.Result, error) {
	if err := d.c.checkBuffers("decoder.decode", pkt, frame); err != nil {
		return engine.Result{}, err
	}
	return d.c.process(pkt, frame), nil
}

// Flush signals end of input and appends every remaining frame to dst. The
// result is EndOfStream once the decoder is exhausted.
func (d *Decoder) Flush(dst []*media.Buffer) ([]*media.Buffer, engine.Result, error) {
	return d.c.flush(dst)
}

// Close releases the engine context. It is safe to call more than once.
func (d *Decoder) Close() error {
	return d.c.close()
}

// State returns the protocol state.
func (d *Decoder) State() State { return d.c.state }

// Timebase returns the timebase frames are tagged with.
func (d *Decoder) Timebase() avtime.Timebase { return d.c.tb }

// StreamInfo returns the description of the decoded stream.
func (d *Decoder) StreamInfo() media.StreamInfo { return d.c.info }

// Parameters returns the engine's description of the decoded output.
func (d *Decoder) Parameters() media.StreamInfo { return d.c.ctx.Parameters() }
