package avcodec

import (
	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// Encoder turns frames into packets of one output stream.
type Encoder struct {
	c *codec
}

// NewEncoder opens an encoder producing the stream described by info.
// info.Timebase is the timebase frames must be expressed in.
func NewEncoder(eng engine.CodecEngine, info media.StreamInfo, opts ...Option) (*Encoder, error) {
	c, err := openCodec("encoder", media.KindFrame, media.KindPacket, eng, info, opts)
	if err != nil {
		return nil, err
	}
	return &Encoder{c: c}, nil
}

// Encode feeds frame to the engine and drains at most one packet into pkt.
// A frame in a timebase other than the encoder's is rejected; rescale it
// with RescaleTo first. pkt is cleared on every non-OK result.
func (e *Encoder) Encode(frame, pkt *media.Buffer) (engine.Result, error) {
	const op = "encoder.encode"
	if err := e.c.checkBuffers(op, frame, pkt); err != nil {
		return engine.Result{}, err
	}
	if tb := frame.Timebase(); !tb.IsEmpty() && !tb.Equal(e.c.tb) {
		pkt.Clear()
		return engine.Result{}, averr.InvalidArgument(op, "frame timebase %s differs from encoder timebase %s", tb, e.c.tb)
	}
	return e.c.process(frame, pkt), nil
}

// Flush signals end of input and appends every remaining packet to dst.
func (e *Encoder) Flush(dst []*media.Buffer) ([]*media.Buffer, engine.Result, error) {
	return e.c.flush(dst)
}

// Close releases the engine context. It is safe to call more than once.
func (e *Encoder) Close() error {
	return e.c.close()
}

// State returns the protocol state.
func (e *Encoder) State() State { return e.c.state }

// Timebase returns the timebase packets are tagged with.
func (e *Encoder) Timebase() avtime.Timebase { return e.c.tb }

// Parameters describes the encoded output stream, for creating a sink stream.
func (e *Encoder) Parameters() media.StreamInfo {
	p := e.c.ctx.Parameters()
	if p.Timebase.IsEmpty() {
		p.Timebase = e.c.tb
	}
	return p
}
