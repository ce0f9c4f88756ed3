package soft

import (
	"container/heap"

	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

type codecContext struct {
	info   media.StreamInfo
	delay  int
	gop    int
	encode bool

	queue    unitHeap
	seq      uint64
	lastKey  int64
	frames   int
	flushing bool
	closed   bool
}

func newContext(info media.StreamInfo, delay, gop int, encode bool) *codecContext {
	c := &codecContext{
		info:   info,
		delay:  delay,
		gop:    gop,
		encode: encode,
		queue:  make(unitHeap, 0, delay+1),
	}
	// Units without a pts ahead of any timed one go first.
	c.lastKey = avtime.NoPTS
	heap.Init(&c.queue)
	return c
}

// Feed queues in. The queue holds at most delay+1 units; a full queue must
// be drained before it accepts more.
func (c *codecContext) Feed(in *media.Buffer) engine.Code {
	if c.closed {
		return engine.InvalidArgument
	}
	if c.flushing {
		return engine.EOF
	}
	if in == nil {
		c.flushing = true
		return engine.OK
	}
	if len(c.queue) > c.delay {
		return engine.Again
	}

	u := &unit{
		pts:      in.Pts().Value(),
		duration: in.Duration(),
		flags:    in.Flags(),
		seq:      c.seq,
		sideData: in.SideData(),
	}
	if u.pts == avtime.NoPTS {
		u.key = c.lastKey
	} else {
		u.key = u.pts
		c.lastKey = u.pts
	}
	if p := in.Payload(); p != nil {
		u.payload = p.Retain()
	}
	c.seq++
	heap.Push(&c.queue, u)
	return engine.OK
}

// Drain emits the earliest queued unit once the lookahead is filled, or any
// remaining unit after end of input.
func (c *codecContext) Drain(out *media.Buffer) engine.Code {
	if c.closed {
		return engine.InvalidArgument
	}
	if len(c.queue) == 0 {
		if c.flushing {
			return engine.EOF
		}
		return engine.Again
	}
	if !c.flushing && len(c.queue) <= c.delay {
		return engine.Again
	}

	u := heap.Pop(&c.queue).(*unit)
	out.AttachPayload(u.payload)
	out.SetTimebase(c.Timebase())
	out.SetNativeTimestamps(u.pts, u.pts)
	if u.duration > 0 {
		_ = out.SetDuration(u.duration)
	}
	for _, sd := range u.sideData {
		out.AddSideData(sd.Type, sd.Data)
	}

	key := u.flags.Has(media.FlagKey)
	if c.encode {
		key = c.frames%c.gop == 0
		flags := u.flags &^ media.FlagKey
		if key {
			flags |= media.FlagKey
		}
		out.SetFlags(flags)
	} else {
		out.SetFlags(u.flags)
		_ = out.SetFrameProps(c.frameProps(key))
	}
	c.frames++
	return engine.OK
}

func (c *codecContext) frameProps(key bool) media.FrameProps {
	p := media.FrameProps{KeyFrame: key}
	if v := c.info.Video; v != nil {
		p.Width, p.Height, p.Format = v.Width, v.Height, v.PixelFormat
	}
	if a := c.info.Audio; a != nil {
		p.SampleRate, p.Channels, p.Format = a.SampleRate, a.Channels, a.SampleFormat
		p.Samples = a.FrameSize
	}
	return p
}

func (c *codecContext) Timebase() avtime.Timebase {
	return c.info.Timebase
}

func (c *codecContext) Parameters() media.StreamInfo {
	return c.info
}

// Close drops every queued unit.
func (c *codecContext) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	for len(c.queue) > 0 {
		u := heap.Pop(&c.queue).(*unit)
		if u.payload != nil {
			u.payload.Release()
		}
	}
	return nil
}
