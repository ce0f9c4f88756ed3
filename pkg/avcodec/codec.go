// Package avcodec drives decoders and encoders through the engine's
// "feed, drain, maybe retry, eventually flush" protocol.
//
// A codec instance must not be used from more than one goroutine at a time.
// Separate instances are independent.
package avcodec

import (
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// State is the protocol state of a codec instance.
type State uint8

const (
	StateIdle State = iota
	StateDraining
	StateFlushing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateFlushing:
		return "flushing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// codec is the state machine shared by Decoder and Encoder. in and out are
// the buffer kinds consumed and produced.
type codec struct {
	role   string
	in     media.Kind
	out    media.Kind
	eng    engine.CodecEngine
	ctx    engine.CodecContext
	info   media.StreamInfo
	tb     avtime.Timebase
	state  State
	logger logrus.FieldLogger

	// pending holds references to inputs the context refused while full,
	// oldest first. They are submitted before any new input.
	pending []*media.Buffer
}

type opener func(media.StreamInfo, media.Options) (engine.CodecContext, error)

func openCodec(role string, in, out media.Kind, eng engine.CodecEngine, info media.StreamInfo, opts []Option) (*codec, error) {
	op := role + ".open"
	cfg := newConfig(opts)
	logger := cfg.logger.WithFields(logrus.Fields{
		"component":    role,
		"stream_index": info.Index,
		"codec":        info.CodecName,
	})

	if eng == nil {
		logger.Error("No codec engine available")
		return nil, averr.Config(op, "no codec engine for %s", info.CodecName)
	}

	open := opener(eng.OpenDecoder)
	if role == "encoder" {
		open = eng.OpenEncoder
	}
	ctx, err := open(info, cfg.options)
	if err != nil {
		logger.WithError(err).Error("Failed to open codec")
		return nil, averr.Wrap(err, averr.KindConfig, op, "cannot open "+role+" for "+info.CodecName)
	}

	tb := ctx.Timebase()
	if tb.IsEmpty() {
		tb = info.Timebase
	}
	if tb.IsEmpty() {
		_ = ctx.Close()
		logger.Error("Codec has no timebase")
		return nil, averr.Config(op, "stream %d has no timebase", info.Index)
	}

	logger.WithFields(logrus.Fields{
		"engine":   eng.Name(),
		"timebase": tb.String(),
	}).Debug("Codec opened")

	return &codec{
		role:   role,
		in:     in,
		out:    out,
		eng:    eng,
		ctx:    ctx,
		info:   info,
		tb:     tb,
		logger: logger,
	}, nil
}

func (c *codec) checkBuffers(op string, input, output *media.Buffer) error {
	if c.state == StateClosed {
		return averr.InvalidState(op, "%s is closed", c.role)
	}
	if input == nil || input.Kind() != c.in {
		return averr.InvalidArgument(op, "input must be a non-nil %s", c.in)
	}
	if output == nil || output.Kind() != c.out {
		return averr.InvalidArgument(op, "output must be a non-nil %s", c.out)
	}
	return nil
}

// process feeds input and drains at most one output buffer.
func (c *codec) process(input, output *media.Buffer) engine.Result {
	if c.state == StateFlushing {
		output.Clear()
		return engine.ResultEndOfStream
	}
	c.state = StateDraining

	code := c.submit(input)
	if code == engine.Again {
		// Context is full: take one output out, then the input fits.
		res := c.receive(output)
		if !res.OK() {
			if res.Retry() {
				c.logger.Error("Codec refuses input and has no output")
				return engine.Fatal(engine.Bug)
			}
			return res
		}
		code = c.submit(input)
		if code == engine.Again {
			c.hold(input)
			c.logger.WithField("pending", len(c.pending)).Debug("Codec still full, holding input")
			return res
		}
		if code < 0 {
			output.Clear()
			return c.fail("Failed to resubmit input", code)
		}
		return res
	}
	if code < 0 {
		output.Clear()
		res := engine.ResultOf(code)
		if res.Fatal() {
			return c.fail("Failed to submit input", code)
		}
		return res
	}

	res := c.receive(output)
	if res.Retry() {
		c.logger.WithFields(input.LogFields()).Debug("Codec needs more input")
	}
	return res
}

// submit feeds held inputs in order, then input. It returns Again without
// feeding input while an older input is still refused. When a held input
// fails, input is held for the next call.
func (c *codec) submit(input *media.Buffer) engine.Code {
	switch code := c.submitPending(); code {
	case engine.OK:
		return c.ctx.Feed(input)
	case engine.Again:
		return code
	default:
		c.hold(input)
		return code
	}
}

func (c *codec) submitPending() engine.Code {
	for len(c.pending) > 0 {
		b := c.pending[0]
		code := c.ctx.Feed(b)
		if code == engine.Again {
			return code
		}
		c.pending[0] = nil
		c.pending = c.pending[1:]
		b.Clear()
		if code < 0 {
			return code
		}
	}
	return engine.OK
}

// hold keeps a reference to input so the caller may reuse its buffer.
func (c *codec) hold(input *media.Buffer) {
	b := media.NewPacket()
	if c.in == media.KindFrame {
		b = media.NewFrame()
	}
	_ = b.RefTo(input)
	c.pending = append(c.pending, b)
}

func (c *codec) releasePending() {
	for _, b := range c.pending {
		b.Clear()
	}
	c.pending = nil
}

// receive drains one buffer into output, tagging it on success and clearing
// it otherwise.
func (c *codec) receive(output *media.Buffer) engine.Result {
	output.Clear()
	code := c.ctx.Drain(output)
	res := engine.ResultOf(code)
	if !res.OK() {
		output.Clear()
		if res.Fatal() {
			return c.fail("Failed to receive output", code)
		}
		return res
	}
	c.tag(output)
	return res
}

func (c *codec) tag(b *media.Buffer) {
	b.SetTimebase(c.tb)
	b.SetContentType(c.info.Type)
	_ = b.SetStreamIndex(c.info.Index)
}

func (c *codec) fail(msg string, code engine.Code) engine.Result {
	c.logger.WithFields(logrus.Fields{
		"code":  int(code),
		"error": c.eng.Describe(code),
	}).Error(msg)
	return engine.Fatal(code)
}

func (c *codec) flush(dst []*media.Buffer) ([]*media.Buffer, engine.Result, error) {
	if c.state == StateClosed {
		return dst, engine.Result{}, averr.InvalidState(c.role+".flush", "%s is closed", c.role)
	}

	if c.state != StateFlushing {
		c.state = StateFlushing
		var res engine.Result
		if dst, res = c.flushPending(dst); !res.OK() {
			return dst, res, nil
		}
		code := c.ctx.Feed(nil)
		if code < 0 && code != engine.EOF {
			return dst, c.fail("Failed to signal end of input", code), nil
		}
	}

	for {
		b := c.newOutput()
		code := c.ctx.Drain(b)
		if code < 0 {
			b.Clear()
			res := engine.ResultOf(code)
			switch {
			case res.Fatal():
				return dst, c.fail("Failed to drain output", code), nil
			case res.Retry():
				c.logger.Warn("Codec asked for input after end of input")
			}
			c.logger.WithField("result", res.String()).Debug("Codec flushed")
			return dst, res, nil
		}
		c.tag(b)
		dst = append(dst, b)
	}
}

// flushPending submits held inputs, draining outputs into dst whenever the
// context is full.
func (c *codec) flushPending(dst []*media.Buffer) ([]*media.Buffer, engine.Result) {
	for len(c.pending) > 0 {
		code := c.submitPending()
		if code == engine.OK {
			break
		}
		if code != engine.Again {
			c.releasePending()
			return dst, c.fail("Failed to submit held input", code)
		}
		b := c.newOutput()
		if code = c.ctx.Drain(b); code < 0 {
			b.Clear()
			c.releasePending()
			switch code {
			case engine.Again:
				c.logger.Error("Codec refuses input and has no output")
				return dst, engine.Fatal(engine.Bug)
			case engine.EOF:
				return dst, engine.ResultEndOfStream
			}
			return dst, c.fail("Failed to drain output", code)
		}
		c.tag(b)
		dst = append(dst, b)
	}
	return dst, engine.ResultOK
}

func (c *codec) newOutput() *media.Buffer {
	if c.out == media.KindFrame {
		return media.NewFrame()
	}
	return media.NewPacket()
}

func (c *codec) close() error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	c.releasePending()
	if err := c.ctx.Close(); err != nil {
		return averr.Wrap(err, averr.KindEngine, c.role+".close", "failed to close codec context")
	}
	c.logger.Debug("Codec closed")
	return nil
}
