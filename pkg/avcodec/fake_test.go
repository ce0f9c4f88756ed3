package avcodec

import (
	"errors"

	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// scriptedEngine hands out a scriptedContext whose Feed and Drain return
// codes from fixed scripts.
type scriptedEngine struct {
	ctx     *scriptedContext
	openErr error
}

func (e *scriptedEngine) Name() string     { return "scripted" }
func (e *scriptedEngine) Codecs() []string { return []string{"test"} }
func (e *scriptedEngine) Describe(code engine.Code) string {
	return "scripted: " + code.String()
}

func (e *scriptedEngine) OpenDecoder(media.StreamInfo, media.Options) (engine.CodecContext, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.ctx, nil
}

func (e *scriptedEngine) OpenEncoder(info media.StreamInfo, opts media.Options) (engine.CodecContext, error) {
	return e.OpenDecoder(info, opts)
}

type scriptedContext struct {
	tb     avtime.Timebase
	feeds  []engine.Code
	drains []engine.Code
	fed    []*media.Buffer
	next   int64
	closed int

	// fedData copies each fed payload, nil for the end of input signal.
	fedData [][]byte
}

func (c *scriptedContext) Feed(in *media.Buffer) engine.Code {
	c.fed = append(c.fed, in)
	if in == nil {
		c.fedData = append(c.fedData, nil)
	} else {
		c.fedData = append(c.fedData, append([]byte(nil), in.Data()...))
	}
	if len(c.feeds) == 0 {
		return engine.OK
	}
	code := c.feeds[0]
	c.feeds = c.feeds[1:]
	return code
}

func (c *scriptedContext) Drain(out *media.Buffer) engine.Code {
	if len(c.drains) == 0 {
		return engine.EOF
	}
	code := c.drains[0]
	c.drains = c.drains[1:]
	if code == engine.OK {
		_ = out.SetData([]byte{byte(c.next)})
		out.SetNativeTimestamps(c.next, c.next)
		c.next++
	}
	return code
}

func (c *scriptedContext) Timebase() avtime.Timebase    { return c.tb }
func (c *scriptedContext) Parameters() media.StreamInfo { return media.StreamInfo{CodecName: "test"} }

func (c *scriptedContext) Close() error {
	c.closed++
	if c.closed > 1 {
		return errors.New("closed twice")
	}
	return nil
}
