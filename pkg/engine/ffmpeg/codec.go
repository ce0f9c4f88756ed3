//go:build ffmpeg

package ffmpeg

import (
	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// codecContext adapts an AVCodecContext. Feed and Drain map directly onto
// the send/receive API, whose EAGAIN and EOF values are the engine's Again
// and EOF.
type codecContext struct {
	cc     *astiav.CodecContext
	pkt    *astiav.Packet
	frame  *astiav.Frame
	info   media.StreamInfo
	encode bool
	logger logrus.FieldLogger
}

// OpenDecoder implements engine.CodecEngine.
func (e *Engine) OpenDecoder(info media.StreamInfo, opts media.Options) (engine.CodecContext, error) {
	c := astiav.FindDecoderByName(info.CodecName)
	if c == nil && info.CodecID > 0 {
		c = astiav.FindDecoder(astiav.CodecID(info.CodecID))
	}
	if c == nil {
		return nil, averr.Engine("ffmpeg.open_decoder", int(engine.DecoderNotFound),
			e.Describe(engine.DecoderNotFound)+": "+info.CodecName)
	}

	cc := astiav.AllocCodecContext(c)
	cp := astiav.AllocCodecParameters()
	defer cp.Free()
	fillParameters(cp, info)
	if err := cp.ToCodecContext(cc); err != nil {
		cc.Free()
		code := codeOf(err)
		return nil, averr.Engine("ffmpeg.open_decoder", int(code), e.Describe(code))
	}
	if !info.Timebase.IsEmpty() {
		cc.SetTimeBase(toRational(info.Timebase.Rational))
	}
	return e.open(c, cc, info, opts, false)
}

// OpenEncoder implements engine.CodecEngine. info describes the frames that
// will be fed; options such as "preset" or "crf" go to the encoder.
func (e *Engine) OpenEncoder(info media.StreamInfo, opts media.Options) (engine.CodecContext, error) {
	c := astiav.FindEncoderByName(info.CodecName)
	if c == nil {
		return nil, averr.Engine("ffmpeg.open_encoder", int(engine.EncoderNotFound),
			e.Describe(engine.EncoderNotFound)+": "+info.CodecName)
	}
	if info.Timebase.IsEmpty() {
		return nil, averr.InvalidArgument("ffmpeg.open_encoder", "encoder needs a timebase")
	}

	cc := astiav.AllocCodecContext(c)
	cc.SetTimeBase(toRational(info.Timebase.Rational))
	if info.Bitrate > 0 {
		cc.SetBitRate(info.Bitrate)
	}
	if v := info.Video; v != nil {
		cc.SetWidth(v.Width)
		cc.SetHeight(v.Height)
		cc.SetPixelFormat(astiav.FindPixelFormatByName(v.PixelFormat))
		if !v.AverageFrameRate.IsZero() {
			cc.SetFramerate(toRational(v.AverageFrameRate))
		}
	}
	if a := info.Audio; a != nil {
		cc.SetSampleRate(a.SampleRate)
		cc.SetSampleFormat(sampleFormat(a.SampleFormat))
		cc.SetChannelLayout(channelLayout(a.Channels))
	}
	return e.open(c, cc, info, opts, true)
}

func (e *Engine) open(c *astiav.Codec, cc *astiav.CodecContext, info media.StreamInfo, opts media.Options, encode bool) (engine.CodecContext, error) {
	d := dictionary(opts)
	defer freeDictionary(d)
	if err := cc.Open(c, d); err != nil {
		cc.Free()
		code := codeOf(err)
		return nil, averr.Engine("ffmpeg.open_codec", int(code), e.Describe(code)).
			WithDetails(map[string]interface{}{"codec": c.Name()})
	}

	if encode {
		info.CodecName = c.Name()
		info.CodecID = int(c.ID())
		info.ExtraData = cc.ExtraData()
		info.Timebase = toTimebase(cc.TimeBase())
	}

	e.logger.WithFields(logrus.Fields{
		"codec":  c.Name(),
		"encode": encode,
	}).Debug("Opened FFmpeg codec")

	return &codecContext{
		cc:     cc,
		pkt:    astiav.AllocPacket(),
		frame:  astiav.AllocFrame(),
		info:   info,
		encode: encode,
		logger: e.logger,
	}, nil
}

func (c *codecContext) Feed(in *media.Buffer) engine.Code {
	if c.encode {
		return c.feedFrame(in)
	}
	if in == nil {
		return codeOf(c.cc.SendPacket(nil))
	}
	defer c.pkt.Unref()
	if err := c.pkt.FromData(in.Data()); err != nil {
		return codeOf(err)
	}
	c.pkt.SetPts(in.Pts().Value())
	c.pkt.SetDts(in.Dts().Value())
	c.pkt.SetDuration(in.Duration())
	if in.IsKey() {
		c.pkt.SetFlags(c.pkt.Flags().Add(astiav.PacketFlagKey))
	}
	return codeOf(c.cc.SendPacket(c.pkt))
}

func (c *codecContext) feedFrame(in *media.Buffer) engine.Code {
	if in == nil {
		return codeOf(c.cc.SendFrame(nil))
	}
	defer c.frame.Unref()

	props := in.FrameProps()
	if v := c.info.Video; v != nil {
		c.frame.SetWidth(v.Width)
		c.frame.SetHeight(v.Height)
		c.frame.SetPixelFormat(c.cc.PixelFormat())
	}
	if c.info.Audio != nil {
		c.frame.SetNbSamples(props.Samples)
		c.frame.SetSampleRate(c.cc.SampleRate())
		c.frame.SetSampleFormat(c.cc.SampleFormat())
		c.frame.SetChannelLayout(c.cc.ChannelLayout())
	}
	if err := c.frame.AllocBuffer(0); err != nil {
		return codeOf(err)
	}
	if code := fillFrame(c.frame, in.Data()); code < 0 {
		return code
	}
	c.frame.SetPts(in.Pts().Value())
	if props.KeyFrame {
		c.frame.SetPictureType(astiav.PictureTypeI)
	}
	return codeOf(c.cc.SendFrame(c.frame))
}

func (c *codecContext) Drain(out *media.Buffer) engine.Code {
	if c.encode {
		return c.drainPacket(out)
	}
	if err := c.cc.ReceiveFrame(c.frame); err != nil {
		return codeOf(err)
	}
	defer c.frame.Unref()

	p, code := framePayload(c.frame)
	if code < 0 {
		return code
	}

	out.AttachPayload(p)
	out.SetTimebase(c.Timebase())
	pts := c.frame.Pts()
	out.SetNativeTimestamps(pts, pts)
	key := c.frame.PictureType() == astiav.PictureTypeI
	var flags media.Flags
	if key {
		flags |= media.FlagKey
	}
	out.SetFlags(flags)
	props := media.FrameProps{KeyFrame: key}
	if c.info.Type == media.ContentVideo {
		props.Width, props.Height = c.frame.Width(), c.frame.Height()
		props.Format = c.frame.PixelFormat().Name()
	} else if c.info.Type == media.ContentAudio {
		props.Samples = c.frame.NbSamples()
		props.SampleRate = c.frame.SampleRate()
		props.Channels = c.frame.ChannelLayout().Channels()
		props.Format = c.frame.SampleFormat().Name()
	}
	_ = out.SetFrameProps(props)
	return engine.OK
}

func (c *codecContext) drainPacket(out *media.Buffer) engine.Code {
	if err := c.cc.ReceivePacket(c.pkt); err != nil {
		return codeOf(err)
	}
	defer c.pkt.Unref()

	data := c.pkt.Data()
	p, err := media.AllocPayload(len(data))
	if err != nil {
		return engine.NoMemory
	}
	copy(p.Bytes(), data)

	out.AttachPayload(p)
	out.SetTimebase(c.Timebase())
	out.SetNativeTimestamps(c.pkt.Pts(), c.pkt.Dts())
	if d := c.pkt.Duration(); d > 0 {
		_ = out.SetDuration(d)
	}
	var flags media.Flags
	if c.pkt.Flags().Has(astiav.PacketFlagKey) {
		flags |= media.FlagKey
	}
	out.SetFlags(flags)
	return engine.OK
}

func (c *codecContext) Timebase() avtime.Timebase {
	if c.encode {
		return toTimebase(c.cc.TimeBase())
	}
	return c.info.Timebase
}

func (c *codecContext) Parameters() media.StreamInfo {
	return c.info
}

func (c *codecContext) Close() error {
	if c.cc == nil {
		return nil
	}
	c.pkt.Free()
	c.frame.Free()
	c.cc.Free()
	c.cc = nil
	return nil
}
