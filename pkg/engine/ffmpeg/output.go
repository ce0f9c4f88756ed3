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

type output struct {
	uri    string
	fc     *astiav.FormatContext
	ioc    *astiav.IOContext
	pkt    *astiav.Packet
	header bool
	logger logrus.FieldLogger
}

// OpenOutput implements engine.FormatEngine.
func (e *Engine) OpenOutput(uri, format string, opts media.Options) (engine.OutputContext, error) {
	const op = "ffmpeg.open_output"
	fc, err := astiav.AllocOutputFormatContext(nil, format, uri)
	if err != nil || fc == nil {
		code := codeOf(err)
		return nil, averr.Config(op, "cannot create output %q (format %q): %s", uri, format, e.Describe(code))
	}

	o := &output{
		uri:    uri,
		fc:     fc,
		pkt:    astiav.AllocPacket(),
		logger: e.logger.WithField("uri", uri),
	}
	if !fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioc, err := astiav.OpenIOContext(uri, astiav.NewIOContextFlags(astiav.IOContextFlagWrite))
		if err != nil {
			o.Close()
			code := codeOf(err)
			return nil, averr.Engine(op, int(code), e.Describe(code)).WithDetails(map[string]interface{}{"uri": uri})
		}
		o.ioc = ioc
		fc.SetPb(ioc)
	}
	return o, nil
}

func (o *output) AddStream(info media.StreamInfo) (int, error) {
	if o.header {
		return 0, averr.InvalidState("ffmpeg.add_stream", "header already written")
	}
	s := o.fc.NewStream(nil)
	if s == nil {
		return 0, averr.Engine("ffmpeg.add_stream", int(engine.NoMemory), astiav.Error(engine.NoMemory).Error())
	}
	fillParameters(s.CodecParameters(), info)
	if !info.Timebase.IsEmpty() {
		s.SetTimeBase(toRational(info.Timebase.Rational))
	}
	return s.Index(), nil
}

// StreamTimebase reports the stream timebase, which the muxer may change in
// WriteHeader.
func (o *output) StreamTimebase(i int) (avtime.Timebase, bool) {
	streams := o.fc.Streams()
	if i < 0 || i >= len(streams) {
		return avtime.Timebase{}, false
	}
	tb := toTimebase(streams[i].TimeBase())
	return tb, !tb.IsEmpty()
}

func (o *output) WriteHeader(opts media.Options) engine.Code {
	d := dictionary(opts)
	defer freeDictionary(d)
	if err := o.fc.WriteHeader(d); err != nil {
		return codeOf(err)
	}
	o.header = true
	return engine.OK
}

func (o *output) Write(pkt *engine.RawPacket) engine.Code {
	defer o.pkt.Unref()
	if err := o.pkt.FromData(pkt.Payload.Bytes()); err != nil {
		return codeOf(err)
	}
	o.pkt.SetStreamIndex(pkt.StreamIndex)
	o.pkt.SetPts(pkt.Pts)
	o.pkt.SetDts(pkt.Dts)
	o.pkt.SetDuration(pkt.Duration)
	o.pkt.SetPos(-1)
	if pkt.Flags.Has(media.FlagKey) {
		o.pkt.SetFlags(o.pkt.Flags().Add(astiav.PacketFlagKey))
	}
	if err := o.fc.WriteInterleavedFrame(o.pkt); err != nil {
		return codeOf(err)
	}
	return engine.OK
}

func (o *output) WriteTrailer() engine.Code {
	if !o.header {
		return engine.InvalidArgument
	}
	return codeOf(o.fc.WriteTrailer())
}

func (o *output) Close() error {
	if o.pkt != nil {
		o.pkt.Free()
		o.pkt = nil
	}
	var err error
	if o.ioc != nil {
		err = o.ioc.Close()
		o.ioc = nil
	}
	if o.fc != nil {
		o.fc.Free()
		o.fc = nil
	}
	return err
}
