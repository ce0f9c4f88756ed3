//go:build ffmpeg

package ffmpeg

import (
	"time"

	"github.com/asticode/go-astiav"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

type input struct {
	uri    string
	fc     *astiav.FormatContext
	pkt    *astiav.Packet
	info   *media.MediaInfo
	logger logrus.FieldLogger
}

// OpenInput implements engine.FormatEngine. Options are passed to
// avformat_open_input; "format" forces the demuxer.
func (e *Engine) OpenInput(uri string, opts media.Options) (engine.InputContext, error) {
	const op = "ffmpeg.open_input"
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, averr.Engine(op, int(engine.NoMemory), e.Describe(engine.NoMemory))
	}

	var ifmt *astiav.InputFormat
	if name, ok := opts.Get("format"); ok {
		if ifmt = astiav.FindInputFormat(name); ifmt == nil {
			fc.Free()
			return nil, averr.Config(op, "unknown input format %q", name)
		}
		opts = opts.Clone()
		delete(opts, "format")
	}

	d := dictionary(opts)
	defer freeDictionary(d)
	if err := fc.OpenInput(uri, ifmt, d); err != nil {
		fc.Free()
		code := codeOf(err)
		return nil, averr.Engine(op, int(code), e.Describe(code)).WithDetails(map[string]interface{}{"uri": uri})
	}

	return &input{
		uri:    uri,
		fc:     fc,
		pkt:    astiav.AllocPacket(),
		logger: e.logger.WithField("uri", uri),
	}, nil
}

func (in *input) Probe() (*media.MediaInfo, error) {
	if in.info != nil {
		return in.info, nil
	}
	if err := in.fc.FindStreamInfo(nil); err != nil {
		code := codeOf(err)
		return nil, averr.Engine("ffmpeg.probe", int(code), astiav.Error(code).Error())
	}

	info := &media.MediaInfo{
		URI:      in.uri,
		Bitrate:  in.fc.BitRate(),
		Metadata: metadata(in.fc.Metadata()),
		Streams:  make(map[int]media.StreamInfo),
	}
	// Container durations are in AV_TIME_BASE (microseconds).
	if d := in.fc.Duration(); d > 0 {
		info.Duration = time.Duration(d) * time.Microsecond
	}
	if st := in.fc.StartTime(); st > 0 {
		info.StartTime = time.Duration(st) * time.Microsecond
	}
	if f := in.fc.InputFormat(); f != nil {
		info.Format = f.Name()
		info.FormatLongName = f.LongName()
	}
	for _, s := range in.fc.Streams() {
		info.Streams[s.Index()] = streamInfo(s)
	}
	in.info = info
	return info, nil
}

func (in *input) Read(out *engine.RawPacket) engine.Code {
	if err := in.fc.ReadFrame(in.pkt); err != nil {
		return codeOf(err)
	}
	defer in.pkt.Unref()

	data := in.pkt.Data()
	p, err := media.AllocPayload(len(data))
	if err != nil {
		return engine.NoMemory
	}
	copy(p.Bytes(), data)

	out.Payload = p
	out.StreamIndex = in.pkt.StreamIndex()
	out.Pts = in.pkt.Pts()
	out.Dts = in.pkt.Dts()
	out.Duration = in.pkt.Duration()
	out.Pos = in.pkt.Pos()
	if in.pkt.Flags().Has(astiav.PacketFlagKey) {
		out.Flags |= media.FlagKey
	}
	if in.pkt.Flags().Has(astiav.PacketFlagCorrupt) {
		out.Flags |= media.FlagCorrupt
	}
	if in.pkt.Flags().Has(astiav.PacketFlagDiscard) {
		out.Flags |= media.FlagDiscard
	}
	return engine.OK
}

func (in *input) BestStream(t media.ContentType, wanted int) int {
	streams := in.fc.Streams()
	if wanted >= 0 {
		if wanted < len(streams) && contentType(streams[wanted].CodecParameters().MediaType()) == t {
			return wanted
		}
		return int(engine.StreamNotFound)
	}
	for _, s := range streams {
		if contentType(s.CodecParameters().MediaType()) == t {
			return s.Index()
		}
	}
	return int(engine.StreamNotFound)
}

func (in *input) Close() error {
	if in.pkt != nil {
		in.pkt.Free()
		in.pkt = nil
	}
	if in.fc != nil {
		in.fc.CloseInput()
		in.fc.Free()
		in.fc = nil
	}
	return nil
}
