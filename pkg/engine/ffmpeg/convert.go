//go:build ffmpeg

package ffmpeg

import (
	"github.com/asticode/go-astiav"

	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/media"
)

func toRational(r avtime.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromRational(r astiav.Rational) avtime.Rational {
	return avtime.Rational{Num: r.Num(), Den: r.Den()}
}

func toTimebase(r astiav.Rational) avtime.Timebase {
	tb, err := avtime.NewTimebase(r.Num(), r.Den())
	if err != nil {
		return avtime.Timebase{}
	}
	return tb
}

func contentType(t astiav.MediaType) media.ContentType {
	switch t {
	case astiav.MediaTypeVideo:
		return media.ContentVideo
	case astiav.MediaTypeAudio:
		return media.ContentAudio
	case astiav.MediaTypeSubtitle:
		return media.ContentSubtitle
	case astiav.MediaTypeData:
		return media.ContentData
	}
	return media.ContentNone
}

func mediaType(t media.ContentType) astiav.MediaType {
	switch t {
	case media.ContentVideo:
		return astiav.MediaTypeVideo
	case media.ContentAudio:
		return astiav.MediaTypeAudio
	case media.ContentSubtitle:
		return astiav.MediaTypeSubtitle
	case media.ContentData:
		return astiav.MediaTypeData
	}
	return astiav.MediaTypeUnknown
}

func streamInfo(s *astiav.Stream) media.StreamInfo {
	cp := s.CodecParameters()
	si := media.StreamInfo{
		Index:     s.Index(),
		Type:      contentType(cp.MediaType()),
		CodecID:   int(cp.CodecID()),
		CodecName: cp.CodecID().Name(),
		Timebase:  toTimebase(s.TimeBase()),
		Duration:  s.Duration(),
		StartTime: s.StartTime(),
		Bitrate:   cp.BitRate(),
		Profile:   int(cp.Profile()),
		Level:     int(cp.Level()),
		CodecTag:  uint32(cp.CodecTag()),
		ExtraData: cp.ExtraData(),
		Metadata:  metadata(s.Metadata()),
	}
	switch si.Type {
	case media.ContentVideo:
		si.Video = &media.VideoInfo{
			Width:             cp.Width(),
			Height:            cp.Height(),
			PixelFormat:       cp.PixelFormat().Name(),
			AverageFrameRate:  fromRational(s.AvgFrameRate()),
			FrameCount:        s.NbFrames(),
			SampleAspectRatio: fromRational(cp.SampleAspectRatio()),
		}
	case media.ContentAudio:
		si.Audio = &media.AudioInfo{
			SampleRate:   cp.SampleRate(),
			Channels:     cp.ChannelLayout().Channels(),
			SampleFormat: cp.SampleFormat().Name(),
			FrameSize:    cp.FrameSize(),
		}
	}
	return si
}

// fillParameters copies info into cp for an output stream or a codec that
// is opened without a demuxer.
func fillParameters(cp *astiav.CodecParameters, info media.StreamInfo) {
	cp.SetMediaType(mediaType(info.Type))
	if c := astiav.FindDecoderByName(info.CodecName); c != nil {
		cp.SetCodecID(c.ID())
	}
	if info.CodecTag != 0 {
		cp.SetCodecTag(astiav.CodecTag(info.CodecTag))
	}
	if info.Bitrate > 0 {
		cp.SetBitRate(info.Bitrate)
	}
	if len(info.ExtraData) > 0 {
		_ = cp.SetExtraData(info.ExtraData)
	}
	if v := info.Video; v != nil {
		cp.SetWidth(v.Width)
		cp.SetHeight(v.Height)
		if v.PixelFormat != "" {
			cp.SetPixelFormat(astiav.FindPixelFormatByName(v.PixelFormat))
		}
		if !v.SampleAspectRatio.IsZero() {
			cp.SetSampleAspectRatio(toRational(v.SampleAspectRatio))
		}
	}
	if a := info.Audio; a != nil {
		cp.SetSampleRate(a.SampleRate)
		if a.SampleFormat != "" {
			cp.SetSampleFormat(sampleFormat(a.SampleFormat))
		}
		if a.FrameSize > 0 {
			cp.SetFrameSize(a.FrameSize)
		}
		cp.SetChannelLayout(channelLayout(a.Channels))
	}
}

func channelLayout(channels int) astiav.ChannelLayout {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono
	case 6:
		return astiav.ChannelLayout5Point1
	default:
		return astiav.ChannelLayoutStereo
	}
}

func metadata(d *astiav.Dictionary) map[string]string {
	if d == nil {
		return nil
	}
	out := make(map[string]string)
	var prev *astiav.DictionaryEntry
	for {
		e := d.Get("", prev, astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix))
		if e == nil {
			break
		}
		out[e.Key()] = e.Value()
		prev = e
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
