package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/internal/logger"
	"github.com/zsiec/avwrap/internal/metrics"
	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avcodec"
	"github.com/zsiec/avwrap/pkg/avformat"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// track is the decode/encode chain of one input stream.
type track struct {
	index int
	dec   *avcodec.Decoder
	enc   *avcodec.Encoder
}

func (t *track) close() error {
	var err error
	if t.dec != nil {
		err = t.dec.Close()
	}
	if t.enc != nil {
		err = errors.Join(err, t.enc.Close())
	}
	return err
}

// encoderTimebase picks the timebase frames are encoded in: the time_base
// encoder option, else one tick per sample for audio, else the stream's own.
func encoderTimebase(st media.StreamInfo, opts media.Options) (avtime.Timebase, error) {
	if s, ok := opts.Get("time_base"); ok {
		var num, den int
		if _, err := fmt.Sscanf(s, "%d/%d", &num, &den); err != nil {
			return avtime.Timebase{}, averr.InvalidArgument("pipeline.encoder", "invalid time_base %q", s)
		}
		return avtime.NewTimebase(num, den)
	}
	if st.Audio != nil && st.Audio.SampleRate > 0 {
		return avtime.NewTimebase(1, st.Audio.SampleRate)
	}
	return st.Timebase, nil
}

func (p *Pipeline) openTrack(st media.StreamInfo) (*track, error) {
	pc := p.cfg.Pipeline
	log := p.logger.WithField("stream_index", st.Index)
	t := &track{index: st.Index}

	dec, err := avcodec.NewDecoder(p.codecs, st,
		avcodec.WithLogger(log),
		avcodec.WithOptions(media.Options(pc.DecoderOptions)))
	if err != nil {
		return nil, err
	}
	t.dec = dec

	encOpts := media.Options(pc.EncoderOptions)
	out := dec.Parameters()
	out.Index = st.Index
	out.Type = st.Type
	switch {
	case st.Type == media.ContentVideo && pc.VideoCodec != "":
		out.CodecName = pc.VideoCodec
	case st.Type == media.ContentAudio && pc.AudioCodec != "":
		out.CodecName = pc.AudioCodec
	}
	if out.Timebase, err = encoderTimebase(out, encOpts); err != nil {
		_ = t.close()
		return nil, err
	}

	enc, err := avcodec.NewEncoder(p.codecs, out,
		avcodec.WithLogger(log),
		avcodec.WithOptions(encOpts))
	if err != nil {
		_ = t.close()
		return nil, err
	}
	t.enc = enc

	log.WithFields(logrus.Fields{
		"decoder":          st.CodecName,
		"encoder":          out.CodecName,
		"decoder_timebase": dec.Timebase().String(),
		"encoder_timebase": enc.Timebase().String(),
	}).Debug("Track opened")
	return t, nil
}

// transcode decodes and re-encodes every selected stream.
func (p *Pipeline) transcode(ctx context.Context) (err error) {
	src, info, err := p.openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	tracks := make(map[int]*track, len(info.Streams))
	defer func() {
		for _, t := range tracks {
			err = errors.Join(err, t.close())
		}
	}()

	out := &media.MediaInfo{
		URI:      p.cfg.Pipeline.Output,
		Metadata: info.Metadata,
		Streams:  make(map[int]media.StreamInfo, len(info.Streams)),
	}
	for _, st := range info.SortedStreams() {
		t, err := p.openTrack(st)
		if err != nil {
			return err
		}
		tracks[st.Index] = t
		out.Streams[st.Index] = t.enc.Parameters()
	}

	sink, err := p.openSink(out)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sink.Close())
	}()

	pkt := media.NewPacket()
	defer pkt.Clear()
	frame := media.NewFrame()
	defer frame.Clear()
	encoded := media.NewPacket()
	defer encoded.Clear()

	for {
		ok, err := p.next(ctx, src, pkt)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		t := tracks[pkt.StreamIndex()]
		if t == nil {
			p.drop(pkt, "untracked")
			continue
		}
		res, err := t.dec.Decode(pkt, frame)
		pkt.Clear()
		if err != nil {
			return err
		}
		metrics.RecordResult(metrics.StageDecode, res)
		switch {
		case res.OK():
			if err := p.encodeFrame(ctx, t, frame, encoded, sink); err != nil {
				return err
			}
		case res.Retry():
			p.sampled.Debug(logger.CategoryRetry, "Decoder needs more input", logrus.Fields{"stream_index": t.index})
		case res.Fatal():
			return p.codecError("pipeline.decode", res.Code)
		}
	}

	return p.flush(ctx, info, tracks, encoded, sink)
}

// encodeFrame rescales frame into the encoder timebase, encodes it and
// writes the packet, if any. frame is cleared on return.
func (p *Pipeline) encodeFrame(ctx context.Context, t *track, frame, pkt *media.Buffer, sink *avformat.Sink) error {
	defer frame.Clear()
	p.stats.FramesDecoded++
	metrics.RecordPacket(metrics.StageDecode, frame.ContentType(), frame.Size())

	if tb := t.enc.Timebase(); !frame.Timebase().Equal(tb) {
		from := frame.Timebase()
		if err := frame.RescaleTo(tb); err != nil {
			return err
		}
		metrics.RecordRescale()
		p.sampled.Debug(logger.CategoryRescale, "Frame rescaled", logrus.Fields{
			"stream_index": t.index,
			"from":         from.String(),
			"to":           tb.String(),
		})
	}

	res, err := t.enc.Encode(frame, pkt)
	if err != nil {
		return err
	}
	metrics.RecordResult(metrics.StageEncode, res)
	switch {
	case res.OK():
		metrics.RecordPacket(metrics.StageEncode, pkt.ContentType(), pkt.Size())
		err := p.write(ctx, sink, pkt)
		pkt.Clear()
		return err
	case res.Retry():
		p.sampled.Debug(logger.CategoryRetry, "Encoder needs more input", logrus.Fields{"stream_index": t.index})
		return nil
	case res.EndOfStream():
		return averr.InvalidState("pipeline.encode", "encoder for stream %d already flushed", t.index)
	default:
		return p.codecError("pipeline.encode", res.Code)
	}
}

// flush drains every decoder into its encoder, then drains the encoders.
func (p *Pipeline) flush(ctx context.Context, info *media.MediaInfo, tracks map[int]*track, pkt *media.Buffer, sink *avformat.Sink) error {
	streams := info.SortedStreams()

	for _, st := range streams {
		t := tracks[st.Index]
		frames, res, err := t.dec.Flush(nil)
		if err != nil {
			return err
		}
		var ferr error
		for _, f := range frames {
			if ferr == nil {
				ferr = p.encodeFrame(ctx, t, f, pkt, sink)
			}
			f.Clear()
		}
		if ferr != nil {
			return ferr
		}
		if res.Fatal() {
			return p.codecError("pipeline.flush_decoder", res.Code)
		}
		p.logger.WithFields(logrus.Fields{"stream_index": t.index, "frames": len(frames)}).Debug("Decoder flushed")
	}

	for _, st := range streams {
		t := tracks[st.Index]
		pkts, res, err := t.enc.Flush(nil)
		if err != nil {
			return err
		}
		var werr error
		for _, b := range pkts {
			if werr == nil {
				metrics.RecordPacket(metrics.StageEncode, b.ContentType(), b.Size())
				werr = p.write(ctx, sink, b)
			}
			b.Clear()
		}
		if werr != nil {
			return werr
		}
		if res.Fatal() {
			return p.codecError("pipeline.flush_encoder", res.Code)
		}
		p.logger.WithFields(logrus.Fields{"stream_index": t.index, "packets": len(pkts)}).Debug("Encoder flushed")
	}
	return nil
}

func (p *Pipeline) codecError(op string, code engine.Code) error {
	return averr.Engine(op, int(code), p.codecs.Describe(code))
}
