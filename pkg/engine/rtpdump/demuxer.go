package rtpdump

import (
	"bufio"
	"errors"
	"io"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

// inStream is one SSRC of the dump.
type inStream struct {
	index    int
	ssrc     uint32
	pt       uint8
	codec    codecInfo
	unwrap   *avtime.Unwrapper
	first    int64
	started  bool
	packets  int64
	lastSeq  uint16
	ended    bool
	reportAt time.Time // wallclock of the last sender report
}

func (s *inStream) timebase() avtime.Timebase {
	return avtime.MustTimebase(1, s.codec.clock)
}

// pts converts a 32-bit RTP timestamp into ticks since the stream's first
// packet.
func (s *inStream) pts(ts uint32) int64 {
	v := s.unwrap.Unwrap(int64(ts))
	if !s.started {
		s.started = true
		s.first = v
	}
	return v - s.first
}

type pending struct {
	pkt    rtp.Packet
	stream *inStream
	pos    int64
}

type demuxer struct {
	uri    string
	r      *bufio.Reader
	closer io.Closer
	logger logrus.FieldLogger

	rtpmap       map[uint8]codecInfo
	probePackets int

	hdr     fileHeader
	pos     int64
	buf     []byte
	streams []*inStream
	bySSRC  map[uint32]*inStream
	queue   []pending
	info    *media.MediaInfo
	warned  map[uint32]bool
}

func newDemuxer(uri string, rc io.ReadCloser, rtpmap map[uint8]codecInfo, probePackets int, logger logrus.FieldLogger) *demuxer {
	return &demuxer{
		uri:          uri,
		r:            bufio.NewReaderSize(rc, 64*1024),
		closer:       rc,
		logger:       logger,
		rtpmap:       rtpmap,
		probePackets: probePackets,
		bySSRC:       make(map[uint32]*inStream),
		warned:       make(map[uint32]bool),
	}
}

// Probe reads the file header and buffers packets until probePackets RTP
// packets were seen or the input ends. Every SSRC seen becomes a stream.
func (d *demuxer) Probe() (*media.MediaInfo, error) {
	if d.info != nil {
		return d.info, nil
	}

	hdr, n, err := readFileHeader(d.r)
	if err != nil {
		return nil, averr.Wrap(err, averr.KindIO, "rtpdump.probe", "cannot read file header")
	}
	d.hdr = hdr
	d.pos = n

	metadata := map[string]string{
		"source":     hdr.source(),
		"start_time": hdr.Start.Format(time.RFC3339Nano),
	}

	for seen := 0; seen < d.probePackets; {
		pkt, s, pos, code := d.next(true)
		if code == engine.EOF {
			break
		}
		if code < 0 {
			return nil, averr.Engine("rtpdump.probe", int(code), code.String())
		}
		d.queue = append(d.queue, pending{pkt: pkt, stream: s, pos: pos})
		seen++
	}

	if len(d.streams) == 0 {
		return nil, averr.Engine("rtpdump.probe", int(engine.StreamNotFound), "no RTP packets in "+d.uri)
	}

	info := &media.MediaInfo{
		URI:            d.uri,
		Format:         Name,
		FormatLongName: "RTP dump (rtpplay1.0)",
		Metadata:       metadata,
		Streams:        make(map[int]media.StreamInfo, len(d.streams)),
	}
	for _, s := range d.streams {
		info.Streams[s.index] = d.streamInfo(s)
	}
	d.info = info
	return info, nil
}

func (d *demuxer) streamInfo(s *inStream) media.StreamInfo {
	si := media.StreamInfo{
		Index:     s.index,
		Type:      s.codec.typ,
		CodecID:   int(s.pt),
		CodecName: s.codec.name,
		Timebase:  s.timebase(),
		CodecTag:  s.ssrc,
		Metadata: map[string]string{
			"payload_type": itoa(int(s.pt)),
			"ssrc":         hex32(s.ssrc),
		},
	}
	switch s.codec.typ {
	case media.ContentAudio:
		si.Audio = &media.AudioInfo{SampleRate: s.codec.clock, Channels: s.codec.channels}
	case media.ContentVideo:
		si.Video = &media.VideoInfo{}
	}
	return si
}

// next returns the next RTP packet, skipping RTCP. New SSRCs become streams
// only while probing.
func (d *demuxer) next(probing bool) (rtp.Packet, *inStream, int64, engine.Code) {
	for {
		pos := d.pos
		rec, buf, err := readRecord(d.r, d.buf)
		d.buf = buf
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return rtp.Packet{}, nil, pos, engine.EOF
			case errors.Is(err, io.ErrUnexpectedEOF):
				d.logger.WithField("position", pos).Warn("Truncated record at end of input")
				return rtp.Packet{}, nil, pos, engine.EOF
			case errors.Is(err, errShortRecord):
				return rtp.Packet{}, nil, pos, engine.InvalidData
			default:
				d.logger.WithError(err).Error("Failed to read record")
				return rtp.Packet{}, nil, pos, engine.IOError
			}
		}
		d.pos += int64(recHdrSize + len(rec.data))

		if rec.isRTCP() {
			d.handleRTCP(rec.data)
			continue
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(rec.data); err != nil {
			d.logger.WithError(err).WithField("position", pos).Warn("Skipping malformed RTP packet")
			continue
		}

		s, ok := d.bySSRC[pkt.SSRC]
		if !ok {
			if !probing {
				if !d.warned[pkt.SSRC] {
					d.warned[pkt.SSRC] = true
					d.logger.WithField("ssrc", hex32(pkt.SSRC)).Warn("Ignoring SSRC that appeared after probing")
				}
				continue
			}
			s = &inStream{
				index:  len(d.streams),
				ssrc:   pkt.SSRC,
				pt:     pkt.PayloadType,
				codec:  codecFor(pkt.PayloadType, d.rtpmap),
				unwrap: avtime.NewUnwrapper(32),
			}
			d.streams = append(d.streams, s)
			d.bySSRC[pkt.SSRC] = s
		}
		// Unmarshal aliases the record buffer, which is reused.
		pkt.Payload = append([]byte(nil), pkt.Payload...)
		return pkt, s, pos, engine.OK
	}
}

func (d *demuxer) handleRTCP(data []byte) {
	pkts, err := rtcp.Unmarshal(data)
	if err != nil {
		d.logger.WithError(err).Debug("Skipping malformed RTCP packet")
		return
	}
	for _, p := range pkts {
		switch p := p.(type) {
		case *rtcp.SenderReport:
			if s, ok := d.bySSRC[p.SSRC]; ok {
				s.reportAt = fromNTP(p.NTPTime)
			}
		case *rtcp.Goodbye:
			for _, ssrc := range p.Sources {
				if s, ok := d.bySSRC[ssrc]; ok && !s.ended {
					s.ended = true
					d.logger.WithFields(logrus.Fields{
						"ssrc":   hex32(ssrc),
						"reason": p.Reason,
					}).Debug("Stream said goodbye")
				}
			}
		}
	}
}

func (d *demuxer) Read(out *engine.RawPacket) engine.Code {
	if d.info == nil {
		return engine.InvalidArgument
	}

	var p pending
	if len(d.queue) > 0 {
		p = d.queue[0]
		d.queue[0] = pending{}
		d.queue = d.queue[1:]
	} else {
		pkt, s, pos, code := d.next(false)
		if code < 0 {
			return code
		}
		p = pending{pkt: pkt, stream: s, pos: pos}
	}

	s := p.stream
	if s.packets > 0 && p.pkt.SequenceNumber != s.lastSeq+1 {
		d.logger.WithFields(logrus.Fields{
			"ssrc":     hex32(s.ssrc),
			"expected": s.lastSeq + 1,
			"got":      p.pkt.SequenceNumber,
		}).Debug("RTP sequence discontinuity")
	}
	s.lastSeq = p.pkt.SequenceNumber
	s.packets++

	pts := s.pts(p.pkt.Timestamp)
	out.Payload = media.NewPayload(p.pkt.Payload, nil)
	out.StreamIndex = s.index
	out.Pts = pts
	out.Dts = pts
	out.Pos = p.pos
	if s.codec.typ == media.ContentAudio {
		out.Flags |= media.FlagKey
	}
	return engine.OK
}

func (d *demuxer) BestStream(t media.ContentType, wanted int) int {
	if wanted >= 0 {
		if wanted < len(d.streams) && d.streams[wanted].codec.typ == t {
			return wanted
		}
		return int(engine.StreamNotFound)
	}
	for _, s := range d.streams {
		if s.codec.typ == t {
			return s.index
		}
	}
	return int(engine.StreamNotFound)
}

func (d *demuxer) Close() error {
	for i := range d.queue {
		d.queue[i] = pending{}
	}
	d.queue = nil
	return d.closer.Close()
}
