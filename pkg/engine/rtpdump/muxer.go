package rtpdump

import (
	"bufio"
	"io"
	"net/netip"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

type outStream struct {
	pt      uint8
	clock   int
	ssrc    uint32
	seq     uint16
	lastTS  uint32
	packets uint32
	octets  uint32
}

type muxer struct {
	uri    string
	w      *bufio.Writer
	closer io.Closer
	logger logrus.FieldLogger

	ssrcBase uint32
	now      func() time.Time

	streams []*outStream
	start   time.Time
	header  bool
	closed  bool
}

func newMuxer(uri string, wc io.WriteCloser, ssrcBase uint32, logger logrus.FieldLogger) *muxer {
	return &muxer{
		uri:      uri,
		w:        bufio.NewWriterSize(wc, 64*1024),
		closer:   wc,
		logger:   logger,
		ssrcBase: ssrcBase,
		now:      time.Now,
	}
}

// AddStream assigns a payload type, clock rate and SSRC to a new stream.
// The clock rate is the codec's RTP clock when known, which makes the stream
// timebase differ from the input timebase for some codecs.
func (m *muxer) AddStream(info media.StreamInfo) (int, error) {
	if m.header {
		return 0, averr.InvalidState("rtpdump.add_stream", "header already written")
	}

	clock := 90000
	if c, ok := lookupCodec(info.CodecName); ok {
		clock = c.clock
	} else if tb := info.Timebase; !tb.IsEmpty() && tb.Num == 1 {
		clock = tb.Den
	}

	idx := len(m.streams)
	m.streams = append(m.streams, &outStream{
		pt:    payloadTypeFor(info.CodecName, idx),
		clock: clock,
		ssrc:  m.ssrcBase + uint32(idx),
	})
	return idx, nil
}

func (m *muxer) StreamTimebase(i int) (avtime.Timebase, bool) {
	if i < 0 || i >= len(m.streams) {
		return avtime.Timebase{}, false
	}
	return avtime.MustTimebase(1, m.streams[i].clock), true
}

// WriteHeader writes the rtpplay line and binary header. Option "source"
// sets the recorded address ("10.0.0.1/5004").
func (m *muxer) WriteHeader(opts media.Options) engine.Code {
	if m.header {
		return engine.InvalidArgument
	}
	m.start = m.now()
	hdr := fileHeader{Addr: netip.IPv4Unspecified(), Start: m.start}
	if src := opts.Text("source", ""); src != "" {
		if addr, port, ok := parseSource(src); ok {
			hdr.Addr, hdr.Port = addr, port
		}
	}
	if err := writeFileHeader(m.w, hdr); err != nil {
		m.logger.WithError(err).Error("Failed to write rtpdump header")
		return engine.IOError
	}
	m.header = true
	return engine.OK
}

// Write packetizes pkt into one RTP packet. Each written packet completes an
// access unit, so the marker bit is always set.
func (m *muxer) Write(pkt *engine.RawPacket) engine.Code {
	if !m.header || m.closed {
		return engine.InvalidArgument
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(m.streams) {
		return engine.StreamNotFound
	}
	s := m.streams[pkt.StreamIndex]

	ts := s.lastTS
	if pkt.Pts != avtime.NoPTS {
		ts = uint32(pkt.Pts)
	}

	p := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    s.pt,
			SequenceNumber: s.seq,
			Timestamp:      ts,
			SSRC:           s.ssrc,
		},
		Payload: pkt.Payload.Bytes(),
	}
	data, err := p.Marshal()
	if err != nil {
		m.logger.WithError(err).Error("Failed to marshal RTP packet")
		return engine.InvalidData
	}

	var offset uint32
	if pkt.Pts != avtime.NoPTS && pkt.Pts > 0 {
		offset = uint32(pkt.Pts * 1000 / int64(s.clock))
	}
	if err := writeRecord(m.w, record{plen: uint16(len(data)), offset: offset, data: data}); err != nil {
		m.logger.WithError(err).Error("Failed to write record")
		if err == errRecordTooLarge {
			return engine.InvalidArgument
		}
		return engine.IOError
	}

	s.seq++
	s.lastTS = ts
	s.packets++
	s.octets += uint32(len(p.Payload))
	return engine.OK
}

// WriteTrailer records a compound RTCP packet: one sender report per stream
// followed by a goodbye for all of them.
func (m *muxer) WriteTrailer() engine.Code {
	if !m.header {
		return engine.InvalidArgument
	}
	now := m.now()
	pkts := make([]rtcp.Packet, 0, len(m.streams)+1)
	bye := &rtcp.Goodbye{Reason: "end of recording"}
	for _, s := range m.streams {
		pkts = append(pkts, &rtcp.SenderReport{
			SSRC:        s.ssrc,
			NTPTime:     toNTP(now),
			RTPTime:     s.lastTS,
			PacketCount: s.packets,
			OctetCount:  s.octets,
		})
		bye.Sources = append(bye.Sources, s.ssrc)
	}
	pkts = append(pkts, bye)

	data, err := rtcp.Marshal(pkts)
	if err != nil {
		m.logger.WithError(err).Error("Failed to marshal RTCP trailer")
		return engine.InvalidData
	}
	offset := uint32(now.Sub(m.start).Milliseconds())
	if err := writeRecord(m.w, record{plen: 0, offset: offset, data: data}); err != nil {
		return engine.IOError
	}
	if err := m.w.Flush(); err != nil {
		m.logger.WithError(err).Error("Failed to flush output")
		return engine.IOError
	}
	return engine.OK
}

func (m *muxer) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	ferr := m.w.Flush()
	cerr := m.closer.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
