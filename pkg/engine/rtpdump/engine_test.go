package rtpdump

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

const testRTPMap = "96=h264/90000,97=opus/48000/2"

type written struct {
	stream int
	pts    int64
	data   string
}

func writeDump(t *testing.T, path string, pkts []written) {
	t.Helper()
	e := New(Config{})
	out, err := e.OpenOutput(path, "", media.Options{"ssrc": "4096", "source": "192.168.1.10/5004"})
	require.NoError(t, err)

	v, err := out.AddStream(media.StreamInfo{CodecName: "h264", Type: media.ContentVideo, Timebase: avtime.MustTimebase(1, 25)})
	require.NoError(t, err)
	a, err := out.AddStream(media.StreamInfo{CodecName: "opus", Type: media.ContentAudio, Timebase: avtime.TimeBase48kHz})
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 1, a)

	tb, ok := out.StreamTimebase(v)
	require.True(t, ok)
	assert.True(t, tb.Equal(avtime.TimeBase90kHz), "h264 is carried on the 90kHz clock")
	_, ok = out.StreamTimebase(2)
	assert.False(t, ok)

	require.Equal(t, engine.OK, out.WriteHeader(nil))
	for _, p := range pkts {
		pkt := engine.RawPacket{
			Payload:     media.NewPayload([]byte(p.data), nil),
			StreamIndex: p.stream,
			Pts:         p.pts,
			Dts:         p.pts,
		}
		require.Equal(t, engine.OK, out.Write(&pkt))
	}
	require.Equal(t, engine.OK, out.WriteTrailer())
	require.NoError(t, out.Close())
}

func TestRegistered(t *testing.T) {
	e, err := engine.Format(Name)
	require.NoError(t, err)
	assert.Equal(t, []string{Name}, e.Formats())
	assert.Equal(t, "End of file", e.Describe(engine.EOF))
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.rtp")
	writeDump(t, path, []written{
		{0, 9000, "idr"},
		{1, 960, "opus-a"},
		{0, 12600, "p"},
		{1, 1920, "opus-b"},
	})

	e := New(Config{})
	in, err := e.OpenInput(path, media.Options{"rtpmap": testRTPMap})
	require.NoError(t, err)
	defer in.Close()

	info, err := in.Probe()
	require.NoError(t, err)
	assert.Equal(t, Name, info.Format)
	assert.Equal(t, "192.168.1.10/5004", info.Metadata["source"])
	require.Len(t, info.Streams, 2)

	video := info.Streams[0]
	assert.Equal(t, media.ContentVideo, video.Type)
	assert.Equal(t, "h264", video.CodecName)
	assert.Equal(t, 96, video.CodecID)
	assert.Equal(t, uint32(4096), video.CodecTag)
	assert.True(t, video.Timebase.Equal(avtime.TimeBase90kHz))

	audio := info.Streams[1]
	assert.Equal(t, media.ContentAudio, audio.Type)
	assert.Equal(t, "0x00001001", audio.Metadata["ssrc"])
	require.NotNil(t, audio.Audio)
	assert.Equal(t, 2, audio.Audio.Channels)

	assert.Equal(t, 0, in.BestStream(media.ContentVideo, -1))
	assert.Equal(t, 1, in.BestStream(media.ContentAudio, -1))
	assert.Equal(t, 1, in.BestStream(media.ContentAudio, 1))
	assert.Equal(t, int(engine.StreamNotFound), in.BestStream(media.ContentAudio, 0))
	assert.Equal(t, int(engine.StreamNotFound), in.BestStream(media.ContentSubtitle, -1))

	want := []written{
		{0, 0, "idr"},
		{1, 0, "opus-a"},
		{0, 3600, "p"},
		{1, 960, "opus-b"},
	}
	var pkt engine.RawPacket
	for _, w := range want {
		pkt.Reset()
		require.Equal(t, engine.OK, in.Read(&pkt))
		assert.Equal(t, w.stream, pkt.StreamIndex)
		assert.Equal(t, w.pts, pkt.Pts, "timestamps are relative to the first packet")
		assert.Equal(t, pkt.Pts, pkt.Dts)
		assert.Equal(t, w.data, string(pkt.Payload.Bytes()))
		assert.Greater(t, pkt.Pos, int64(0))
		if w.stream == 1 {
			assert.True(t, pkt.Flags.Has(media.FlagKey))
		}
	}

	pkt.Reset()
	assert.Equal(t, engine.EOF, in.Read(&pkt), "the RTCP trailer is not a packet")
}

func TestTrailer_SenderReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trailer.rtp")
	writeDump(t, path, []written{{0, 3000, "a"}, {0, 6000, "bb"}})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := bufio.NewReader(f)
	_, _, err = readFileHeader(r)
	require.NoError(t, err)

	var last record
	var buf []byte
	for {
		rec, b, err := readRecord(r, buf)
		if err != nil {
			break
		}
		buf = b
		last = rec
		last.data = append([]byte(nil), rec.data...)
	}
	require.True(t, last.isRTCP())

	pkts, err := rtcp.Unmarshal(last.data)
	require.NoError(t, err)
	require.Len(t, pkts, 3)

	sr, ok := pkts[0].(*rtcp.SenderReport)
	require.True(t, ok)
	assert.Equal(t, uint32(4096), sr.SSRC)
	assert.Equal(t, uint32(2), sr.PacketCount)
	assert.Equal(t, uint32(3), sr.OctetCount)
	assert.Equal(t, uint32(6000), sr.RTPTime)

	bye, ok := pkts[2].(*rtcp.Goodbye)
	require.True(t, ok)
	assert.Equal(t, []uint32{4096, 4097}, bye.Sources)
}

func TestRead_TimestampWrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrap.rtp")
	writeDump(t, path, []written{
		{0, 0xFFFFFF00, "before"},
		{0, 0x1_0000_0100, "after"},
	})

	in, err := New(Config{}).OpenInput(path, media.Options{"rtpmap": testRTPMap})
	require.NoError(t, err)
	defer in.Close()
	_, err = in.Probe()
	require.NoError(t, err)

	var pkt engine.RawPacket
	pkt.Reset()
	require.Equal(t, engine.OK, in.Read(&pkt))
	assert.Equal(t, int64(0), pkt.Pts)
	pkt.Reset()
	require.Equal(t, engine.OK, in.Read(&pkt))
	assert.Equal(t, int64(0x200), pkt.Pts)
}

func TestRead_LateSSRCIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.rtp")
	writeDump(t, path, []written{
		{0, 0, "v0"},
		{0, 3600, "v1"},
		{1, 960, "late"},
		{0, 7200, "v2"},
	})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	in, err := New(Config{Logger: logger}).OpenInput(path, media.Options{
		"rtpmap":        testRTPMap,
		"probe_packets": "2",
	})
	require.NoError(t, err)
	defer in.Close()

	info, err := in.Probe()
	require.NoError(t, err)
	assert.Len(t, info.Streams, 1)

	var got []string
	var pkt engine.RawPacket
	for {
		pkt.Reset()
		if in.Read(&pkt) != engine.OK {
			break
		}
		got = append(got, string(pkt.Payload.Bytes()))
	}
	assert.Equal(t, []string{"v0", "v1", "v2"}, got)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Ignoring SSRC that appeared after probing" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestOpenInput_Errors(t *testing.T) {
	e := New(Config{})

	_, err := e.OpenInput(filepath.Join(t.TempDir(), "missing.rtp"), nil)
	assert.True(t, errors.Is(err, averr.ErrIO))

	_, err = e.OpenInput("x.rtp", media.Options{"rtpmap": "bogus"})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	_, err = e.OpenInput("x.rtp", media.Options{"probe_packets": "0"})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	_, err = e.OpenInput("udp://127.0.0.1:5004", nil)
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	path := filepath.Join(t.TempDir(), "garbage.rtp")
	require.NoError(t, os.WriteFile(path, []byte("not a dump\n"), 0o644))
	in, err := e.OpenInput(path, nil)
	require.NoError(t, err)
	defer in.Close()
	_, err = in.Probe()
	assert.True(t, errors.Is(err, averr.ErrIO))

	var pkt engine.RawPacket
	assert.Equal(t, engine.InvalidArgument, in.Read(&pkt), "read before probe")
}

func TestProbe_NoPackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rtp")
	writeDump(t, path, nil)

	in, err := New(Config{}).OpenInput(path, nil)
	require.NoError(t, err)
	defer in.Close()
	_, err = in.Probe()
	ae, ok := averr.As(err)
	require.True(t, ok)
	assert.Equal(t, int(engine.StreamNotFound), ae.Code)
}

func TestOpenOutput_Errors(t *testing.T) {
	e := New(Config{})
	_, err := e.OpenOutput("out.ts", "mpegts", nil)
	assert.True(t, errors.Is(err, averr.ErrConfig))

	out, err := e.OpenOutput(filepath.Join(t.TempDir(), "o.rtp"), Name, nil)
	require.NoError(t, err)
	defer out.Close()

	pkt := engine.RawPacket{Payload: media.NewPayload([]byte("x"), nil)}
	assert.Equal(t, engine.InvalidArgument, out.Write(&pkt), "write before header")
	assert.Equal(t, engine.InvalidArgument, out.WriteTrailer())

	_, err = out.AddStream(media.StreamInfo{CodecName: "vp8"})
	require.NoError(t, err)
	require.Equal(t, engine.OK, out.WriteHeader(nil))
	assert.Equal(t, engine.InvalidArgument, out.WriteHeader(nil))

	_, err = out.AddStream(media.StreamInfo{CodecName: "opus"})
	assert.True(t, errors.Is(err, averr.ErrInvalidState))

	pkt.StreamIndex = 3
	assert.Equal(t, engine.StreamNotFound, out.Write(&pkt))
}

func TestMuxer_RecordOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.rtp")
	e := New(Config{})
	out, err := e.OpenOutput(path, "", media.Options{"ssrc": "1"})
	require.NoError(t, err)
	m := out.(*muxer)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	_, err = m.AddStream(media.StreamInfo{CodecName: "opus"})
	require.NoError(t, err)
	require.Equal(t, engine.OK, m.WriteHeader(nil))
	pkt := engine.RawPacket{Payload: media.NewPayload([]byte("a"), nil), Pts: 48000}
	require.Equal(t, engine.OK, m.Write(&pkt))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := bufio.NewReader(f)
	hdr, _, err := readFileHeader(r)
	require.NoError(t, err)
	assert.True(t, base.Equal(hdr.Start))
	rec, _, err := readRecord(r, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), rec.offset, "one second of 48kHz ticks")
}
