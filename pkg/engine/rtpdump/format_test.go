package rtpdump

import (
	"bufio"
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/media"
)

func TestFileHeader_RoundTrip(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 250_000_000, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, writeFileHeader(&buf, fileHeader{
		Addr:  netip.MustParseAddr("10.0.0.1"),
		Port:  5004,
		Start: start,
	}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("#!rtpplay1.0 10.0.0.1/5004\n")))

	hdr, n, err := readFileHeader(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, int64(len("#!rtpplay1.0 10.0.0.1/5004\n")+fileHdrSize), n)
	assert.Equal(t, "10.0.0.1/5004", hdr.source())
	assert.True(t, start.Equal(hdr.Start))
}

func TestFileHeader_BadMagic(t *testing.T) {
	_, _, err := readFileHeader(bufio.NewReader(bytes.NewBufferString("#!rtpplay2.0 0.0.0.0/0\n")))
	assert.ErrorIs(t, err, errBadMagic)
}

func TestRecord_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, record{plen: 3, offset: 40, data: []byte{1, 2, 3}}))
	require.NoError(t, writeRecord(&buf, record{plen: 0, offset: 80, data: []byte{9}}))

	rec, scratch, err := readRecord(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), rec.plen)
	assert.Equal(t, uint32(40), rec.offset)
	assert.Equal(t, []byte{1, 2, 3}, rec.data)
	assert.False(t, rec.isRTCP())

	rec, _, err = readRecord(&buf, scratch)
	require.NoError(t, err)
	assert.True(t, rec.isRTCP())
	assert.Equal(t, []byte{9}, rec.data)
}

func TestRecord_Errors(t *testing.T) {
	_, _, err := readRecord(bytes.NewReader([]byte{0, 4, 0, 0, 0, 0, 0, 0}), nil)
	assert.ErrorIs(t, err, errShortRecord)

	// header claims 4 payload bytes, only 2 present
	_, _, err = readRecord(bytes.NewReader([]byte{0, 12, 0, 4, 0, 0, 0, 0, 1, 2}), nil)
	assert.Error(t, err)

	err = writeRecord(&bytes.Buffer{}, record{data: make([]byte, maxRecord)})
	assert.ErrorIs(t, err, errRecordTooLarge)
}

func TestParseRTPMap(t *testing.T) {
	m, err := parseRTPMap("96=H264/90000, 97=opus/48000/2,98=x-custom/1000")
	require.NoError(t, err)
	assert.Equal(t, codecInfo{"h264", media.ContentVideo, 90000, 0}, m[96])
	assert.Equal(t, codecInfo{"opus", media.ContentAudio, 48000, 2}, m[97])
	assert.Equal(t, media.ContentData, m[98].typ)
	assert.Equal(t, 1000, m[98].clock)

	m, err = parseRTPMap("")
	require.NoError(t, err)
	assert.Empty(t, m)

	for _, bad := range []string{"96", "200=h264/90000", "96=h264/abc", "97=opus/48000/0"} {
		_, err := parseRTPMap(bad)
		assert.Error(t, err, bad)
	}
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, "pcm_mulaw", codecFor(0, nil).name)
	assert.Equal(t, 8000, codecFor(8, nil).clock)
	assert.Equal(t, "unknown", codecFor(111, nil).name)

	m := map[uint8]codecInfo{0: {name: "override", typ: media.ContentAudio, clock: 16000}}
	assert.Equal(t, "override", codecFor(0, m).name)
}

func TestPayloadTypeFor(t *testing.T) {
	assert.Equal(t, uint8(0), payloadTypeFor("PCMU", 3))
	assert.Equal(t, uint8(8), payloadTypeFor("pcm_alaw", 0))
	assert.Equal(t, uint8(96), payloadTypeFor("h264", 0))
	assert.Equal(t, uint8(97), payloadTypeFor("opus", 1))
}

func TestNTP(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 500_000_000, time.UTC)
	back := fromNTP(toNTP(now))
	assert.WithinDuration(t, now, back, time.Microsecond)
	assert.Equal(t, "0x0000abcd", hex32(0xabcd))
}
