package soft

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/media"
)

var tb = avtime.MustTimebase(1, 90000)

func info() media.StreamInfo {
	return media.StreamInfo{CodecName: "h264", Timebase: tb, Type: media.ContentVideo}
}

func packet(t *testing.T, pts int64, key bool) *media.Buffer {
	t.Helper()
	p := media.NewPacket()
	require.NoError(t, p.SetData([]byte{byte(pts)}))
	p.SetTimebase(tb)
	p.SetNativeTimestamps(pts, pts)
	if key {
		p.SetFlags(media.FlagKey)
	}
	return p
}

func TestRegistered(t *testing.T) {
	e, err := engine.Codec(Name)
	require.NoError(t, err)
	assert.Contains(t, e.Codecs(), "h264")
	assert.Equal(t, "End of file", e.Describe(engine.EOF))
}

func TestOpen_Errors(t *testing.T) {
	e := New(Config{Codecs: []string{"opus"}})

	_, err := e.OpenDecoder(info(), nil)
	require.Error(t, err)
	ae, ok := averr.As(err)
	require.True(t, ok)
	assert.Equal(t, int(engine.DecoderNotFound), ae.Code)

	_, err = e.OpenEncoder(info(), nil)
	assert.True(t, errors.Is(err, averr.ErrEngine))

	e = New(Config{})
	_, err = e.OpenDecoder(info(), media.Options{"delay": "-1"})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
	_, err = e.OpenEncoder(info(), media.Options{"gop": "0"})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
}

func TestContext_ZeroDelay(t *testing.T) {
	ctx, err := New(Config{}).OpenDecoder(info(), nil)
	require.NoError(t, err)
	defer ctx.Close()

	out := media.NewFrame()
	assert.Equal(t, engine.Again, ctx.Drain(out))

	in := packet(t, 3000, true)
	require.Equal(t, engine.OK, ctx.Feed(in))
	assert.Equal(t, engine.Again, ctx.Feed(packet(t, 6000, false)), "full until drained")

	require.Equal(t, engine.OK, ctx.Drain(out))
	assert.Same(t, in.Payload(), out.Payload(), "frames share the packet payload")
	assert.Equal(t, int32(2), in.Payload().Refs())
	assert.Equal(t, int64(3000), out.Pts().Value())
	assert.True(t, out.FrameProps().KeyFrame)
	assert.True(t, out.Timebase().Equal(tb))

	in.Clear()
	out.Clear()

	require.Equal(t, engine.OK, ctx.Feed(nil))
	assert.Equal(t, engine.EOF, ctx.Drain(out))
	assert.Equal(t, engine.EOF, ctx.Feed(packet(t, 9000, false)))
}

func TestContext_ReordersByPts(t *testing.T) {
	ctx, err := New(Config{DecoderDelay: 2}).OpenDecoder(info(), nil)
	require.NoError(t, err)
	defer ctx.Close()

	var got []int64
	out := media.NewFrame()
	for _, pts := range []int64{0, 9000, 3000, 6000} {
		require.Equal(t, engine.OK, ctx.Feed(packet(t, pts, false)))
		if ctx.Drain(out) == engine.OK {
			got = append(got, out.Pts().Value())
			out.Clear()
		}
	}
	require.Equal(t, engine.OK, ctx.Feed(nil))
	for ctx.Drain(out) == engine.OK {
		got = append(got, out.Pts().Value())
		out.Clear()
	}
	assert.Equal(t, []int64{0, 3000, 6000, 9000}, got)
}

func TestContext_NoPtsKeepsArrivalOrder(t *testing.T) {
	ctx, err := New(Config{DecoderDelay: 2}).OpenDecoder(info(), nil)
	require.NoError(t, err)
	defer ctx.Close()

	for i := 0; i < 3; i++ {
		p := media.NewPacket()
		require.NoError(t, p.SetData([]byte{byte(i)}))
		require.Equal(t, engine.OK, ctx.Feed(p))
	}
	require.Equal(t, engine.OK, ctx.Feed(nil))

	out := media.NewFrame()
	for i := 0; i < 3; i++ {
		require.Equal(t, engine.OK, ctx.Drain(out))
		assert.Equal(t, []byte{byte(i)}, out.Data())
		assert.True(t, out.Pts().IsEmpty())
		out.Clear()
	}
}

func TestContext_NoPtsFollowsPredecessor(t *testing.T) {
	ctx, err := New(Config{DecoderDelay: 4}).OpenDecoder(info(), nil)
	require.NoError(t, err)
	defer ctx.Close()

	feed := func(data byte, pts int64) {
		p := media.NewPacket()
		require.NoError(t, p.SetData([]byte{data}))
		p.SetTimebase(tb)
		p.SetNativeTimestamps(pts, pts)
		require.Equal(t, engine.OK, ctx.Feed(p))
		p.Clear()
	}
	feed('a', 5)
	feed('b', avtime.NoPTS)
	feed('c', 3)
	feed('d', avtime.NoPTS)
	require.Equal(t, engine.OK, ctx.Feed(nil))

	var got []byte
	out := media.NewFrame()
	for ctx.Drain(out) == engine.OK {
		got = append(got, out.Data()...)
		out.Clear()
	}
	assert.Equal(t, "cdab", string(got))
}

func TestContext_EncoderGop(t *testing.T) {
	ctx, err := New(Config{}).OpenEncoder(info(), media.Options{"gop": "3"})
	require.NoError(t, err)
	defer ctx.Close()

	var keys []bool
	for i := int64(0); i < 6; i++ {
		f := media.NewFrame()
		require.NoError(t, f.SetData([]byte{1}))
		f.SetTimebase(tb)
		f.SetNativeTimestamps(i*3000, avtime.NoPTS)
		require.Equal(t, engine.OK, ctx.Feed(f))
		f.Clear()

		pkt := media.NewPacket()
		require.Equal(t, engine.OK, ctx.Drain(pkt))
		assert.Equal(t, i*3000, pkt.Dts().Value())
		keys = append(keys, pkt.IsKey())
		pkt.Clear()
	}
	assert.Equal(t, []bool{true, false, false, true, false, false}, keys)
}

func TestContext_CloseReleasesQueue(t *testing.T) {
	before := media.LivePayloads()

	ctx, err := New(Config{DecoderDelay: 4}).OpenDecoder(info(), nil)
	require.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		p := packet(t, i, false)
		require.Equal(t, engine.OK, ctx.Feed(p))
		p.Clear()
	}
	assert.Equal(t, before+3, media.LivePayloads())

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	assert.Equal(t, before, media.LivePayloads())
	assert.Equal(t, engine.InvalidArgument, ctx.Feed(nil))
}
