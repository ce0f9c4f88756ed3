package avcodec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
	"github.com/zsiec/avwrap/pkg/engine"
	"github.com/zsiec/avwrap/pkg/engine/soft"
	"github.com/zsiec/avwrap/pkg/media"
)

func audioInfo() media.StreamInfo {
	return media.StreamInfo{
		Index:     1,
		Type:      media.ContentAudio,
		CodecName: "opus",
		Timebase:  avtime.TimeBase48kHz,
		Audio:     &media.AudioInfo{SampleRate: 48000, Channels: 2, FrameSize: 960},
	}
}

func frameAt(t *testing.T, pts int64, tb avtime.Timebase) *media.Buffer {
	t.Helper()
	f := media.NewFrame()
	require.NoError(t, f.SetData(make([]byte, 16)))
	f.SetTimebase(tb)
	require.NoError(t, f.SetTimestamp(avtime.Native(pts, tb)))
	return f
}

func TestEncoder_EncodeAndFlush(t *testing.T) {
	enc, err := NewEncoder(soft.New(soft.Config{}), audioInfo(),
		WithOptions(media.Options{"delay": "1", "gop": "2"}))
	require.NoError(t, err)
	defer enc.Close()

	pkt := media.NewPacket()
	require.NoError(t, pkt.SetData([]byte("stale")))

	res, err := enc.Encode(frameAt(t, 0, avtime.TimeBase48kHz), pkt)
	require.NoError(t, err)
	assert.True(t, res.Retry())
	assert.True(t, pkt.IsEmpty(), "non-OK result clears the output packet")
	assert.True(t, pkt.Timebase().IsEmpty())

	res, err = enc.Encode(frameAt(t, 960, avtime.TimeBase48kHz), pkt)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, int64(0), pkt.Pts().Value())
	assert.Equal(t, int64(0), pkt.Dts().Value())
	assert.True(t, pkt.IsKey())
	assert.Equal(t, 1, pkt.StreamIndex())
	assert.Equal(t, media.ContentAudio, pkt.ContentType())
	assert.True(t, pkt.Timebase().Equal(avtime.TimeBase48kHz))

	flushed, res, err := enc.Flush(nil)
	require.NoError(t, err)
	assert.True(t, res.EndOfStream())
	require.Len(t, flushed, 1)
	assert.Equal(t, int64(960), flushed[0].Pts().Value())
	assert.False(t, flushed[0].IsKey())
	assert.True(t, flushed[0].IsPacket())

	res, err = enc.Encode(frameAt(t, 1920, avtime.TimeBase48kHz), pkt)
	require.NoError(t, err)
	assert.True(t, res.EndOfStream())
	assert.True(t, pkt.IsEmpty())
}

func TestEncoder_RejectsForeignTimebase(t *testing.T) {
	enc, err := NewEncoder(soft.New(soft.Config{}), audioInfo())
	require.NoError(t, err)
	defer enc.Close()

	frame := frameAt(t, 1, avtime.MustTimebase(1, 44100))
	pkt := media.NewPacket()
	_, err = enc.Encode(frame, pkt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
	assert.Equal(t, StateIdle, enc.State())

	require.NoError(t, frame.RescaleTo(enc.Timebase()))
	res, err := enc.Encode(frame, pkt)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int64(1), pkt.Pts().Value())
}

func TestEncoder_FatalClearsPacket(t *testing.T) {
	ctx := &scriptedContext{
		tb:     avtime.TimeBase48kHz,
		drains: []engine.Code{engine.OK, engine.NoMemory},
	}
	enc, err := NewEncoder(&scriptedEngine{ctx: ctx}, audioInfo())
	require.NoError(t, err)

	pkt := media.NewPacket()
	res, err := enc.Encode(frameAt(t, 0, avtime.TimeBase48kHz), pkt)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.False(t, pkt.IsEmpty())

	res, err = enc.Encode(frameAt(t, 960, avtime.TimeBase48kHz), pkt)
	require.NoError(t, err)
	assert.Equal(t, engine.Fatal(engine.NoMemory), res)
	assert.True(t, pkt.IsEmpty())
	assert.True(t, pkt.Pts().IsEmpty())
}

func TestEncoder_FlushFatal(t *testing.T) {
	ctx := &scriptedContext{
		tb:     avtime.TimeBase48kHz,
		drains: []engine.Code{engine.OK, engine.IOError},
	}
	enc, err := NewEncoder(&scriptedEngine{ctx: ctx}, audioInfo())
	require.NoError(t, err)

	out, res, err := enc.Flush(nil)
	require.NoError(t, err)
	assert.True(t, res.Fatal())
	assert.Len(t, out, 1, "output drained before the failure is kept")
	assert.Nil(t, ctx.fed[0], "flush feeds a nil buffer")
}

func TestEncoder_Misuse(t *testing.T) {
	enc, err := NewEncoder(soft.New(soft.Config{}), audioInfo())
	require.NoError(t, err)

	_, err = enc.Encode(media.NewPacket(), media.NewPacket())
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
	_, err = enc.Encode(media.NewFrame(), media.NewFrame())
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	require.NoError(t, enc.Close())
	_, err = enc.Encode(media.NewFrame(), media.NewPacket())
	assert.True(t, errors.Is(err, averr.ErrInvalidState))
}

func TestEncoder_Parameters(t *testing.T) {
	ctx := &scriptedContext{tb: avtime.TimeBase48kHz}
	enc, err := NewEncoder(&scriptedEngine{ctx: ctx}, audioInfo())
	require.NoError(t, err)

	p := enc.Parameters()
	assert.Equal(t, "test", p.CodecName)
	assert.True(t, p.Timebase.Equal(avtime.TimeBase48kHz))
}
