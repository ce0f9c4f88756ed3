package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
)

var tb25 = avtime.MustTimebase(1, 25)

func requireDefault(t *testing.T, b *Buffer) {
	t.Helper()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.Size())
	assert.True(t, b.Timebase().IsEmpty())
	assert.Equal(t, ContentNone, b.ContentType())
	assert.True(t, b.Pts().IsEmpty())
	assert.True(t, b.Dts().IsEmpty())
	assert.Equal(t, int64(-1), b.Position())
	assert.Zero(t, b.Duration())
	assert.Nil(t, b.SideData())
}

func TestNewBuffers(t *testing.T) {
	p := NewPacket()
	assert.True(t, p.IsPacket())
	requireDefault(t, p)

	f := NewFrame()
	assert.True(t, f.IsFrame())
	requireDefault(t, f)

	pkt, err := NewPacketWithCapacity(188)
	require.NoError(t, err)
	defer pkt.Clear()
	assert.Equal(t, 188, pkt.Size())

	empty, err := NewFrameWithCapacity(0)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = NewPacketWithCapacity(-1)
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
}

func TestBuffer_ClearIdempotent(t *testing.T) {
	before := LivePayloads()

	b, err := NewPacketWithCapacity(32)
	require.NoError(t, err)
	b.SetTimebase(tb25)
	b.SetContentType(ContentVideo)
	require.NoError(t, b.SetTimestamp(avtime.Native(3, tb25)))

	b.Clear()
	requireDefault(t, b)
	b.Clear()
	requireDefault(t, b)
	assert.True(t, b.IsPacket())
	assert.Equal(t, before, LivePayloads())
}

func TestBuffer_RefToSurvivesPeerClear(t *testing.T) {
	before := LivePayloads()

	b := NewPacket()
	require.NoError(t, b.SetData([]byte("payload")))
	b.SetTimebase(tb25)
	b.SetContentType(ContentAudio)

	a := NewPacket()
	require.NoError(t, a.RefTo(b))
	assert.Same(t, b.Payload(), a.Payload())
	assert.Equal(t, int32(2), a.Payload().Refs())
	assert.True(t, a.Timebase().Equal(tb25))
	assert.Equal(t, ContentAudio, a.ContentType())

	b.Clear()
	assert.Equal(t, []byte("payload"), a.Data())
	assert.Equal(t, int32(1), a.Payload().Refs())

	a.Clear()
	assert.Equal(t, before, LivePayloads())
}

func TestBuffer_RefToReleasesPrevious(t *testing.T) {
	released := 0
	a := NewFrame()
	a.AttachPayload(NewPayload([]byte{1}, func([]byte) { released++ }))

	b := NewFrame()
	require.NoError(t, b.SetData([]byte{2}))

	require.NoError(t, a.RefTo(b))
	assert.Equal(t, 1, released)
	assert.Equal(t, []byte{2}, a.Data())

	// metadata is copied, not shared
	a.SetContentType(ContentVideo)
	assert.Equal(t, ContentNone, b.ContentType())

	a.Clear()
	b.Clear()
}

func TestBuffer_RefToSelf(t *testing.T) {
	a := NewPacket()
	require.NoError(t, a.SetData([]byte{1, 2}))
	require.NoError(t, a.RefTo(a))
	assert.Equal(t, int32(1), a.Payload().Refs())
	a.Clear()
}

func TestBuffer_KindMismatch(t *testing.T) {
	pkt := NewPacket()
	frame := NewFrame()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"ref nil", func() error { return pkt.RefTo(nil) }},
		{"ref other kind", func() error { return pkt.RefTo(frame) }},
		{"move nil", func() error { return frame.MoveTo(nil) }},
		{"move other kind", func() error { return frame.MoveTo(pkt) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, averr.ErrInvalidState))
		})
	}
}

func TestBuffer_MoveTo(t *testing.T) {
	before := LivePayloads()

	src := NewPacket()
	require.NoError(t, src.SetData([]byte("abc")))
	src.SetTimebase(tb25)
	require.NoError(t, src.SetStreamIndex(1))
	payload := src.Payload()

	dst := NewPacket()
	require.NoError(t, dst.SetData([]byte("old")))

	require.NoError(t, src.MoveTo(dst))
	assert.Same(t, payload, dst.Payload())
	assert.Equal(t, int32(1), payload.Refs())
	assert.Equal(t, 1, dst.StreamIndex())
	assert.True(t, dst.Timebase().Equal(tb25))
	requireDefault(t, src)

	dst.Clear()
	assert.Equal(t, before, LivePayloads())
}

func TestBuffer_SetData(t *testing.T) {
	b := NewPacket()

	err := b.SetData([]byte{})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	require.NoError(t, b.SetData([]byte{9}))
	assert.Equal(t, 1, b.Size())

	require.NoError(t, b.SetData(nil))
	assert.True(t, b.IsEmpty())
}

func TestBuffer_AttachSamePayload(t *testing.T) {
	b := NewPacket()
	require.NoError(t, b.SetData([]byte{1}))
	p := b.Payload().Retain()
	b.AttachPayload(p)
	assert.Equal(t, int32(1), p.Refs())
	b.Clear()
}

func TestBuffer_Timestamps(t *testing.T) {
	b := NewPacket()
	b.SetTimebase(tb25)

	require.NoError(t, b.SetTimestamp(avtime.Native(4, tb25)))
	assert.Equal(t, int64(4), b.Pts().Value())
	assert.Equal(t, int64(4), b.Dts().Value())

	err := b.SetTimestamp(avtime.Native(4, avtime.TimeBase90kHz))
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	require.NoError(t, b.SetTimestamps(avtime.Native(6, tb25), avtime.Native(5, tb25)))
	assert.Equal(t, int64(6), b.Pts().Value())
	assert.Equal(t, int64(5), b.Dts().Value())

	err = b.SetTimestamps(avtime.Native(6, tb25), avtime.Native(5, avtime.TimeBase1kHz))
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))

	err = b.SetTimestampSeconds(1)
	assert.True(t, errors.Is(err, averr.ErrInvalidState), "pts != dts")

	require.NoError(t, b.SetTimestamp(avtime.Empty))
	assert.True(t, b.Pts().IsEmpty())
	require.NoError(t, b.SetTimestampSeconds(0.5))
	assert.Equal(t, int64(13), b.Pts().Value())
	assert.Equal(t, int64(13), b.Dts().Value())
}

func TestBuffer_FrameTimestamps(t *testing.T) {
	f := NewFrame()
	f.SetTimebase(tb25)

	require.NoError(t, f.SetTimestamp(avtime.Native(2, tb25)))
	assert.Equal(t, int64(2), f.Pts().Value())
	assert.True(t, f.Dts().IsEmpty())

	err := f.SetTimestamps(avtime.Native(2, tb25), avtime.Native(2, tb25))
	assert.True(t, errors.Is(err, averr.ErrInvalidState))

	f.SetNativeTimestamps(7, 3)
	assert.Equal(t, int64(7), f.Pts().Value())
	assert.True(t, f.Dts().IsEmpty())
}

func TestBuffer_RescaleTo(t *testing.T) {
	b := NewPacket()
	b.SetTimebase(avtime.MustTimebase(1, 48000))
	b.SetNativeTimestamps(1024, avtime.NoPTS)
	require.NoError(t, b.SetDuration(1024))

	require.NoError(t, b.RescaleTo(avtime.MustTimebase(1, 32000)))
	assert.Equal(t, int64(683), b.Pts().Value())
	assert.True(t, b.Dts().IsEmpty())
	assert.Equal(t, int64(683), b.Duration())
	assert.True(t, b.Timebase().Equal(avtime.MustTimebase(1, 32000)))

	err := NewPacket().RescaleTo(tb25)
	assert.True(t, errors.Is(err, averr.ErrInvalidState))

	err = b.RescaleTo(avtime.Timebase{})
	assert.True(t, errors.Is(err, averr.ErrInvalidArgument))
}

func TestBuffer_Setters(t *testing.T) {
	b := NewPacket()

	require.NoError(t, b.SetStreamIndex(0))
	require.NoError(t, b.SetStreamIndex(3))
	assert.Equal(t, 3, b.StreamIndex())
	assert.True(t, errors.Is(b.SetStreamIndex(-1), averr.ErrInvalidArgument))

	assert.True(t, errors.Is(b.SetDuration(0), averr.ErrInvalidArgument))
	assert.True(t, errors.Is(b.SetDuration(-5), averr.ErrInvalidArgument))

	b.SetFlags(FlagKey | FlagDiscard)
	assert.True(t, b.IsKey())
	assert.True(t, b.Flags().Has(FlagDiscard))
	assert.False(t, b.Flags().Has(FlagCorrupt))

	b.SetPosition(4096)
	assert.Equal(t, int64(4096), b.Position())

	b.AddSideData(SideDataNewExtraData, []byte{0, 0, 1})
	require.Len(t, b.SideData(), 1)
	assert.Equal(t, SideDataNewExtraData, b.SideData()[0].Type)

	assert.True(t, errors.Is(b.SetFrameProps(FrameProps{Width: 1}), averr.ErrInvalidState))

	f := NewFrame()
	require.NoError(t, f.SetFrameProps(FrameProps{Width: 1920, Height: 1080, KeyFrame: true}))
	assert.Equal(t, 1920, f.FrameProps().Width)
	assert.True(t, f.IsKey())
}

func TestBuffer_LogFields(t *testing.T) {
	b := NewPacket()
	b.SetContentType(ContentVideo)
	fields := b.LogFields()
	assert.Equal(t, "video", fields["content_type"])
	assert.Equal(t, "NOPTS", fields["dts"])
	assert.Contains(t, b.String(), "packet{stream=0")
}
