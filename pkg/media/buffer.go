// Package media holds the reference-counted packet and frame buffers that
// flow between pipeline stages, and the stream description records produced
// by sources and consumed by sinks.
package media

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/avwrap/pkg/averr"
	"github.com/zsiec/avwrap/pkg/avtime"
)

// Buffer is either an encoded packet or a raw frame. The kind is fixed at
// construction and a buffer only exchanges payloads with buffers of the same
// kind.
//
// A Buffer owns at most one reference to its payload. RefTo, MoveTo and Clear
// are the only operations that move references between buffers.
type Buffer struct {
	kind    Kind
	payload *Payload

	pts      avtime.Timestamp
	dts      avtime.Timestamp
	timebase avtime.Timebase

	streamIndex int
	contentType ContentType
	duration    int64
	flags       Flags
	position    int64
	sideData    []SideData
	props       FrameProps
}

// NewPacket creates an empty packet with no payload.
func NewPacket() *Buffer {
	b := &Buffer{kind: KindPacket}
	b.reset()
	return b
}

// NewFrame creates an empty frame with no payload.
func NewFrame() *Buffer {
	b := &Buffer{kind: KindFrame}
	b.reset()
	return b
}

// NewPacketWithCapacity creates a packet with a zeroed payload of size bytes.
func NewPacketWithCapacity(size int) (*Buffer, error) {
	return newWithCapacity(KindPacket, size)
}

// NewFrameWithCapacity creates a frame with a zeroed payload of size bytes.
func NewFrameWithCapacity(size int) (*Buffer, error) {
	return newWithCapacity(KindFrame, size)
}

func newWithCapacity(kind Kind, size int) (*Buffer, error) {
	if size < 0 {
		return nil, averr.InvalidArgument("buffer.create", "size cannot be negative, got %d", size)
	}
	b := &Buffer{kind: kind}
	b.reset()
	if size == 0 {
		return b, nil
	}
	p, err := AllocPayload(size)
	if err != nil {
		return nil, err
	}
	b.payload = p
	return b, nil
}

func (b *Buffer) reset() {
	b.payload = nil
	b.pts = avtime.Empty
	b.dts = avtime.Empty
	b.timebase = avtime.Timebase{}
	b.streamIndex = 0
	b.contentType = ContentNone
	b.duration = 0
	b.flags = 0
	b.position = -1
	b.sideData = nil
	b.props = FrameProps{}
}

func (b *Buffer) releasePayload() {
	if b.payload != nil {
		b.payload.Release()
		b.payload = nil
	}
}

// copyMeta copies everything but the payload.
func (b *Buffer) copyMeta(other *Buffer) {
	b.pts = other.pts
	b.dts = other.dts
	b.timebase = other.timebase
	b.streamIndex = other.streamIndex
	b.contentType = other.contentType
	b.duration = other.duration
	b.flags = other.flags
	b.position = other.position
	b.props = other.props
	b.sideData = nil
	if len(other.sideData) > 0 {
		b.sideData = append([]SideData(nil), other.sideData...)
	}
}

func (b *Buffer) checkPeer(op string, other *Buffer) error {
	if other == nil {
		return averr.InvalidState(op, "peer buffer is nil")
	}
	if other.kind != b.kind {
		return averr.InvalidState(op, "cannot exchange %s with %s", b.kind, other.kind)
	}
	return nil
}

// RefTo makes b a second owner of other's payload and copies other's metadata.
// Any payload b held before is released first.
func (b *Buffer) RefTo(other *Buffer) error {
	if err := b.checkPeer("buffer.ref", other); err != nil {
		return err
	}
	if other == b {
		return nil
	}

	var p *Payload
	if other.payload != nil {
		p = other.payload.Retain()
	}
	b.releasePayload()
	b.payload = p
	b.copyMeta(other)
	return nil
}

// MoveTo transfers b's payload reference and metadata to dst. b is left empty.
func (b *Buffer) MoveTo(dst *Buffer) error {
	if err := b.checkPeer("buffer.move", dst); err != nil {
		return err
	}
	if dst == b {
		return nil
	}

	dst.releasePayload()
	dst.payload = b.payload
	dst.copyMeta(b)

	b.payload = nil
	b.reset()
	return nil
}

// Clear releases the payload reference and resets all metadata. Clearing an
// empty buffer is a no-op.
func (b *Buffer) Clear() {
	b.releasePayload()
	b.reset()
}

// Kind returns the buffer kind.
func (b *Buffer) Kind() Kind { return b.kind }

// IsPacket reports whether b holds encoded data.
func (b *Buffer) IsPacket() bool { return b.kind == KindPacket }

// IsFrame reports whether b holds raw data.
func (b *Buffer) IsFrame() bool { return b.kind == KindFrame }

// Payload returns the shared storage, nil when empty.
func (b *Buffer) Payload() *Payload { return b.payload }

// Data returns the payload bytes.
func (b *Buffer) Data() []byte { return b.payload.Bytes() }

// Size returns the payload size in bytes.
func (b *Buffer) Size() int { return b.payload.Len() }

// IsEmpty reports whether the buffer holds no payload.
func (b *Buffer) IsEmpty() bool { return b.payload == nil }

// SetData replaces the payload with a fresh one owning data. A nil slice
// drops the payload; a non-nil empty slice is rejected as ambiguous.
func (b *Buffer) SetData(data []byte) error {
	if data != nil && len(data) == 0 {
		return averr.InvalidArgument("buffer.set_data", "empty non-nil data")
	}
	b.releasePayload()
	if data != nil {
		b.payload = NewPayload(data, nil)
	}
	return nil
}

// AttachPayload hands the caller's reference to p over to b, releasing the
// payload b held before.
func (b *Buffer) AttachPayload(p *Payload) {
	if p == b.payload {
		if p != nil {
			// b already owns one reference; drop the caller's.
			p.Release()
		}
		return
	}
	b.releasePayload()
	b.payload = p
}

// Pts returns the presentation timestamp.
func (b *Buffer) Pts() avtime.Timestamp { return b.pts }

// Dts returns the decoding timestamp. Frames always report an empty dts.
func (b *Buffer) Dts() avtime.Timestamp {
	if b.kind == KindFrame {
		return avtime.Empty
	}
	return b.dts
}

// Timebase returns the timebase of all timestamps and the duration.
func (b *Buffer) Timebase() avtime.Timebase { return b.timebase }

// SetTimebase assigns the timebase. Tick values are kept as-is and
// reinterpreted in tb; use RescaleTo to convert them.
func (b *Buffer) SetTimebase(tb avtime.Timebase) {
	b.timebase = tb
	b.pts = avtime.Native(b.pts.Value(), tb)
	b.dts = avtime.Native(b.dts.Value(), tb)
}

func (b *Buffer) checkTimestamp(op string, ts avtime.Timestamp) error {
	if ts.IsEmpty() {
		return nil
	}
	if !ts.Timebase().Equal(b.timebase) {
		return averr.InvalidArgument(op, "timestamp timebase %s does not match buffer timebase %s",
			ts.Timebase(), b.timebase)
	}
	return nil
}

// SetTimestamp sets pts, and dts to the same value for packets.
func (b *Buffer) SetTimestamp(ts avtime.Timestamp) error {
	if err := b.checkTimestamp("buffer.set_timestamp", ts); err != nil {
		return err
	}
	b.pts = avtime.Native(ts.Value(), b.timebase)
	if b.kind == KindPacket {
		b.dts = b.pts
	}
	return nil
}

// SetTimestamps sets pts and dts of a packet. Both must be expressed in the
// buffer timebase.
func (b *Buffer) SetTimestamps(pts, dts avtime.Timestamp) error {
	const op = "buffer.set_timestamps"
	if b.kind != KindPacket {
		return averr.InvalidState(op, "frames carry no decoding timestamp")
	}
	if !pts.IsEmpty() && !dts.IsEmpty() && !pts.Timebase().Equal(dts.Timebase()) {
		return averr.InvalidArgument(op, "pts timebase %s differs from dts timebase %s",
			pts.Timebase(), dts.Timebase())
	}
	if err := b.checkTimestamp(op, pts); err != nil {
		return err
	}
	if err := b.checkTimestamp(op, dts); err != nil {
		return err
	}
	b.pts = avtime.Native(pts.Value(), b.timebase)
	b.dts = avtime.Native(dts.Value(), b.timebase)
	return nil
}

// SetTimestampSeconds sets pts (and dts for packets) from seconds. A packet
// whose pts and dts differ is rejected since one value cannot describe both.
func (b *Buffer) SetTimestampSeconds(seconds float64) error {
	const op = "buffer.set_timestamp_seconds"
	if b.kind == KindPacket && b.pts.Value() != b.dts.Value() {
		return averr.InvalidState(op, "pts %d and dts %d differ", b.pts.Value(), b.dts.Value())
	}
	ts := avtime.Native(0, b.timebase)
	if err := ts.SetSeconds(seconds); err != nil {
		return err
	}
	return b.SetTimestamp(ts)
}

// SetNativeTimestamps sets raw engine ticks in the buffer timebase without
// validation. Engines may report negative dts near stream start, and NoPTS
// for unknown values.
func (b *Buffer) SetNativeTimestamps(pts, dts int64) {
	b.pts = avtime.Native(pts, b.timebase)
	if b.kind == KindPacket {
		b.dts = avtime.Native(dts, b.timebase)
	}
}

// RescaleTo converts pts, dts and duration into tb and makes tb the buffer
// timebase.
func (b *Buffer) RescaleTo(tb avtime.Timebase) error {
	const op = "buffer.rescale"
	if tb.IsEmpty() {
		return averr.InvalidArgument(op, "target timebase is empty")
	}
	if b.timebase.IsEmpty() {
		return averr.InvalidState(op, "buffer has no timebase")
	}
	if b.timebase.Equal(tb) {
		return nil
	}

	pts, err := b.pts.ToTimebase(tb)
	if err != nil {
		return err
	}
	dts, err := b.dts.ToTimebase(tb)
	if err != nil {
		return err
	}
	var duration int64
	if b.duration > 0 {
		duration, err = avtime.Rescale(b.duration, b.timebase, tb)
		if err != nil {
			return err
		}
	}

	b.timebase = tb
	b.pts = pts
	b.dts = dts
	b.duration = duration
	return nil
}

// StreamIndex returns the index of the owning stream.
func (b *Buffer) StreamIndex() int { return b.streamIndex }

// SetStreamIndex sets the owning stream. Index 0 is the first stream.
func (b *Buffer) SetStreamIndex(i int) error {
	if i < 0 {
		return averr.InvalidArgument("buffer.set_stream_index", "stream index cannot be negative, got %d", i)
	}
	b.streamIndex = i
	return nil
}

// ContentType returns the media type.
func (b *Buffer) ContentType() ContentType { return b.contentType }

// SetContentType sets the media type.
func (b *Buffer) SetContentType(c ContentType) { b.contentType = c }

// Duration returns the duration in ticks of the buffer timebase, 0 if unknown.
func (b *Buffer) Duration() int64 { return b.duration }

// SetDuration sets the duration in ticks. It must be positive.
func (b *Buffer) SetDuration(d int64) error {
	if d <= 0 {
		return averr.InvalidArgument("buffer.set_duration", "duration must be positive, got %d", d)
	}
	b.duration = d
	return nil
}

// Flags returns the flag bits.
func (b *Buffer) Flags() Flags { return b.flags }

// SetFlags replaces the flag bits.
func (b *Buffer) SetFlags(f Flags) { b.flags = f }

// IsKey reports whether the buffer is a key packet or key frame.
func (b *Buffer) IsKey() bool {
	if b.kind == KindFrame {
		return b.props.KeyFrame || b.flags.Has(FlagKey)
	}
	return b.flags.Has(FlagKey)
}

// Position returns the byte offset in the input, -1 when unknown.
func (b *Buffer) Position() int64 { return b.position }

// SetPosition sets the byte offset in the input.
func (b *Buffer) SetPosition(pos int64) { b.position = pos }

// SideData returns the attached side data.
func (b *Buffer) SideData() []SideData { return b.sideData }

// AddSideData attaches a blob. data is owned by the buffer afterwards.
func (b *Buffer) AddSideData(t SideDataType, data []byte) {
	b.sideData = append(b.sideData, SideData{Type: t, Data: data})
}

// FrameProps returns the raw content description. Packets report zero props.
func (b *Buffer) FrameProps() FrameProps { return b.props }

// SetFrameProps sets the raw content description of a frame.
func (b *Buffer) SetFrameProps(p FrameProps) error {
	if b.kind != KindFrame {
		return averr.InvalidState("buffer.set_frame_props", "packets carry no frame properties")
	}
	b.props = p
	return nil
}

// LogFields returns the buffer's identifying fields for structured logging.
func (b *Buffer) LogFields() logrus.Fields {
	fields := logrus.Fields{
		"kind":         b.kind.String(),
		"stream_index": b.streamIndex,
		"content_type": b.contentType.String(),
		"pts":          b.pts.String(),
		"size":         b.Size(),
	}
	if b.kind == KindPacket {
		fields["dts"] = b.dts.String()
	}
	return fields
}

func (b *Buffer) String() string {
	return fmt.Sprintf("%s{stream=%d type=%s pts=%s size=%d}",
		b.kind, b.streamIndex, b.contentType, b.pts, b.Size())
}
