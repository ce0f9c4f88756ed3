package media

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/zsiec/avwrap/pkg/averr"
)

// Size classes served from the payload pool: 1KiB .. 4MiB, powers of two.
const (
	minPoolShift = 10
	maxPoolShift = 22
)

var (
	livePayloads  atomic.Int64
	totalPayloads atomic.Int64
	pools         [maxPoolShift - minPoolShift + 1]sync.Pool
)

// Payload is reference-counted byte storage shared by one or more buffers.
// The storage is released exactly once, when the last reference is dropped:
// pooled storage goes back to its size class, foreign storage is handed to
// the release hook supplied by whoever allocated it (usually an engine).
type Payload struct {
	data    []byte
	refs    atomic.Int32
	release func([]byte)
	class   int // pool size class, -1 when not pooled
}

// NewPayload wraps data with a reference count of one. release, if not nil,
// is called with data once the last reference is dropped.
func NewPayload(data []byte, release func([]byte)) *Payload {
	p := &Payload{data: data, release: release, class: -1}
	p.refs.Store(1)
	livePayloads.Add(1)
	totalPayloads.Add(1)
	return p
}

// AllocPayload returns a zeroed payload of size bytes with a reference count
// of one, drawing storage from the size-class pool when possible.
func AllocPayload(size int) (*Payload, error) {
	if size < 0 {
		return nil, averr.InvalidArgument("payload.alloc", "size cannot be negative, got %d", size)
	}

	class := sizeClass(size)
	if class < 0 {
		return NewPayload(make([]byte, size), nil), nil
	}

	var buf []byte
	if v := pools[class].Get(); v != nil {
		buf = (*v.(*[]byte))[:size]
		clear(buf)
	} else {
		buf = make([]byte, size, 1<<(class+minPoolShift))
	}

	p := NewPayload(buf, nil)
	p.class = class
	return p, nil
}

func sizeClass(size int) int {
	if size == 0 || size > 1<<maxPoolShift {
		return -1
	}
	shift := bits.Len(uint(size - 1))
	if shift < minPoolShift {
		shift = minPoolShift
	}
	return shift - minPoolShift
}

// Bytes returns the underlying storage. It must not be retained past the
// caller's reference.
func (p *Payload) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.data
}

// Len returns the payload size in bytes.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.data)
}

// Refs returns the current reference count.
func (p *Payload) Refs() int32 {
	if p == nil {
		return 0
	}
	return p.refs.Load()
}

// Retain adds a reference and returns p.
func (p *Payload) Retain() *Payload {
	if p.refs.Add(1) <= 1 {
		panic("media: retain of released payload")
	}
	return p
}

// Release drops a reference, freeing the storage when it was the last one.
func (p *Payload) Release() {
	n := p.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("media: payload released more times than retained")
	}

	data := p.data
	p.data = nil
	livePayloads.Add(-1)

	if p.release != nil {
		p.release(data)
		return
	}
	if p.class >= 0 {
		data = data[:cap(data)]
		pools[p.class].Put(&data)
	}
}

// LivePayloads returns the number of payloads that have been allocated and
// not yet released. A steady-state pipeline keeps it bounded; growth is a leak.
func LivePayloads() int64 {
	return livePayloads.Load()
}

// TotalPayloads returns the number of payloads allocated since start.
func TotalPayloads() int64 {
	return totalPayloads.Load()
}
