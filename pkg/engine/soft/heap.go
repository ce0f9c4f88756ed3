package soft

import (
	"github.com/zsiec/avwrap/pkg/media"
)

// unit is one queued input awaiting output.
type unit struct {
	payload  *media.Payload
	pts      int64
	duration int64
	flags    media.Flags
	seq      uint64
	sideData []media.SideData

	// key orders the unit: its pts, or the key of the unit fed before it
	// when it has none.
	key int64
}

// unitHeap orders queued units by key, then arrival.
type unitHeap []*unit

func (h unitHeap) Len() int { return len(h) }

func (h unitHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

func (h unitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *unitHeap) Push(x interface{}) {
	*h = append(*h, x.(*unit))
}

func (h *unitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	u := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return u
}
