// Package shmring implements a single-producer single-consumer byte
// ring. Calls never block: each moves as many bytes as currently fit
// and reports the count. The Readable and Writable channels carry
// coalesced edge signals (empty to non-empty, full to non-full) so a
// parked peer can wake without polling.
package shmring

import "sync/atomic"

// Ring is a power-of-two sized SPSC byte queue. Exactly one goroutine
// may call TryWriteFrom and exactly one may call TryReadInto.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	readable chan struct{} // 0->>0 available edge
	writable chan struct{} // 0->>0 space edge
}

// New returns a ring holding size bytes. size must be a power of two
// and at least 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Space reports how many bytes a write could currently accept.
func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

// Available reports the number of buffered bytes.
func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// TryWriteFrom copies as much of src as fits and returns the count.
// Zero means the ring is full (or src is empty).
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	beforeAvail := wr - rd
	space := int(r.size() - beforeAvail)
	if space <= 0 {
		return 0
	}
	if len(src) < space {
		space = len(src)
	}
	n = space

	size := r.size()
	wrIdx := wr & r.mask
	first := int(size - wrIdx)
	if first > n {
		first = n
	}
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	if beforeAvail == 0 {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return n
}

// TryReadInto copies up to len(dst) buffered bytes into dst and
// returns the count. Zero means the ring is empty (or dst is empty).
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	if len(dst) < avail {
		avail = len(dst)
	}
	n = avail

	size := r.size()
	rdIdx := rd & r.mask
	first := int(size - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release

	beforeSpace := int(size - (wr - rd))
	if beforeSpace == 0 {
		select {
		case r.writable <- struct{}{}:
		default:
		}
	}
	return n
}

// Watermarks returns the monotonic consumer and producer counters,
// i.e. total bytes read and written since creation.
func (r *Ring) Watermarks() (rd, wr uint32) {
	return r.rd.Load(), r.wr.Load()
}

// Readable signals the empty to non-empty transition. At most one
// token is pending at a time; drain the ring after each receive.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Writable signals the full to non-full transition.
func (r *Ring) Writable() <-chan struct{} { return r.writable }
