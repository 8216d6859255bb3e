package audio

import "sync/atomic"

// Ring carries interleaved samples from a capture callback to a playback
// callback running on another thread. It is safe for exactly one writer and
// one reader; neither side blocks or allocates.
//
// The reader outputs silence until prefill samples are queued, so the two
// clocks start with a fixed cushion between them. An underrun re-arms the
// prefill.
type Ring struct {
	buf     []float32
	mask    uint64
	prefill uint64

	w atomic.Uint64
	r atomic.Uint64

	primed    atomic.Bool
	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// NewRing allocates a ring of at least size samples (rounded up to a power
// of two) that starts playback once prefill samples are queued.
func NewRing(size, prefill int) *Ring {
	n := 1
	for n < size || n < 2 {
		n <<= 1
	}
	if prefill < 0 {
		prefill = 0
	}
	if prefill > n {
		prefill = n
	}
	return &Ring{
		buf:     make([]float32, n),
		mask:    uint64(n - 1),
		prefill: uint64(prefill),
	}
}

func (r *Ring) Cap() int { return len(r.buf) }

// Buffered returns the number of samples waiting to be read.
func (r *Ring) Buffered() int { return int(r.w.Load() - r.r.Load()) }

func (r *Ring) Overruns() uint64  { return r.overruns.Load() }
func (r *Ring) Underruns() uint64 { return r.underruns.Load() }

// Write queues src, dropping whatever does not fit. It returns the number of
// samples queued.
func (r *Ring) Write(src []float32) int {
	w := r.w.Load()
	free := uint64(len(r.buf)) - (w - r.r.Load())
	n := uint64(len(src))
	if n > free {
		r.overruns.Add(1)
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(w+i)&r.mask] = src[i]
	}
	r.w.Store(w + n)
	return int(n)
}

// Read fills dst, padding with silence when the ring is not primed or runs
// dry. It implements InputSource.
func (r *Ring) Read(dst []float32) {
	rd := r.r.Load()
	avail := r.w.Load() - rd
	if !r.primed.Load() {
		if avail < r.prefill || avail == 0 {
			clear(dst)
			return
		}
		r.primed.Store(true)
	}
	n := uint64(len(dst))
	if n > avail {
		r.underruns.Add(1)
		r.primed.Store(false)
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(rd+i)&r.mask]
	}
	clear(dst[n:])
	r.r.Store(rd + n)
}
