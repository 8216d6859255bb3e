package buffer

import "errors"

// ErrOutOfRange is returned when an offset falls outside the active length.
var ErrOutOfRange = errors.New("buffer: offset out of range")

// Frame is one stereo sample pair. The zero Frame is silence.
type Frame struct {
	L, R float32
}

// Add returns f+o with each sample clamped to [-1, 1].
func (f Frame) Add(o Frame) Frame {
	return Frame{L: clamp(f.L + o.L), R: clamp(f.R + o.R)}
}

// Scale multiplies both samples by gain.
func (f Frame) Scale(gain float32) Frame {
	return Frame{L: f.L * gain, R: f.R * gain}
}

// Buffer holds one loop layer. The backing store is allocated once by New;
// Resize only changes how much of it is addressable.
type Buffer struct {
	store []Frame
	n     int
	high  int // frames below high may be non-silent
}

// New allocates a buffer that can hold up to capacity frames. The active
// length starts at capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{store: make([]Frame, capacity), n: capacity}
}

// Len is the active length in frames.
func (b *Buffer) Len() int { return b.n }

// Cap is the size of the backing store in frames.
func (b *Buffer) Cap() int { return len(b.store) }

// Resize sets the active length, clamped to [0, Cap()]. Content is kept.
func (b *Buffer) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.store) {
		n = len(b.store)
	}
	b.n = n
}

// WriteAt overwrites the frame at offset.
func (b *Buffer) WriteAt(offset int, f Frame) error {
	if offset < 0 || offset >= b.n {
		return ErrOutOfRange
	}
	b.store[offset] = f
	if offset >= b.high {
		b.high = offset + 1
	}
	return nil
}

// AccumulateAt adds f to the frame at offset, saturating at ±1.
func (b *Buffer) AccumulateAt(offset int, f Frame) error {
	if offset < 0 || offset >= b.n {
		return ErrOutOfRange
	}
	b.store[offset] = b.store[offset].Add(f)
	if offset >= b.high {
		b.high = offset + 1
	}
	return nil
}

// ReadAt returns the frame at offset. Offsets never written read as silence.
func (b *Buffer) ReadAt(offset int) (Frame, error) {
	if offset < 0 || offset >= b.n {
		return Frame{}, ErrOutOfRange
	}
	return b.store[offset], nil
}

// Clear zeroes every frame that has been written since the last Clear,
// including frames beyond the current active length.
func (b *Buffer) Clear() {
	clear(b.store[:b.high])
	b.high = 0
}

// CopyTo copies the active frames into dst and returns the count copied.
func (b *Buffer) CopyTo(dst []Frame) int {
	return copy(dst, b.store[:b.n])
}

// CopyRangeTo copies active frames starting at offset into dst and returns
// the count copied.
func (b *Buffer) CopyRangeTo(dst []Frame, offset int) int {
	if offset < 0 || offset >= b.n {
		return 0
	}
	return copy(dst, b.store[offset:b.n])
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
