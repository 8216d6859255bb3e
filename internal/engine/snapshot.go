package engine

import (
	"time"

	"github.com/cbegin/layerloop/internal/buffer"
	"github.com/cbegin/layerloop/internal/channel"
)

// ChannelSnapshot is a copy of one slot's control state.
type ChannelSnapshot struct {
	Index          int
	State          channel.State
	Muted          bool
	Establishing   bool
	PendingClear   bool
	RecordedLength int
}

// Snapshot is a point-in-time copy of everything a display needs.
type Snapshot struct {
	Channels     []ChannelSnapshot
	Window       []int // oldest first
	WindowLimit  int
	Position     int
	MasterLength int
	SampleRate   int
	BlockSize    int
	Blocks       uint64
	Faults       uint64
}

// Established reports whether a master length exists.
func (s Snapshot) Established() bool { return s.MasterLength > 0 }

// LoopDuration is the master length as wall-clock time.
func (s Snapshot) LoopDuration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.MasterLength) * time.Second / time.Duration(s.SampleRate)
}

// Progress is the position within the loop in [0, 1).
func (s Snapshot) Progress() float64 {
	if s.MasterLength <= 0 {
		return 0
	}
	return float64(s.Position) / float64(s.MasterLength)
}

// Snapshot copies the engine's control state. It is meant for the control
// side and allocates.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		Channels:     make([]ChannelSnapshot, len(e.channels)),
		Window:       e.window.AppendTo(make([]int, 0, e.window.Limit())),
		WindowLimit:  e.window.Limit(),
		Position:     e.transport.Position(),
		MasterLength: e.transport.MasterLength(),
		SampleRate:   e.cfg.SampleRate,
		BlockSize:    e.cfg.BlockSize,
		Blocks:       e.blocks.Load(),
		Faults:       e.faults.Load(),
	}
	for i, c := range e.channels {
		s.Channels[i] = ChannelSnapshot{
			Index:          i,
			State:          c.State(),
			Muted:          c.Muted(),
			Establishing:   c.Establishing(),
			PendingClear:   c.PendingClear(),
			RecordedLength: c.RecordedLength(),
		}
	}
	return s
}

// Layer copies the content of slot's buffer over the master length. The
// copy is taken one block at a time so Process keeps running; if the slot
// is retired, re-recorded or the engine is reset meanwhile, Layer fails
// with ErrCopyInterrupted. A slot being overdubbed is copied as it stood
// when each block was read.
func (e *Engine) Layer(slot int) ([]buffer.Frame, error) {
	const op = "read layer"
	e.mu.Lock()
	if err := e.checkSlot(op, slot); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !e.transport.Established() {
		err := e.reject(op, slot, ErrNotEstablished)
		e.mu.Unlock()
		return nil, err
	}
	c := e.channels[slot]
	length, gen, epoch, pending := c.Buffer().Len(), c.Generation(), e.epoch, c.PendingClear()
	e.mu.Unlock()

	out := make([]buffer.Frame, length)
	if pending {
		return out, nil
	}
	err := e.chunked(length, func(off, end int) error {
		if e.epoch != epoch || c.Generation() != gen {
			return e.reject(op, slot, ErrCopyInterrupted)
		}
		c.Buffer().CopyRangeTo(out[off:end], off)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type layerRef struct {
	slot int
	gen  uint64
}

// Mix renders one master-length pass of the window as it stood when Mix
// was called, honouring mute, without moving the transport. Like Layer it
// works a block at a time and fails with ErrCopyInterrupted if one of those
// layers leaves the window before it is done.
func (e *Engine) Mix() ([]buffer.Frame, error) {
	const op = "mix"
	e.mu.Lock()
	if !e.transport.Established() {
		err := e.reject(op, -1, ErrNotEstablished)
		e.mu.Unlock()
		return nil, err
	}
	length, epoch := e.transport.MasterLength(), e.epoch
	refs := make([]layerRef, e.window.Len())
	for i := range refs {
		idx := e.window.At(i)
		refs[i] = layerRef{slot: idx, gen: e.channels[idx].Generation()}
	}
	e.mu.Unlock()

	out := make([]buffer.Frame, length)
	err := e.chunked(length, func(off, end int) error {
		if e.epoch != epoch {
			return e.reject(op, -1, ErrCopyInterrupted)
		}
		for _, ref := range refs {
			c := e.channels[ref.slot]
			if c.Generation() != ref.gen {
				return e.reject(op, ref.slot, ErrCopyInterrupted)
			}
			for pos := off; pos < end; pos++ {
				f, err := c.Read(pos)
				if err != nil {
					break
				}
				out[pos].L += f.L
				out[pos].R += f.R
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].L = clip(out[i].L)
		out[i].R = clip(out[i].R)
	}
	return out, nil
}

// chunked calls fn for consecutive block-sized ranges of [0, length), each
// under the engine lock.
func (e *Engine) chunked(length int, fn func(off, end int) error) error {
	for off := 0; off < length; off += e.cfg.BlockSize {
		end := min(off+e.cfg.BlockSize, length)
		e.mu.Lock()
		err := fn(off, end)
		e.mu.Unlock()
		if err != nil {
			return err
		}
		if e.afterChunk != nil {
			e.afterChunk(off)
		}
	}
	return nil
}
