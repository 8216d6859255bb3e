package channel

import (
	"errors"

	"github.com/cbegin/layerloop/internal/buffer"
)

// ErrInvalidTransition is returned when a command does not apply to the
// channel's current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is a channel's position in the loop lifecycle. Mute is a flag on
// top of the live states, not a state of its own.
type State uint8

const (
	Empty State = iota
	Recording
	Playing
	Overdubbing
	Retired
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	case Overdubbing:
		return "overdubbing"
	case Retired:
		return "retired"
	default:
		return "unknown"
	}
}

// Live reports whether the state belongs to a committed layer.
func (s State) Live() bool { return s == Playing || s == Overdubbing }

// Captures reports whether input is written into the buffer in this state.
func (s State) Captures() bool { return s == Recording || s == Overdubbing }

// Free reports whether the slot can take a new recording.
func (s State) Free() bool { return s == Empty || s == Retired }

// Channel is one loop slot. It is not safe for concurrent use; the engine
// serialises access.
type Channel struct {
	index        int
	state        State
	muted        bool
	establishing bool
	needsClear   bool
	recorded     int
	gen          uint64
	buf          *buffer.Buffer
}

// New allocates a slot whose buffer can hold up to capacity frames.
func New(index, capacity int) *Channel {
	return &Channel{index: index, buf: buffer.New(capacity)}
}

func (c *Channel) Index() int { return c.index }
func (c *Channel) State() State { return c.state }
func (c *Channel) Muted() bool { return c.muted }
func (c *Channel) Establishing() bool { return c.establishing }
func (c *Channel) RecordedLength() int { return c.recorded }
func (c *Channel) Buffer() *buffer.Buffer { return c.buf }
func (c *Channel) PendingClear() bool { return c.needsClear }

// Generation changes whenever the buffer stops holding the same take: on
// every new recording and every retire.
func (c *Channel) Generation() uint64 { return c.gen }

// Gain is the playback gain: 0 when muted, 1 otherwise.
func (c *Channel) Gain() float32 {
	if c.muted {
		return 0
	}
	return 1
}

// StartRecording moves a free slot to Recording. A Retired slot keeps its
// pending clear, which Settle performs before the first write.
func (c *Channel) StartRecording(establishing bool) error {
	if !c.state.Free() {
		return ErrInvalidTransition
	}
	c.state = Recording
	c.gen++
	c.establishing = establishing
	c.recorded = 0
	c.muted = false
	return nil
}

// Commit closes a recording into a playing layer.
func (c *Channel) Commit() error {
	if c.state != Recording {
		return ErrInvalidTransition
	}
	c.state = Playing
	c.establishing = false
	return nil
}

// StartOverdub layers new input onto a playing channel. Already overdubbing
// is a no-op.
func (c *Channel) StartOverdub() error {
	switch c.state {
	case Playing:
		c.state = Overdubbing
		return nil
	case Overdubbing:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// StopOverdub returns to Playing. Already playing is a no-op.
func (c *Channel) StopOverdub() error {
	switch c.state {
	case Overdubbing:
		c.state = Playing
		return nil
	case Playing:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// SetMuted changes the playback gain flag of a recording or live channel.
func (c *Channel) SetMuted(muted bool) error {
	switch c.state {
	case Recording, Playing, Overdubbing:
		c.muted = muted
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Retire marks the slot for clearing. Empty slots are left alone.
func (c *Channel) Retire() {
	if c.state == Empty {
		return
	}
	c.state = Retired
	c.gen++
	c.muted = false
	c.establishing = false
	c.recorded = 0
	c.needsClear = true
}

// Settle performs a pending buffer clear and completes Retired → Empty.
// It runs on the audio path between blocks and reports whether it cleared.
func (c *Channel) Settle() bool {
	if !c.needsClear {
		return false
	}
	c.buf.Clear()
	c.needsClear = false
	if c.state == Retired {
		c.state = Empty
	}
	return true
}

// Capture stores one input frame at pos: overwrite while recording,
// accumulate while overdubbing.
func (c *Channel) Capture(pos int, in buffer.Frame) error {
	var err error
	switch c.state {
	case Recording:
		err = c.buf.WriteAt(pos, in)
	case Overdubbing:
		err = c.buf.AccumulateAt(pos, in)
	default:
		return nil
	}
	if err == nil && c.state == Recording {
		c.recorded++
	}
	return err
}

// Read returns the gain-scaled frame at pos for a live channel and silence
// for anything else.
func (c *Channel) Read(pos int) (buffer.Frame, error) {
	if !c.state.Live() {
		return buffer.Frame{}, nil
	}
	f, err := c.buf.ReadAt(pos)
	if err != nil {
		return buffer.Frame{}, err
	}
	return f.Scale(c.Gain()), nil
}
