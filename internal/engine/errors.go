package engine

import (
	"errors"
	"fmt"

	"github.com/cbegin/layerloop/internal/buffer"
	"github.com/cbegin/layerloop/internal/channel"
)

var (
	ErrInvalidTransition = channel.ErrInvalidTransition
	ErrOutOfRange        = buffer.ErrOutOfRange
	ErrNoFreeSlot        = errors.New("no free slot")
	ErrNotEstablished    = errors.New("master length not established")
	ErrInvalidSlot       = errors.New("slot index out of range")
	// ErrCopyInterrupted is returned by Layer and Mix when a layer they were
	// copying was retired, re-recorded or reset before the copy finished.
	ErrCopyInterrupted = errors.New("layer changed while being copied")

	// ErrEmptyWindow is an ErrInvalidTransition: there is no layer to evict.
	ErrEmptyWindow = fmt.Errorf("%w: window is empty", ErrInvalidTransition)
	// ErrNothingRecorded is an ErrInvalidTransition: the first loop cannot be
	// closed before any frame was captured.
	ErrNothingRecorded = fmt.Errorf("%w: nothing recorded yet", ErrInvalidTransition)
	// ErrNothingToUndo is an ErrInvalidTransition: only the latest commit
	// can be undone, and only once.
	ErrNothingToUndo = fmt.Errorf("%w: nothing to undo", ErrInvalidTransition)
)

// CommandError describes a rejected command. The engine state is unchanged
// when one is returned.
type CommandError struct {
	Op    string
	Slot  int // -1 for commands without a slot
	State channel.State
	Err   error
}

func (e *CommandError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s slot %d (%s): %v", e.Op, e.Slot, e.State, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
