package control

import (
	"fmt"

	"github.com/cbegin/layerloop/internal/channel"
	"github.com/cbegin/layerloop/internal/engine"
)

type Kind int

const (
	ActionRecord Kind = iota
	ActionClose
	ActionOverdub
	ActionStopOverdub
	ActionMute
	ActionUnmute
	ActionToggleMute
	ActionToggle
	ActionEvict
	ActionUndo
	ActionReset
)

var kindNames = [...]string{
	ActionRecord:      "record",
	ActionClose:       "close",
	ActionOverdub:     "overdub",
	ActionStopOverdub: "stop-overdub",
	ActionMute:        "mute",
	ActionUnmute:      "unmute",
	ActionToggleMute:  "toggle-mute",
	ActionToggle:      "toggle",
	ActionEvict:       "evict",
	ActionUndo:        "undo",
	ActionReset:       "reset",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Action is one user gesture aimed at a slot. Slot is ignored by
// ActionEvict, ActionUndo and ActionReset.
type Action struct {
	Kind Kind
	Slot int
}

func (a Action) String() string {
	switch a.Kind {
	case ActionEvict, ActionUndo, ActionReset:
		return a.Kind.String()
	}
	return fmt.Sprintf("%s %d", a.Kind, a.Slot)
}

// Target is the command surface of the loop engine.
type Target interface {
	StartRecording(slot int) error
	CloseRecording(slot int) error
	StartOverdub(slot int) error
	StopOverdub(slot int) error
	Mute(slot int, muted bool) error
	EvictOldest() error
	UndoLast() error
	ResetAll()
	Snapshot() engine.Snapshot
}

// Dispatch applies a to t and returns the engine's verdict.
func Dispatch(t Target, a Action) error {
	switch a.Kind {
	case ActionRecord:
		return t.StartRecording(a.Slot)
	case ActionClose:
		return t.CloseRecording(a.Slot)
	case ActionOverdub:
		return t.StartOverdub(a.Slot)
	case ActionStopOverdub:
		return t.StopOverdub(a.Slot)
	case ActionMute:
		return t.Mute(a.Slot, true)
	case ActionUnmute:
		return t.Mute(a.Slot, false)
	case ActionToggleMute:
		cs, err := slotState(t, a.Slot)
		if err != nil {
			return err
		}
		return t.Mute(a.Slot, !cs.Muted)
	case ActionToggle:
		cs, err := slotState(t, a.Slot)
		if err != nil {
			return err
		}
		return Dispatch(t, Action{Kind: Next(cs.State), Slot: a.Slot})
	case ActionEvict:
		return t.EvictOldest()
	case ActionUndo:
		return t.UndoLast()
	case ActionReset:
		t.ResetAll()
		return nil
	}
	return fmt.Errorf("unknown action %v", a.Kind)
}

// Next is the single-button footswitch cycle: an idle slot records, a
// recording closes, a playing layer overdubs, an overdub stops.
func Next(s channel.State) Kind {
	switch s {
	case channel.Recording:
		return ActionClose
	case channel.Playing:
		return ActionOverdub
	case channel.Overdubbing:
		return ActionStopOverdub
	}
	return ActionRecord
}

func slotState(t Target, slot int) (engine.ChannelSnapshot, error) {
	snap := t.Snapshot()
	if slot < 0 || slot >= len(snap.Channels) {
		return engine.ChannelSnapshot{}, &engine.CommandError{Op: "toggle", Slot: slot, Err: engine.ErrInvalidSlot}
	}
	return snap.Channels[slot], nil
}
