package control

import (
	"gitlab.com/gomidi/midi/v2"
)

// Mapping turns MIDI messages from a pad controller or foot controller into
// actions. Note-on messages select a slot by offset from a base note; control
// changes fire the global actions when their value crosses 64.
type Mapping struct {
	// Channel restricts the mapping to one MIDI channel (0-15); -1 accepts any.
	Channel int
	Slots   int

	ToggleBase uint8 // note for slot 0's footswitch cycle
	MuteBase   uint8 // note for slot 0's mute toggle

	EvictCC uint8
	UndoCC  uint8
	ResetCC uint8
}

// maxPadSlots is how many slots fit two rows of notes between C2 and G9.
const maxPadSlots = (127 - 36 + 1) / 2

// DefaultMapping lays the slot toggles out from C2 (36), the bottom-left pad
// on most drum-pad controllers, and the mute toggles an octave above. With
// more than 12 slots the mute row starts right after the last toggle so the
// rows never overlap; slots past maxPadSlots get no pads.
func DefaultMapping(slots int) Mapping {
	pads := min(slots, maxPadSlots)
	return Mapping{
		Channel:    -1,
		Slots:      pads,
		ToggleBase: 36,
		MuteBase:   36 + uint8(max(12, pads)),
		EvictCC:    20,
		UndoCC:     22,
		ResetCC:    21,
	}
}

// Translate maps msg to an action. Note-offs, releases and unmapped messages
// report false.
func (m Mapping) Translate(msg midi.Message) (Action, bool) {
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		if !m.accepts(ch) {
			return Action{}, false
		}
		if slot, ok := m.slot(key, m.ToggleBase); ok {
			return Action{Kind: ActionToggle, Slot: slot}, true
		}
		if slot, ok := m.slot(key, m.MuteBase); ok {
			return Action{Kind: ActionToggleMute, Slot: slot}, true
		}
		return Action{}, false
	}
	var cc, val uint8
	if msg.GetControlChange(&ch, &cc, &val) {
		if !m.accepts(ch) || val < 64 {
			return Action{}, false
		}
		switch cc {
		case m.EvictCC:
			return Action{Kind: ActionEvict}, true
		case m.UndoCC:
			return Action{Kind: ActionUndo}, true
		case m.ResetCC:
			return Action{Kind: ActionReset}, true
		}
	}
	return Action{}, false
}

func (m Mapping) accepts(ch uint8) bool {
	return m.Channel < 0 || int(ch) == m.Channel
}

func (m Mapping) slot(key, base uint8) (int, bool) {
	if key < base {
		return 0, false
	}
	slot := int(key - base)
	return slot, slot < m.Slots
}
