package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cbegin/layerloop/internal/buffer"
	"github.com/cbegin/layerloop/internal/channel"
	"github.com/cbegin/layerloop/internal/transport"
	"github.com/cbegin/layerloop/internal/window"
)

// Config is fixed for the lifetime of an Engine.
type Config struct {
	Channels      int  // N
	Window        int  // W, 1 <= W <= N
	SampleRate    int  // frames per second
	BlockSize     int  // frames per driver block
	MaxLoopFrames int  // capacity of every channel buffer
	Monitor       bool // add the input to the output mix
}

// Validate checks the structural constraints of the configuration.
func (c Config) Validate() error {
	switch {
	case c.Channels < 1:
		return fmt.Errorf("channel count must be positive, got %d", c.Channels)
	case c.Window < 1 || c.Window > c.Channels:
		return fmt.Errorf("window size must be in [1, %d], got %d", c.Channels, c.Window)
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("block size must be positive, got %d", c.BlockSize)
	case c.MaxLoopFrames < c.BlockSize:
		return fmt.Errorf("max loop length (%d frames) is shorter than one block (%d)", c.MaxLoopFrames, c.BlockSize)
	}
	return nil
}

type Option func(*Engine)

// WithLogger routes engine logs to l. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine is the loop engine: N channel slots, the shared transport and the
// playback window. Commands and Process are serialised by one mutex; every
// command does O(1) work per slot and never touches sample data, so Process
// waits at most that long. Layer and Mix copy sample data one block at a
// time and release the lock in between.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	transport *transport.Transport
	channels  []*channel.Channel
	window    *window.Window

	establishing int      // slot of the first recording, -1 if none
	lastCommit   int      // newest window entry while it can be undone, -1 otherwise
	recordSeq    uint64   // commit order for recordings closing on the same wrap
	startedAt    []uint64 // recordSeq at StartRecording, per slot
	active       []*channel.Channel
	closing      []int
	epoch        uint64 // bumped by ResetAll

	// afterChunk, if set, runs between the chunks of a layer or mix copy
	// with the lock released.
	afterChunk func(offset int)

	faults atomic.Uint64
	blocks atomic.Uint64
}

// New allocates every channel buffer up front; nothing on the Process path
// allocates afterwards.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:          cfg,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		transport:    transport.New(cfg.SampleRate, cfg.BlockSize),
		channels:     make([]*channel.Channel, cfg.Channels),
		window:       window.New(cfg.Window),
		establishing: -1,
		lastCommit:   -1,
		startedAt:    make([]uint64, cfg.Channels),
		active:       make([]*channel.Channel, 0, cfg.Channels),
		closing:      make([]int, 0, cfg.Channels),
	}
	for i := range e.channels {
		e.channels[i] = channel.New(i, cfg.MaxLoopFrames)
	}
	for _, opt := range opts {
		opt(e)
	}
	e.transport.Publish()
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Faults counts buffer accesses that fell outside a channel's range. They
// indicate a bug; the affected frames were rendered as silence.
func (e *Engine) Faults() uint64 { return e.faults.Load() }

// Position returns the transport position and master length as of the last
// Process call without taking the engine lock.
func (e *Engine) Position() (position, master int) {
	return e.transport.Published()
}

// StartRecording begins capturing input into slot. The first recording of
// a performance establishes the master length when it is closed.
func (e *Engine) StartRecording(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "start recording"
	if err := e.checkSlot(op, slot); err != nil {
		return err
	}
	c := e.channels[slot]
	if !e.hasFreeSlot() {
		return e.reject(op, slot, ErrNoFreeSlot)
	}
	establishing := !e.transport.Established() && e.establishing < 0
	if err := c.StartRecording(establishing); err != nil {
		return e.reject(op, slot, err)
	}
	e.recordSeq++
	e.startedAt[slot] = e.recordSeq
	if establishing {
		e.establishing = slot
		e.transport.Rewind()
	}
	e.log.Debug("recording started", "slot", slot, "establishing", establishing)
	return nil
}

// CloseRecording commits a recording to the window. For the first
// recording it also fixes the master length. Closing a channel that is
// already playing is a no-op.
func (e *Engine) CloseRecording(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "close recording"
	if err := e.checkSlot(op, slot); err != nil {
		return err
	}
	c := e.channels[slot]
	switch c.State() {
	case channel.Playing, channel.Overdubbing:
		return nil
	case channel.Recording:
	default:
		return e.reject(op, slot, ErrInvalidTransition)
	}
	if c.Establishing() {
		if c.RecordedLength() == 0 {
			return e.reject(op, slot, ErrNothingRecorded)
		}
		e.establish(c)
		return nil
	}
	if !e.transport.Established() {
		return e.reject(op, slot, ErrNotEstablished)
	}
	e.commit(slot)
	return nil
}

// StartOverdub layers new input onto a playing slot.
func (e *Engine) StartOverdub(slot int) error {
	return e.apply("start overdub", slot, (*channel.Channel).StartOverdub)
}

// StopOverdub returns an overdubbing slot to plain playback. A slot that is
// already playing is left alone.
func (e *Engine) StopOverdub(slot int) error {
	return e.apply("stop overdub", slot, (*channel.Channel).StopOverdub)
}

// Mute sets or clears the mute flag of a recording or live slot.
func (e *Engine) Mute(slot int, muted bool) error {
	return e.apply("mute", slot, func(c *channel.Channel) error {
		return c.SetMuted(muted)
	})
}

// EvictOldest retires the earliest committed live layer without adding a
// new one.
func (e *Engine) EvictOldest() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.window.PopOldest()
	if !ok {
		return e.reject("evict oldest", -1, ErrEmptyWindow)
	}
	e.channels[idx].Retire()
	if idx == e.lastCommit {
		e.lastCommit = -1
	}
	e.log.Debug("layer evicted", "slot", idx, "reason", "manual")
	return nil
}

// UndoLast retires the most recently committed layer. Only one level is
// kept: a second undo, or an undo after the layer was evicted or reset,
// fails with ErrNothingToUndo. A layer the undone commit pushed out of the
// window stays retired, and the master length is kept.
func (e *Engine) UndoLast() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastCommit < 0 {
		return e.reject("undo", -1, ErrNothingToUndo)
	}
	idx, ok := e.window.Newest()
	if !ok || idx != e.lastCommit {
		e.lastCommit = -1
		return e.reject("undo", -1, ErrNothingToUndo)
	}
	e.window.PopNewest()
	e.channels[idx].Retire()
	e.lastCommit = -1
	e.log.Debug("layer undone", "slot", idx)
	return nil
}

// ResetAll forgets the master length and retires every channel. Buffers
// are cleared by the next Process call.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.channels {
		c.Retire()
		c.Buffer().Resize(e.cfg.MaxLoopFrames)
	}
	e.window.Reset()
	e.transport.Reset()
	e.establishing = -1
	e.lastCommit = -1
	e.epoch++
	e.log.Debug("engine reset")
}

// Process renders one block. in and out hold interleaved stereo frames;
// missing input frames are treated as silence. Process never allocates
// and never fails: an internal inconsistency silences the affected channel
// for that frame and is counted in Faults.
func (e *Engine) Process(in, out []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range e.channels {
		c.Settle()
	}
	e.active = e.active[:0]
	for _, c := range e.channels {
		if s := c.State(); s == channel.Recording || s.Live() {
			e.active = append(e.active, c)
		}
	}

	var faults uint64
	frames := len(out) / 2
	for i := 0; i < frames; i++ {
		var inF buffer.Frame
		if 2*i+1 < len(in) {
			inF = buffer.Frame{L: in[2*i], R: in[2*i+1]}
		}
		pos := e.transport.Position()
		var l, r float32
		for _, c := range e.active {
			s := c.State()
			if s.Live() {
				f, err := c.Read(pos)
				if err != nil {
					faults++
				}
				l += f.L
				r += f.R
			}
			if s.Captures() {
				if err := c.Capture(pos, inF); err != nil {
					faults++
				}
			}
		}
		if e.cfg.Monitor {
			l += inF.L
			r += inF.R
		}
		out[2*i] = clip(l)
		out[2*i+1] = clip(r)
		e.tick()
	}
	e.transport.Publish()
	e.blocks.Add(1)
	if faults > 0 {
		e.faults.Add(faults)
		e.log.Warn("buffer access out of range", "faults", faults, "position", e.transport.Position())
	}
}

// tick advances the transport one frame and fires the loop-wrap and
// capacity events.
func (e *Engine) tick() {
	if e.transport.Established() {
		if e.transport.Advance() {
			e.onWrap()
		}
		return
	}
	if e.establishing < 0 {
		return
	}
	e.transport.Advance()
	c := e.channels[e.establishing]
	if c.RecordedLength() >= c.Buffer().Cap() {
		e.log.Info("first loop reached buffer capacity", "slot", c.Index())
		e.establish(c)
	}
}

// onWrap closes every running recording, oldest start first.
func (e *Engine) onWrap() {
	e.closing = e.closing[:0]
	for _, c := range e.active {
		if c.State() == channel.Recording {
			e.closing = append(e.closing, c.Index())
		}
	}
	for i := 1; i < len(e.closing); i++ {
		for j := i; j > 0 && e.startedAt[e.closing[j]] < e.startedAt[e.closing[j-1]]; j-- {
			e.closing[j], e.closing[j-1] = e.closing[j-1], e.closing[j]
		}
	}
	for _, idx := range e.closing {
		e.commit(idx)
	}
}

func (e *Engine) establish(c *channel.Channel) {
	length := e.transport.RoundToBlock(c.RecordedLength(), c.Buffer().Cap())
	for _, ch := range e.channels {
		ch.Buffer().Resize(length)
	}
	if err := e.transport.Establish(length); err != nil {
		// Unreachable: only one channel is ever establishing.
		e.log.Error("establish master length", "err", err)
	}
	e.establishing = -1
	e.log.Info("master length established",
		"slot", c.Index(),
		"frames", length,
		"duration", e.transport.FramesToDuration(length),
	)
	e.commit(c.Index())
}

func (e *Engine) commit(slot int) {
	if err := e.channels[slot].Commit(); err != nil {
		return
	}
	evicted, ok := e.window.Commit(slot)
	e.lastCommit = slot
	e.log.Debug("layer committed", "slot", slot, "window", e.window.Len())
	if ok {
		e.channels[evicted].Retire()
		e.log.Debug("layer evicted", "slot", evicted, "reason", "window full")
	}
}

func (e *Engine) apply(op string, slot int, fn func(*channel.Channel) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkSlot(op, slot); err != nil {
		return err
	}
	if err := fn(e.channels[slot]); err != nil {
		return e.reject(op, slot, err)
	}
	return nil
}

func (e *Engine) hasFreeSlot() bool {
	for _, c := range e.channels {
		if c.State().Free() {
			return true
		}
	}
	return false
}

func (e *Engine) checkSlot(op string, slot int) error {
	if slot < 0 || slot >= len(e.channels) {
		err := &CommandError{Op: op, Slot: slot, Err: ErrInvalidSlot}
		e.log.Debug("command rejected", "op", op, "slot", slot, "err", ErrInvalidSlot)
		return err
	}
	return nil
}

func (e *Engine) reject(op string, slot int, err error) error {
	ce := &CommandError{Op: op, Slot: slot, Err: err}
	if slot >= 0 {
		ce.State = e.channels[slot].State()
	}
	e.log.Debug("command rejected", "op", op, "slot", slot, "err", err)
	return ce
}

// IsRejection reports whether err came from a command the engine refused.
func IsRejection(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

func clip(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
