package transport

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrEstablished is returned by Establish once a master length is locked in.
var ErrEstablished = errors.New("transport: master length already established")

// Transport is the shared sample clock. Position and MasterLength are owned
// by the engine's audio path; Published exposes copies that any goroutine
// may read without locking.
type Transport struct {
	sampleRate int
	blockSize  int

	master   int
	position int

	pubMaster   atomic.Int64
	pubPosition atomic.Int64
}

func New(sampleRate, blockSize int) *Transport {
	return &Transport{sampleRate: sampleRate, blockSize: blockSize}
}

func (t *Transport) SampleRate() int { return t.sampleRate }
func (t *Transport) BlockSize() int { return t.blockSize }
func (t *Transport) MasterLength() int { return t.master }
func (t *Transport) Position() int { return t.position }
func (t *Transport) Established() bool { return t.master > 0 }

// RoundToBlock rounds frames to the nearest whole block, at least one block
// and at most limit rounded down to a block.
func (t *Transport) RoundToBlock(frames, limit int) int {
	bs := t.blockSize
	if bs <= 0 {
		bs = 1
	}
	n := ((frames + bs/2) / bs) * bs
	maxN := (limit / bs) * bs
	if n > maxN {
		n = maxN
	}
	if n < bs {
		n = bs
	}
	return n
}

// Establish locks in the master length and restarts the cycle at frame 0.
func (t *Transport) Establish(length int) error {
	if t.master > 0 {
		return ErrEstablished
	}
	if length <= 0 {
		return errors.New("transport: master length must be positive")
	}
	t.master = length
	t.position = 0
	t.Publish()
	return nil
}

// Advance moves the clock one frame. Once established the position wraps
// modulo the master length and Advance reports the wrap.
func (t *Transport) Advance() bool {
	t.position++
	if t.master > 0 && t.position >= t.master {
		t.position = 0
		return true
	}
	return false
}

// Rewind returns the position to 0 while no master length exists, so the
// first recording starts counting from the top.
func (t *Transport) Rewind() {
	if t.master == 0 {
		t.position = 0
	}
}

// Reset forgets the master length.
func (t *Transport) Reset() {
	t.master = 0
	t.position = 0
	t.Publish()
}

// Publish makes the current position and master length visible to Published.
func (t *Transport) Publish() {
	t.pubMaster.Store(int64(t.master))
	t.pubPosition.Store(int64(t.position))
}

// Published returns the last published position and master length.
func (t *Transport) Published() (position, master int) {
	return int(t.pubPosition.Load()), int(t.pubMaster.Load())
}

// FramesToDuration converts a frame count at the transport's sample rate.
func (t *Transport) FramesToDuration(frames int) time.Duration {
	if t.sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(t.sampleRate)
}
