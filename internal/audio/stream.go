package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Processor renders one block of interleaved stereo output from one block of
// interleaved stereo input. The loop engine is the canonical implementation.
type Processor interface {
	Process(in, out []float32)
}

// InputSource fills dst with interleaved stereo input frames. Implementations
// must not block; missing input is written as silence.
type InputSource interface {
	Read(dst []float32)
}

// Silence is an InputSource that never produces a signal.
type Silence struct{}

func (Silence) Read(dst []float32) { clear(dst) }

// StreamReader adapts a Processor to the pull-style io.Reader an ebiten
// player consumes. Each Read is split into blocks of at most blockSize frames
// so the processor always sees driver-sized blocks.
type StreamReader struct {
	mu        sync.Mutex
	proc      Processor
	input     InputSource
	blockSize int
	in        []float32
	out       []float32
}

func NewStreamReader(proc Processor, input InputSource, blockSize int) *StreamReader {
	if input == nil {
		input = Silence{}
	}
	if blockSize <= 0 {
		blockSize = 256
	}
	return &StreamReader{
		proc:      proc,
		input:     input,
		blockSize: blockSize,
		in:        make([]float32, blockSize*2),
		out:       make([]float32, blockSize*2),
	}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	written := 0
	for written < frames {
		n := min(frames-written, r.blockSize)
		in := r.in[:n*2]
		out := r.out[:n*2]
		r.input.Read(in)
		r.proc.Process(in, out)
		base := written * 8
		for i, s := range out {
			binary.LittleEndian.PutUint32(p[base+i*4:], math.Float32bits(s))
		}
		written += n
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

// Player plays a Processor through the shared ebiten audio context.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer opens an output stream for proc. latency sets the player's
// buffer size; zero keeps ebiten's default.
func NewPlayer(sampleRate, blockSize int, proc Processor, input InputSource, latency time.Duration) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(proc, input, blockSize)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	if latency > 0 {
		pl.SetBufferSize(latency)
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
