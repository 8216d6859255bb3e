package audio

import (
	"errors"
	"fmt"
	"time"
)

// Backend drives a Processor from real audio hardware.
type Backend interface {
	Start() error
	Close() error
}

type Kind string

const (
	// KindDuplex uses one PortAudio stream for input and output.
	KindDuplex Kind = "duplex"
	// KindSplit captures with PortAudio and plays through ebiten, bridged by
	// a Ring.
	KindSplit Kind = "split"
	// KindFile plays through ebiten with a clip as the input signal.
	KindFile Kind = "file"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDuplex, KindSplit, KindFile:
		return k, nil
	}
	return "", fmt.Errorf("unknown audio backend %q (expected duplex|split|file)", s)
}

type Options struct {
	Kind       Kind
	SampleRate int
	BlockSize  int
	// Latency is the output buffer size and, for KindSplit, the input
	// cushion held in the ring.
	Latency time.Duration
	// Input is the signal for KindFile. Nil means silence.
	Input InputSource
}

// Open builds the backend named by opts.Kind around proc. The backend is
// idle until Start.
func Open(opts Options, proc Processor) (Backend, error) {
	if opts.SampleRate <= 0 || opts.BlockSize <= 0 {
		return nil, errors.New("sample rate and block size must be positive")
	}
	switch opts.Kind {
	case KindDuplex:
		return NewDuplex(opts.SampleRate, opts.BlockSize, proc)
	case KindSplit:
		return openSplit(opts, proc)
	case KindFile:
		pl, err := NewPlayer(opts.SampleRate, opts.BlockSize, proc, opts.Input, opts.Latency)
		if err != nil {
			return nil, err
		}
		return &playerBackend{player: pl}, nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", opts.Kind)
}

// Split pairs a PortAudio capture stream with an ebiten player.
type Split struct {
	capture *Capture
	player  *Player
	ring    *Ring
}

func openSplit(opts Options, proc Processor) (*Split, error) {
	cushion := int(opts.Latency.Seconds()*float64(opts.SampleRate)) * 2
	if cushion < opts.BlockSize*2 {
		cushion = opts.BlockSize * 2
	}
	ring := NewRing(cushion*4, cushion)
	capture, err := NewCapture(opts.SampleRate, opts.BlockSize, ring)
	if err != nil {
		return nil, err
	}
	player, err := NewPlayer(opts.SampleRate, opts.BlockSize, proc, ring, opts.Latency)
	if err != nil {
		_ = capture.Close()
		return nil, err
	}
	return &Split{capture: capture, player: player, ring: ring}, nil
}

func (s *Split) Start() error {
	if err := s.capture.Start(); err != nil {
		return err
	}
	s.player.Play()
	return nil
}

func (s *Split) Close() error {
	return errors.Join(s.player.Stop(), s.capture.Close())
}

// Ring exposes the input bridge for monitoring drift.
func (s *Split) Ring() *Ring { return s.ring }

type playerBackend struct {
	player *Player
}

func (b *playerBackend) Start() error {
	b.player.Play()
	return nil
}

func (b *playerBackend) Close() error { return b.player.Stop() }
