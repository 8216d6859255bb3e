package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu    sync.Mutex
	paUsers int
)

// acquirePortAudio initializes the library on first use. Every successful
// call must be paired with releasePortAudio.
func acquirePortAudio() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
	}
	paUsers++
	return nil
}

func releasePortAudio() error {
	paMu.Lock()
	defer paMu.Unlock()
	paUsers--
	if paUsers == 0 {
		return portaudio.Terminate()
	}
	return nil
}

// Duplex runs a Processor inside one full-duplex PortAudio stream, so input
// and output share a single device clock.
type Duplex struct {
	stream *portaudio.Stream
}

func NewDuplex(sampleRate, blockSize int, proc Processor) (*Duplex, error) {
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	stream, err := portaudio.OpenDefaultStream(2, 2, float64(sampleRate), blockSize, func(in, out []float32) {
		proc.Process(in, out)
	})
	if err != nil {
		_ = releasePortAudio()
		return nil, fmt.Errorf("open duplex stream: %w", err)
	}
	return &Duplex{stream: stream}, nil
}

func (d *Duplex) Start() error { return d.stream.Start() }

func (d *Duplex) Close() error {
	stopErr := d.stream.Stop()
	closeErr := d.stream.Close()
	relErr := releasePortAudio()
	return errors.Join(stopErr, closeErr, relErr)
}

// Capture records the default input device into a Ring.
type Capture struct {
	stream *portaudio.Stream
}

func NewCapture(sampleRate, blockSize int, ring *Ring) (*Capture, error) {
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	stream, err := portaudio.OpenDefaultStream(2, 0, float64(sampleRate), blockSize, func(in []float32) {
		ring.Write(in)
	})
	if err != nil {
		_ = releasePortAudio()
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	return &Capture{stream: stream}, nil
}

func (c *Capture) Start() error { return c.stream.Start() }

func (c *Capture) Close() error {
	stopErr := c.stream.Stop()
	closeErr := c.stream.Close()
	relErr := releasePortAudio()
	return errors.Join(stopErr, closeErr, relErr)
}
