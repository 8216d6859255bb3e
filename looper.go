package layerloop

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	intaudio "github.com/cbegin/layerloop/internal/audio"
	"github.com/cbegin/layerloop/internal/channel"
	intfx "github.com/cbegin/layerloop/internal/effects"
	"github.com/cbegin/layerloop/internal/engine"
	"github.com/cbegin/layerloop/internal/export"
)

type (
	Config          = engine.Config
	Snapshot        = engine.Snapshot
	ChannelSnapshot = engine.ChannelSnapshot
	CommandError    = engine.CommandError
	State           = channel.State
)

const (
	Empty       = channel.Empty
	Recording   = channel.Recording
	Playing     = channel.Playing
	Overdubbing = channel.Overdubbing
	Retired     = channel.Retired
)

var (
	ErrInvalidTransition = engine.ErrInvalidTransition
	ErrNoFreeSlot        = engine.ErrNoFreeSlot
	ErrOutOfRange        = engine.ErrOutOfRange
	ErrNotEstablished    = engine.ErrNotEstablished
	ErrInvalidSlot       = engine.ErrInvalidSlot
	ErrEmptyWindow       = engine.ErrEmptyWindow
	ErrNothingToUndo     = engine.ErrNothingToUndo
	ErrCopyInterrupted   = engine.ErrCopyInterrupted

	ErrRunning = errors.New("looper is already running")
)

type Option func(*looperConfig)

type looperConfig struct {
	logger      *slog.Logger
	compressor  bool
	thresholdDB float32
	ratio       float32
	limiter     bool
	ceilingDB   float32
	releaseMs   float32
	sampleTap   func([]float32)
}

func defaultLooperConfig() looperConfig {
	return looperConfig{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ceilingDB: -0.3,
		releaseMs: 80,
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *looperConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithCompressor puts a stereo-linked compressor on the master bus, ahead
// of the limiter when both are enabled.
func WithCompressor(thresholdDB, ratio float32) Option {
	return func(cfg *looperConfig) {
		cfg.compressor = true
		cfg.thresholdDB = thresholdDB
		cfg.ratio = ratio
	}
}

// WithLimiter inserts a peak limiter on the master bus with the given
// ceiling in dBFS.
func WithLimiter(ceilingDB float32) Option {
	return func(cfg *looperConfig) {
		cfg.limiter = true
		cfg.ceilingDB = ceilingDB
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *looperConfig) {
		cfg.sampleTap = tap
	}
}

// Looper is the loop engine plus its master bus and audio backend. Every
// engine command is available directly on the Looper.
type Looper struct {
	*engine.Engine

	log       *slog.Logger
	bus       *intfx.Chain
	sampleTap func([]float32)

	mu      sync.Mutex
	backend intaudio.Backend
}

func New(cfg Config, opts ...Option) (*Looper, error) {
	lc := defaultLooperConfig()
	for _, opt := range opts {
		opt(&lc)
	}
	eng, err := engine.New(cfg, engine.WithLogger(lc.logger))
	if err != nil {
		return nil, err
	}
	var fx []intfx.Effector
	if lc.compressor {
		fx = append(fx, intfx.NewCompressor(cfg.SampleRate, lc.thresholdDB, lc.ratio, 10, 120, 0))
	}
	if lc.limiter {
		fx = append(fx, intfx.NewLimiter(cfg.SampleRate, lc.ceilingDB, lc.releaseMs))
	}
	bus := intfx.NewChain(fx...)
	lc.logger.Debug("master bus", "effects", bus.Len(), "compressor", lc.compressor, "limiter", lc.limiter)
	return &Looper{
		Engine:    eng,
		log:       lc.logger,
		bus:       bus,
		sampleTap: lc.sampleTap,
	}, nil
}

// Process renders one block through the engine and the master bus. It is
// what audio backends call.
func (l *Looper) Process(in, out []float32) {
	l.Engine.Process(in, out)
	l.bus.ProcessInterleaved(out)
	if l.sampleTap != nil {
		l.sampleTap(out)
	}
}

// Start opens the backend described by opts and begins processing.
func (l *Looper) Start(opts intaudio.Options) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend != nil {
		return ErrRunning
	}
	cfg := l.Engine.Config()
	opts.SampleRate = cfg.SampleRate
	opts.BlockSize = cfg.BlockSize
	b, err := intaudio.Open(opts, l)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", opts.Kind, err)
	}
	if err := b.Start(); err != nil {
		_ = b.Close()
		return fmt.Errorf("start %s backend: %w", opts.Kind, err)
	}
	l.backend = b
	l.log.Info("audio started", "backend", string(opts.Kind), "sample_rate", cfg.SampleRate, "block", cfg.BlockSize)
	return nil
}

// Backend returns the running backend, or nil.
func (l *Looper) Backend() intaudio.Backend {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backend
}

func (l *Looper) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.backend == nil {
		return nil
	}
	err := l.backend.Close()
	l.backend = nil
	l.log.Info("audio stopped")
	return err
}

// ExportWindow writes every live layer and the current mix to dir as
// 16-bit WAV files and returns their paths, oldest layer first.
func (l *Looper) ExportWindow(dir string) ([]string, error) {
	snap := l.Snapshot()
	if !snap.Established() {
		return nil, ErrNotEstablished
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, slot := range snap.Window {
		frames, err := l.Layer(slot)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, fmt.Sprintf("layer_%02d.wav", slot+1))
		if err := export.WriteFile(path, frames, snap.SampleRate); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	mix, err := l.Mix()
	if err != nil {
		return paths, err
	}
	path := filepath.Join(dir, "mix.wav")
	if err := export.WriteFile(path, mix, snap.SampleRate); err != nil {
		return paths, err
	}
	paths = append(paths, path)
	l.log.Info("window exported", "dir", dir, "files", len(paths))
	return paths, nil
}

// LoadInput decodes a WAV file into a looping input source for the file
// backend. The file's sample rate must match the looper's.
func (l *Looper) LoadInput(path string) (*intaudio.LoopSource, error) {
	samples, rate, err := export.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if want := l.Engine.Config().SampleRate; rate != want {
		return nil, fmt.Errorf("%s is %d Hz, looper runs at %d Hz", path, rate, want)
	}
	return intaudio.NewLoopSource(samples), nil
}
