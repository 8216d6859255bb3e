package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cbegin/layerloop/internal/audio"
	"github.com/cbegin/layerloop/internal/engine"
)

// Config holds all runtime configuration. Load reads it from environment
// variables; RegisterFlags lets the command line override each field.
type Config struct {
	// Engine
	Channels       int     // N
	Window         int     // W
	SampleRate     int     // Hz
	BlockSize      int     // frames per driver block
	MaxLoopSeconds float64 // per-channel buffer capacity
	Monitor        bool    // pass input through to the output

	// Audio I/O
	Backend   string        // duplex, split or file
	Latency   time.Duration // output buffer and split-mode input cushion
	InputFile string        // WAV clip used as input by the file backend
	Limiter   bool          // master bus limiter

	Compressor          bool    // master bus compressor, ahead of the limiter
	CompressorThreshold float64 // dBFS
	CompressorRatio     float64

	// Control and output
	MIDIPort  string // substring of the MIDI input port name; empty disables MIDI
	ExportDir string // where layer and mix WAVs are written
	LogLevel  string // debug, info, warn or error
	NoTUI     bool   // run headless
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Channels:       envInt("LAYERLOOP_CHANNELS", 8),
		Window:         envInt("LAYERLOOP_WINDOW", 4),
		SampleRate:     envInt("LAYERLOOP_SAMPLE_RATE", 48000),
		BlockSize:      envInt("LAYERLOOP_BLOCK_SIZE", 256),
		MaxLoopSeconds: envFloat("LAYERLOOP_MAX_LOOP_SECONDS", 60),
		Monitor:        envBool("LAYERLOOP_MONITOR", false),

		Backend:   envStr("LAYERLOOP_BACKEND", string(audio.KindDuplex)),
		Latency:   time.Duration(envInt("LAYERLOOP_LATENCY_MS", 20)) * time.Millisecond,
		InputFile: envStr("LAYERLOOP_INPUT_FILE", ""),
		Limiter:   envBool("LAYERLOOP_LIMITER", true),

		Compressor:          envBool("LAYERLOOP_COMPRESSOR", false),
		CompressorThreshold: envFloat("LAYERLOOP_COMPRESSOR_THRESHOLD", -18),
		CompressorRatio:     envFloat("LAYERLOOP_COMPRESSOR_RATIO", 3),

		MIDIPort:  envStr("LAYERLOOP_MIDI_PORT", ""),
		ExportDir: envStr("LAYERLOOP_EXPORT_DIR", "."),
		LogLevel:  envStr("LAYERLOOP_LOG_LEVEL", "info"),
		NoTUI:     envBool("LAYERLOOP_NO_TUI", false),
	}
}

// RegisterFlags binds every field to a flag whose default is the field's
// current value, so flags override the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Channels, "channels", c.Channels, "number of channel slots (N)")
	fs.IntVar(&c.Window, "window", c.Window, "live layers kept playing (W, 1..N)")
	fs.IntVar(&c.SampleRate, "sample-rate", c.SampleRate, "sample rate in Hz")
	fs.IntVar(&c.BlockSize, "block-size", c.BlockSize, "frames per audio block")
	fs.Float64Var(&c.MaxLoopSeconds, "max-loop", c.MaxLoopSeconds, "longest loop in seconds")
	fs.BoolVar(&c.Monitor, "monitor", c.Monitor, "mix the live input into the output")
	fs.StringVar(&c.Backend, "backend", c.Backend, "audio backend: duplex|split|file")
	fs.DurationVar(&c.Latency, "latency", c.Latency, "output buffer size")
	fs.StringVar(&c.InputFile, "input", c.InputFile, "WAV file used as input by the file backend")
	fs.BoolVar(&c.Limiter, "limiter", c.Limiter, "enable the master limiter")
	fs.BoolVar(&c.Compressor, "compressor", c.Compressor, "enable the master compressor")
	fs.Float64Var(&c.CompressorThreshold, "compressor-threshold", c.CompressorThreshold, "compressor threshold in dBFS")
	fs.Float64Var(&c.CompressorRatio, "compressor-ratio", c.CompressorRatio, "compressor ratio (>= 1)")
	fs.StringVar(&c.MIDIPort, "midi", c.MIDIPort, "MIDI input port name (substring); empty disables MIDI")
	fs.StringVar(&c.ExportDir, "export-dir", c.ExportDir, "directory for exported WAV files")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug|info|warn|error")
	fs.BoolVar(&c.NoTUI, "no-tui", c.NoTUI, "run without the terminal UI")
}

func (c Config) Validate() error {
	if err := c.Engine().Validate(); err != nil {
		return err
	}
	if c.MaxLoopSeconds <= 0 {
		return fmt.Errorf("max loop must be positive, got %g", c.MaxLoopSeconds)
	}
	if c.Latency < 0 {
		return fmt.Errorf("latency must not be negative, got %v", c.Latency)
	}
	if c.Compressor && c.CompressorRatio < 1 {
		return fmt.Errorf("compressor ratio must be at least 1, got %g", c.CompressorRatio)
	}
	if c.Compressor && c.CompressorThreshold > 0 {
		return fmt.Errorf("compressor threshold must be at most 0 dBFS, got %g", c.CompressorThreshold)
	}
	kind, err := audio.ParseKind(c.Backend)
	if err != nil {
		return err
	}
	if kind == audio.KindFile && c.InputFile == "" {
		return fmt.Errorf("the file backend needs an input file")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Engine derives the engine configuration.
func (c Config) Engine() engine.Config {
	return engine.Config{
		Channels:      c.Channels,
		Window:        c.Window,
		SampleRate:    c.SampleRate,
		BlockSize:     c.BlockSize,
		MaxLoopFrames: int(c.MaxLoopSeconds * float64(c.SampleRate)),
		Monitor:       c.Monitor,
	}
}

func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
