package config

import (
	"flag"
	"log/slog"
	"testing"
	"time"
)

var envVars = []string{
	"LAYERLOOP_CHANNELS", "LAYERLOOP_WINDOW", "LAYERLOOP_SAMPLE_RATE",
	"LAYERLOOP_BLOCK_SIZE", "LAYERLOOP_MAX_LOOP_SECONDS", "LAYERLOOP_MONITOR",
	"LAYERLOOP_BACKEND", "LAYERLOOP_LATENCY_MS", "LAYERLOOP_INPUT_FILE",
	"LAYERLOOP_LIMITER", "LAYERLOOP_MIDI_PORT", "LAYERLOOP_EXPORT_DIR",
	"LAYERLOOP_LOG_LEVEL", "LAYERLOOP_NO_TUI", "LAYERLOOP_COMPRESSOR",
	"LAYERLOOP_COMPRESSOR_THRESHOLD", "LAYERLOOP_COMPRESSOR_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Channels != 8 || cfg.Window != 4 {
		t.Errorf("N, W = %d, %d; want 8, 4", cfg.Channels, cfg.Window)
	}
	if cfg.SampleRate != 48000 || cfg.BlockSize != 256 {
		t.Errorf("rate, block = %d, %d; want 48000, 256", cfg.SampleRate, cfg.BlockSize)
	}
	if cfg.MaxLoopSeconds != 60 {
		t.Errorf("MaxLoopSeconds = %g, want 60", cfg.MaxLoopSeconds)
	}
	if cfg.Monitor {
		t.Error("Monitor should default to off")
	}
	if cfg.Backend != "duplex" {
		t.Errorf("Backend = %q, want duplex", cfg.Backend)
	}
	if cfg.Latency != 20*time.Millisecond {
		t.Errorf("Latency = %v, want 20ms", cfg.Latency)
	}
	if !cfg.Limiter {
		t.Error("Limiter should default to on")
	}
	if cfg.Compressor || cfg.CompressorThreshold != -18 || cfg.CompressorRatio != 3 {
		t.Errorf("compressor = %v, %g dB, %g:1; want off, -18 dB, 3:1",
			cfg.Compressor, cfg.CompressorThreshold, cfg.CompressorRatio)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAYERLOOP_CHANNELS", "4")
	t.Setenv("LAYERLOOP_WINDOW", "2")
	t.Setenv("LAYERLOOP_MAX_LOOP_SECONDS", "12.5")
	t.Setenv("LAYERLOOP_MONITOR", "true")
	t.Setenv("LAYERLOOP_LATENCY_MS", "45")
	t.Setenv("LAYERLOOP_BACKEND", "split")
	t.Setenv("LAYERLOOP_MIDI_PORT", "nanoKONTROL")

	cfg := Load()
	if cfg.Channels != 4 || cfg.Window != 2 {
		t.Errorf("N, W = %d, %d; want 4, 2", cfg.Channels, cfg.Window)
	}
	if cfg.MaxLoopSeconds != 12.5 {
		t.Errorf("MaxLoopSeconds = %g, want 12.5", cfg.MaxLoopSeconds)
	}
	if !cfg.Monitor {
		t.Error("Monitor should be on")
	}
	if cfg.Latency != 45*time.Millisecond {
		t.Errorf("Latency = %v, want 45ms", cfg.Latency)
	}
	if cfg.Backend != "split" || cfg.MIDIPort != "nanoKONTROL" {
		t.Errorf("Backend, MIDIPort = %q, %q", cfg.Backend, cfg.MIDIPort)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAYERLOOP_CHANNELS", "many")
	t.Setenv("LAYERLOOP_MONITOR", "sometimes")
	cfg := Load()
	if cfg.Channels != 8 {
		t.Errorf("Channels = %d, want fallback 8", cfg.Channels)
	}
	if cfg.Monitor {
		t.Error("Monitor should fall back to off")
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAYERLOOP_WINDOW", "3")
	t.Setenv("LAYERLOOP_COMPRESSOR_RATIO", "2")
	cfg := Load()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse([]string{"-window", "2", "-log-level", "debug", "-compressor", "-compressor-threshold", "-24"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Window != 2 {
		t.Errorf("Window = %d, want 2", cfg.Window)
	}
	if !cfg.Compressor || cfg.CompressorThreshold != -24 || cfg.CompressorRatio != 2 {
		t.Errorf("compressor = %v, %g dB, %g:1; want on, -24 dB, 2:1",
			cfg.Compressor, cfg.CompressorThreshold, cfg.CompressorRatio)
	}
	lvl, err := cfg.SlogLevel()
	if err != nil || lvl != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, %v; want debug", lvl, err)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window above channels", func(c *Config) { c.Window = c.Channels + 1 }},
		{"zero window", func(c *Config) { c.Window = 0 }},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero max loop", func(c *Config) { c.MaxLoopSeconds = 0 }},
		{"negative latency", func(c *Config) { c.Latency = -time.Millisecond }},
		{"unknown backend", func(c *Config) { c.Backend = "jack" }},
		{"file backend without input", func(c *Config) { c.Backend = "file" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"compressor ratio below one", func(c *Config) { c.Compressor = true; c.CompressorRatio = 0.5 }},
		{"compressor threshold above full scale", func(c *Config) { c.Compressor = true; c.CompressorThreshold = 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEngineConfig(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.MaxLoopSeconds = 2
	cfg.Monitor = true
	ec := cfg.Engine()
	if ec.MaxLoopFrames != 96000 {
		t.Errorf("MaxLoopFrames = %d, want 96000", ec.MaxLoopFrames)
	}
	if !ec.Monitor || ec.Channels != cfg.Channels || ec.Window != cfg.Window {
		t.Errorf("engine config = %+v", ec)
	}
}
