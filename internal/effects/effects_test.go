package effects

import (
	"math"
	"testing"
)

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(48000, -10, 4, 1, 50, 0)
	var out float32
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
}

func TestCompressorLinksChannels(t *testing.T) {
	c := NewCompressor(48000, -20, 8, 1, 50, 0)
	var l, r float32
	for i := 0; i < 2000; i++ {
		l, r = c.Process(0.9, 0.1)
	}
	if ratio := l / r; math.Abs(float64(ratio)-9) > 1e-3 {
		t.Fatalf("l/r = %f, want the input balance 9", ratio)
	}
}

func TestCompressorPassesQuietSignal(t *testing.T) {
	c := NewCompressor(48000, -6, 4, 1, 50, 0)
	l, r := c.Process(0.1, -0.1)
	if l != 0.1 || r != -0.1 {
		t.Fatalf("got (%f, %f), want unchanged", l, r)
	}
}

func TestLimiterHoldsCeiling(t *testing.T) {
	m := NewLimiter(48000, -1, 50)
	ceiling := dbToGain(-1)
	for i := 0; i < 4800; i++ {
		v := float32(1.8 * math.Sin(2*math.Pi*float64(i)/100))
		l, r := m.Process(v, -v)
		if abs32(l) > ceiling+1e-6 || abs32(r) > ceiling+1e-6 {
			t.Fatalf("frame %d: (%f, %f) exceeds ceiling %f", i, l, r, ceiling)
		}
	}
	if m.GainReduction() >= 1 {
		t.Fatal("expected gain reduction after loud input")
	}
}

func TestLimiterRecovers(t *testing.T) {
	m := NewLimiter(48000, 0, 5)
	m.Process(2, 2)
	for i := 0; i < 48000; i++ {
		m.Process(0.1, 0.1)
	}
	if g := m.GainReduction(); g < 0.99 {
		t.Fatalf("gain = %f after release, want ~1", g)
	}
	m.Process(2, 2)
	m.Reset()
	if m.GainReduction() != 1 {
		t.Fatal("reset should restore unity gain")
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewCompressor(48000, -40, 1, 1, 50, 12),
		NewLimiter(48000, -6, 50),
	)
	buf := []float32{0.4, 0.4, 0.9, -0.9}
	c.ProcessInterleaved(buf)
	ceiling := dbToGain(-6)
	for i, v := range buf {
		if abs32(v) > ceiling+1e-6 {
			t.Fatalf("sample %d = %f above limiter ceiling", i, v)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestEmptyChainIsTransparent(t *testing.T) {
	buf := []float32{0.3, -0.2}
	NewChain().ProcessInterleaved(buf)
	if buf[0] != 0.3 || buf[1] != -0.2 {
		t.Fatalf("buf = %v, want unchanged", buf)
	}
}
