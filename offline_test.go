package layerloop

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	intaudio "github.com/cbegin/layerloop/internal/audio"
	"github.com/cbegin/layerloop/internal/buffer"
	"github.com/cbegin/layerloop/internal/export"
)

const (
	testRate  = 48000
	testBlock = 64
)

func newTestLooper(t *testing.T, channels, window int, opts ...Option) *Looper {
	t.Helper()
	l, err := New(Config{
		Channels:      channels,
		Window:        window,
		SampleRate:    testRate,
		BlockSize:     testBlock,
		MaxLoopFrames: testBlock * 64,
	}, opts...)
	if err != nil {
		t.Fatalf("new looper: %v", err)
	}
	return l
}

func tone(frames int, hz, amp float64) []float32 {
	out := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(amp * math.Sin(2*math.Pi*hz*float64(i)/testRate))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

func TestRenderRecordsAndPlaysBack(t *testing.T) {
	l := newTestLooper(t, 2, 1)
	const loop = 4 * testBlock
	in := append(tone(loop, 1000, 0.5), make([]float32, loop*2)...)
	out, err := Render(l, in, testBlock,
		Cue{Block: 0, Do: func() error { return l.StartRecording(0) }},
		Cue{Block: 4, Do: func() error { return l.CloseRecording(0) }},
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for i := 0; i < loop*2; i++ {
		if out[i] != 0 {
			t.Fatalf("sample %d = %v while recording, want silence", i, out[i])
		}
	}
	for i := 0; i < loop*2; i++ {
		if got, want := out[loop*2+i], in[i]; got != want {
			t.Fatalf("playback sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestRenderStopsAtFailingCue(t *testing.T) {
	l := newTestLooper(t, 2, 1)
	in := make([]float32, 8*testBlock*2)
	out, err := Render(l, in, testBlock,
		Cue{Block: 3, Do: func() error { return l.StartOverdub(1) }},
	)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if len(out) != 3*testBlock*2 {
		t.Fatalf("rendered %d samples before the failing cue, want %d", len(out), 3*testBlock*2)
	}
}

func TestRenderPartialLastBlock(t *testing.T) {
	l := newTestLooper(t, 1, 1)
	in := make([]float32, (testBlock+10)*2)
	out, err := Render(l, in, testBlock)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	if _, err := Render(l, in, 0); err == nil {
		t.Fatal("expected error for zero block size")
	}
}

func TestLimiterKeepsMixUnderCeiling(t *testing.T) {
	l := newTestLooper(t, 3, 3, WithLimiter(-6))
	const loop = 4 * testBlock
	loud := tone(loop, 500, 0.9)
	for slot := 0; slot < 2; slot++ {
		if _, err := Render(l, loud, testBlock,
			Cue{Do: func() error { return l.StartRecording(slot) }},
		); err != nil {
			t.Fatal(err)
		}
		if slot == 0 {
			if err := l.CloseRecording(0); err != nil {
				t.Fatal(err)
			}
		}
	}
	out, err := Render(l, make([]float32, loop*2), testBlock)
	if err != nil {
		t.Fatal(err)
	}
	ceiling := float32(math.Pow(10, -6.0/20)) + 1e-6
	for i, v := range out {
		if v > ceiling || v < -ceiling {
			t.Fatalf("sample %d = %v above ceiling", i, v)
		}
	}
}

func peak(samples []float32) float32 {
	var p float32
	for _, v := range samples {
		p = max(p, v, -v)
	}
	return p
}

func TestCompressorTamesLoudLoop(t *testing.T) {
	const loop = 32 * testBlock
	loud := tone(loop, 1000, 0.8)
	render := func(opts ...Option) []float32 {
		l := newTestLooper(t, 1, 1, opts...)
		if _, err := Render(l, loud, testBlock,
			Cue{Do: func() error { return l.StartRecording(0) }},
		); err != nil {
			t.Fatal(err)
		}
		if err := l.CloseRecording(0); err != nil {
			t.Fatal(err)
		}
		out, err := Render(l, make([]float32, 3*loop*2), testBlock)
		if err != nil {
			t.Fatal(err)
		}
		return out[2*loop*2:]
	}

	dry := peak(render())
	wet := peak(render(WithCompressor(-20, 4)))
	both := peak(render(WithCompressor(-20, 4), WithLimiter(-30)))
	if dry < 0.75 {
		t.Fatalf("uncompressed peak %v, want about 0.8", dry)
	}
	if wet <= 0 || wet > dry/2 {
		t.Fatalf("compressed peak %v, want well under %v", wet, dry)
	}
	if ceiling := float32(math.Pow(10, -30.0/20)) + 1e-6; both > ceiling {
		t.Fatalf("compressor then limiter peak %v, above the %v ceiling", both, ceiling)
	}
}

func TestSampleTapSeesEveryBlock(t *testing.T) {
	var blocks int
	l := newTestLooper(t, 1, 1, WithSampleTap(func(buf []float32) { blocks++ }))
	if _, err := Render(l, make([]float32, 5*testBlock*2), testBlock); err != nil {
		t.Fatal(err)
	}
	if blocks != 5 {
		t.Fatalf("tap saw %d blocks, want 5", blocks)
	}
}

func TestExportWindow(t *testing.T) {
	l := newTestLooper(t, 3, 2)
	dir := filepath.Join(t.TempDir(), "out")
	if _, err := l.ExportWindow(dir); !errors.Is(err, ErrNotEstablished) {
		t.Fatalf("err = %v, want ErrNotEstablished", err)
	}
	const loop = 4 * testBlock
	if _, err := Render(l, tone(loop, 1000, 0.5), testBlock,
		Cue{Do: func() error { return l.StartRecording(1) }},
	); err != nil {
		t.Fatal(err)
	}
	if err := l.CloseRecording(1); err != nil {
		t.Fatal(err)
	}
	paths, err := l.ExportWindow(dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := []string{filepath.Join(dir, "layer_02.wav"), filepath.Join(dir, "mix.wav")}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	samples, rate, err := export.DecodeFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if rate != testRate || len(samples) != loop*2 {
		t.Fatalf("layer file: rate %d, %d samples", rate, len(samples))
	}
}

func TestLoadInputChecksRate(t *testing.T) {
	l := newTestLooper(t, 1, 1)
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := export.WriteFile(path, make([]buffer.Frame, 100), 44100); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadInput(path); err == nil {
		t.Fatal("expected sample rate mismatch")
	}
	if err := export.WriteFile(path, make([]buffer.Frame, 100), testRate); err != nil {
		t.Fatal(err)
	}
	if _, err := l.LoadInput(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := l.LoadInput(filepath.Join(t.TempDir(), "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestStartRejectsUnknownBackend(t *testing.T) {
	l := newTestLooper(t, 1, 1)
	if err := l.Start(intaudio.Options{Kind: "jack"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if l.Backend() != nil {
		t.Fatal("failed start should leave no backend")
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("stop while idle: %v", err)
	}
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	samples := []float32{0.5, -0.5, 1, -1}
	wav := EncodeWAVFloat32LE(samples, testRate, 2)
	if len(wav) != 44+len(samples)*4 {
		t.Fatalf("len = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatal("bad chunk ids")
	}
	if f := binary.LittleEndian.Uint16(wav[20:]); f != 3 {
		t.Fatalf("format = %d, want 3 (float)", f)
	}
	if r := binary.LittleEndian.Uint32(wav[24:]); r != testRate {
		t.Fatalf("rate = %d", r)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(wav[44+4:])); got != -0.5 {
		t.Fatalf("second sample = %v, want -0.5", got)
	}
}
