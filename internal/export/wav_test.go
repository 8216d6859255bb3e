package export

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cbegin/layerloop/internal/buffer"
)

func TestWriteDecodeRoundTrip(t *testing.T) {
	frames := make([]buffer.Frame, 480)
	for i := range frames {
		v := float32(0.8 * math.Sin(2*math.Pi*float64(i)/48))
		frames[i] = buffer.Frame{L: v, R: -v / 2}
	}
	path := filepath.Join(t.TempDir(), "layer.wav")
	if err := WriteFile(path, frames, 48000); err != nil {
		t.Fatalf("write: %v", err)
	}
	samples, rate, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 48000 {
		t.Fatalf("rate = %d, want 48000", rate)
	}
	if len(samples) != len(frames)*2 {
		t.Fatalf("decoded %d samples, want %d", len(samples), len(frames)*2)
	}
	const tol = 2.0 / 32767
	for i, f := range frames {
		if d := math.Abs(float64(samples[2*i] - f.L)); d > tol {
			t.Fatalf("frame %d left off by %g", i, d)
		}
		if d := math.Abs(float64(samples[2*i+1] - f.R)); d > tol {
			t.Fatalf("frame %d right off by %g", i, d)
		}
	}
}

func TestWriteClampsOutOfRange(t *testing.T) {
	cases := []struct {
		in   float32
		want int
	}{
		{1.5, 32767},
		{-3, -32767},
		{0, 0},
		{0.5, 16384},
	}
	for _, tc := range cases {
		if got := toPCM16(tc.in); got != tc.want {
			t.Errorf("toPCM16(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("definitely not a wav file, just text")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("err = %v, want ErrInvalidWAV", err)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	_, _, err := DecodeFile(filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}
