package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cbegin/layerloop/internal/buffer"
)

const (
	bitDepth  = 16
	pcmFormat = 1
)

var ErrInvalidWAV = errors.New("invalid WAV data")

// WriteFrames encodes frames as 16-bit stereo PCM.
func WriteFrames(w io.WriteSeeker, frames []buffer.Frame, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 2, pcmFormat)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(frames)*2),
		SourceBitDepth: bitDepth,
	}
	for i, f := range frames {
		buf.Data[2*i] = toPCM16(f.L)
		buf.Data[2*i+1] = toPCM16(f.R)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// WriteFile writes frames to a new WAV file at path.
func WriteFile(path string, frames []buffer.Frame, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFrames(f, frames, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Decode reads a PCM WAV stream into interleaved stereo float32 samples.
// Mono input is duplicated to both sides; channels beyond the second are
// dropped.
func Decode(r io.ReadSeeker) (samples []float32, sampleRate int, err error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalidWAV
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	chans := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if chans < 1 || depth < 8 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: %d channels at %d bits", ErrInvalidWAV, chans, depth)
	}
	scale := float32(math.Exp2(float64(depth - 1)))
	frames := len(pcm.Data) / chans
	samples = make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		l := pcmToFloat(pcm.Data[i*chans], depth, scale)
		r := l
		if chans > 1 {
			r = pcmToFloat(pcm.Data[i*chans+1], depth, scale)
		}
		samples[2*i] = l
		samples[2*i+1] = r
	}
	return samples, int(dec.SampleRate), nil
}

// DecodeFile opens and decodes the WAV file at path.
func DecodeFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	samples, rate, err := Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, rate, nil
}

func toPCM16(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(math.Round(float64(v) * math.MaxInt16))
}

// 8-bit WAV is unsigned; everything wider is signed.
func pcmToFloat(v, depth int, scale float32) float32 {
	if depth == 8 {
		v -= 128
	}
	return float32(v) / scale
}
