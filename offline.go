package layerloop

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Processor renders one block of interleaved stereo output from one block of
// interleaved stereo input. *Looper and the bare engine both satisfy it.
type Processor interface {
	Process(in, out []float32)
}

// Cue runs a command before the given block is rendered.
type Cue struct {
	Block int
	Do    func() error
}

// Render drives p offline over in, one block of blockSize frames at a time,
// and returns the output. Cues fire in order before their block; rendering
// stops at the first cue that fails.
func Render(p Processor, in []float32, blockSize int, cues ...Cue) ([]float32, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	frames := len(in) / 2
	out := make([]float32, frames*2)
	next := 0
	for block, start := 0, 0; start < frames; block, start = block+1, start+blockSize {
		for next < len(cues) && cues[next].Block <= block {
			if err := cues[next].Do(); err != nil {
				return out[:start*2], fmt.Errorf("cue %d at block %d: %w", next, block, err)
			}
			next++
		}
		end := min(start+blockSize, frames)
		p.Process(in[start*2:end*2], out[start*2:end*2])
	}
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
