package audio

import "sync/atomic"

// LoopSource plays a fixed interleaved stereo clip as input, wrapping at the
// end. It stands in for a live instrument when rehearsing or testing.
type LoopSource struct {
	samples []float32
	pos     int
	enabled atomic.Bool
}

func NewLoopSource(samples []float32) *LoopSource {
	s := &LoopSource{samples: samples[:len(samples)&^1]}
	s.SetEnabled(true)
	return s
}

// SetEnabled gates the clip without losing its place.
func (s *LoopSource) SetEnabled(on bool) {
	s.enabled.Store(on)
}

func (s *LoopSource) Read(dst []float32) {
	if len(s.samples) == 0 || !s.enabled.Load() {
		clear(dst)
		return
	}
	for i := range dst {
		dst[i] = s.samples[s.pos]
		s.pos++
		if s.pos == len(s.samples) {
			s.pos = 0
		}
	}
}
