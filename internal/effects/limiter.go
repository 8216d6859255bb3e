package effects

// Limiter keeps the master bus under a ceiling. Gain drops instantly when a
// frame would exceed the ceiling and recovers at the release rate, so the
// output never crosses the ceiling and loud passages are not squared off the
// way a hard clip would.
type Limiter struct {
	ceiling float32
	release float32
	gain    float32
}

func NewLimiter(sampleRate int, ceilingDB, releaseMs float32) *Limiter {
	ceiling := dbToGain(ceilingDB)
	if ceiling > 1 {
		ceiling = 1
	}
	return &Limiter{
		ceiling: ceiling,
		release: coefficient(sampleRate, releaseMs),
		gain:    1,
	}
}

func (m *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak*m.gain > m.ceiling {
		m.gain = m.ceiling / peak
	} else if m.gain < 1 {
		m.gain += m.release * (1 - m.gain)
		if peak*m.gain > m.ceiling {
			m.gain = m.ceiling / peak
		}
	}
	return l * m.gain, r * m.gain
}

// GainReduction is the current attenuation as a linear factor in (0, 1].
func (m *Limiter) GainReduction() float32 { return m.gain }

func (m *Limiter) Reset() { m.gain = 1 }
