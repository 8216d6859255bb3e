package effects

import "math"

// Compressor is a stereo-linked feed-forward compressor. Both sides share
// one envelope so loud material on one side does not shift the image.
type Compressor struct {
	threshold float32
	slope     float32 // 1/ratio - 1
	attack    float32
	release   float32
	makeup    float32
	env       float32
}

// NewCompressor builds a compressor. thresholdDB is where gain reduction
// starts, ratio is the input:output slope above it, and attackMs/releaseMs
// set the envelope time constants.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: dbToGain(thresholdDB),
		slope:     1/ratio - 1,
		attack:    coefficient(sampleRate, attackMs),
		release:   coefficient(sampleRate, releaseMs),
		makeup:    dbToGain(makeupDB),
	}
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain(c.env) * c.makeup
	return l * g, r * g
}

func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	return float32(math.Pow(float64(env/c.threshold), float64(c.slope)))
}

func (c *Compressor) Reset() { c.env = 0 }

func dbToGain(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

// coefficient turns a time constant into a one-pole smoothing factor.
func coefficient(sampleRate int, ms float32) float32 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(float64(ms)*float64(sampleRate)/1000)))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
