// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Used to match asset rates to the output and to pitch-shift grains
package resample

import (
	"math"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64
	position   float64
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// NewRatio creates a resampler that advances ratio input samples per output sample
func NewRatio(ratio float64) *Resampler {
	return &Resampler{ratio: ratio}
}

// Resample converts input samples using linear interpolation and returns
// the number of output samples written
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	outIdx := 0
	for outIdx < len(output) {
		inputIdx := int(r.position)

		// If we've consumed all input, stop
		if inputIdx >= len(input)-1 {
			break
		}

		frac := float32(r.position - float64(inputIdx))
		output[outIdx] = input[inputIdx]*(1-frac) + input[inputIdx+1]*frac

		outIdx++
		r.position += r.ratio
	}

	// Keep the fractional part for the next chunk
	r.position -= float64(int(r.position))

	return outIdx
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	return int(float64(inputSamples) / r.ratio)
}

// Buffer converts a whole buffer to the target sample rate
func Buffer(buf audio.Buffer, rate int) audio.Buffer {
	if buf.SampleRate == rate || buf.SampleRate <= 0 {
		return buf
	}
	r := New(buf.SampleRate, rate)
	out := make([]float32, r.OutputSamplesNeeded(len(buf.Samples)))
	n := r.Resample(buf.Samples, out)
	return audio.Buffer{Samples: out[:n], SampleRate: rate}
}

// Cents shifts the pitch of samples by the given number of cents, changing their length
func Cents(samples []float32, cents float64) []float32 {
	if cents == 0 || len(samples) < 2 {
		return samples
	}
	r := NewRatio(math.Pow(2, cents/1200))
	out := make([]float32, r.OutputSamplesNeeded(len(samples)))
	n := r.Resample(samples, out)
	return out[:n]
}
