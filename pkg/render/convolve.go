// ABOUTME: Sparse tap-delay convolution renderer
// ABOUTME: Sums delayed, gain-scaled and speed-varied copies of an asset per tap
package render

import (
	"math"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
)

// MinSamples is the shortest rendered buffer
const MinSamples = 512

// Params shapes how the asset is read for each tap
type Params struct {
	// StartFraction moves each tap's read start to this fraction of its delay
	StartFraction float64
	// Perc is the fraction of the remaining asset each tap plays
	Perc float64
	// Loop wraps read starts that run past the asset end
	Loop bool
	// Slope speeds up reading by Slope per second of tap delay
	Slope      float64
	MasterGain float64
}

// DefaultParams plays the whole asset at normal speed from the start
func DefaultParams() Params {
	return Params{
		StartFraction: 0,
		Perc:          1,
		Loop:          true,
		Slope:         0,
		MasterGain:    1,
	}
}

// Result is a rendered buffer and the single gain to play it at
type Result struct {
	Buffer audio.Buffer
	Gain   float64
}

// Render convolves input with the tap list. The output is never shorter than
// MinSamples and the returned gain normalizes its peak to the loudest tap,
// scaled by the master gain.
func Render(input audio.Buffer, taps propagation.TapList, p Params) Result {
	sr := float64(input.SampleRate)
	inLen := input.Len()

	outLen := int(math.Ceil((taps.Duration + input.Seconds() + 1) * sr))
	if outLen < MinSamples {
		outLen = MinSamples
	}
	out := audio.NewBuffer(outLen, input.SampleRate)

	for _, tap := range taps.Taps {
		addTap(out.Samples, input.Samples, inLen, tap, sr, p)
	}

	var peak float64
	for _, s := range out.Samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	normalize := taps.MaxGain() / math.Max(peak, 1)

	return Result{Buffer: out, Gain: normalize * p.MasterGain}
}

func addTap(out, in []float32, inLen int, tap propagation.Tap, sr float64, p Params) {
	if inLen == 0 {
		return
	}

	d := int(math.Round(tap.Delay * sr))
	readStart := int(math.Floor(p.StartFraction * float64(d)))
	if p.Loop {
		readStart %= inLen
		if readStart < 0 {
			readStart += inLen
		}
	}
	if readStart < 0 || readStart >= inLen {
		return
	}

	readSpeed := 1 + p.Slope*tap.Delay
	if readSpeed <= 0 {
		return
	}

	n := int(math.Floor(float64(inLen-readStart) * p.Perc))
	n = int(math.Floor(float64(n) / readSpeed))

	g := float32(tap.Gain)
	for i := 0; i < n; i++ {
		dst := d + i
		src := readStart + int(math.Round(float64(i)*readSpeed))
		if dst < 0 {
			continue
		}
		if dst >= len(out) || src >= inLen {
			break
		}
		out[dst] += g * in[src]
	}
}
