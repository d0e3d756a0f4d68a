// ABOUTME: Grain rendering
// ABOUTME: Cuts a grain from its asset, applies the envelope and pitch deviation
package grain

import (
	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/resample"
)

// Render returns the buffer to play for ev. Gain is left to the sink.
func Render(src audio.Buffer, ev Event) audio.Buffer {
	dur := ev.Params.GrainDuration(ev.Segment)
	offset, attack, release := ev.Params.Envelope(dur)

	// the pre-roll offset reads ahead of the segment onset
	start := ev.Segment.Start - offset
	length := dur + offset
	if start < 0 {
		length += start
		start = 0
	}

	cut := src.Slice(start, length)
	samples := make([]float32, cut.Len())
	copy(samples, cut.Samples)

	sr := float64(src.SampleRate)
	applyEnvelope(samples, int(attack*sr), int(release*sr))

	return audio.Buffer{
		Samples:    resample.Cents(samples, ev.Cents),
		SampleRate: src.SampleRate,
	}
}

// applyEnvelope fades in over attack samples and out over release samples,
// shrinking both proportionally when they overlap
func applyEnvelope(samples []float32, attack, release int) {
	n := len(samples)
	if attack < 0 {
		attack = 0
	}
	if release < 0 {
		release = 0
	}
	if attack+release > n && attack+release > 0 {
		attack = attack * n / (attack + release)
		release = n - attack
	}

	for i := 0; i < attack; i++ {
		samples[i] *= float32(i) / float32(attack)
	}
	for i := 0; i < release; i++ {
		samples[n-1-i] *= float32(i) / float32(release)
	}
}
