// ABOUTME: Segment definitions and fixed-length slicing
// ABOUTME: Measures per-slice power when no analysis sidecar exists
package grain

import (
	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// Segment is an analyzed slice of an asset. Start and Duration are in seconds,
// Power is the mean-square level of the slice.
type Segment struct {
	Index    int     `json:"-"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Power    float64 `json:"power"`
}

// minPower floors silent segments at -120 dB so log-power stays finite.
const minPower = 1e-12

// LogPower returns the segment level in dB
func (s Segment) LogPower() float64 {
	p := s.Power
	if p < minPower {
		p = minPower
	}
	return audio.PowerToDecibel(p)
}

// Slice cuts buf into consecutive segments of the given length and measures
// their power. The last partial slice is kept if it is at least half as long.
func Slice(buf audio.Buffer, length float64) []Segment {
	n := int(length * float64(buf.SampleRate))
	if n <= 0 || buf.Len() == 0 {
		return nil
	}

	var segments []Segment
	for from := 0; from < buf.Len(); from += n {
		to := from + n
		if to > buf.Len() {
			if buf.Len()-from < n/2 && len(segments) > 0 {
				break
			}
			to = buf.Len()
		}

		var sum float64
		for _, s := range buf.Samples[from:to] {
			sum += float64(s) * float64(s)
		}

		segments = append(segments, Segment{
			Index:    len(segments),
			Start:    float64(from) / float64(buf.SampleRate),
			Duration: float64(to-from) / float64(buf.SampleRate),
			Power:    sum / float64(to-from),
		})
	}
	return segments
}

// Renumber sets each segment's Index to its position
func Renumber(segments []Segment) []Segment {
	for i := range segments {
		segments[i].Index = i
	}
	return segments
}
