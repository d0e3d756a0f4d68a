// ABOUTME: PCM audio encoder
// ABOUTME: Encodes mono float samples to 16-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// PCM16 encodes samples scaled by gain into 16-bit LE PCM, duplicated over channels
func PCM16(samples []float32, gain float64, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	output := make([]byte, len(samples)*2*channels)
	g := float32(gain)
	for i, sample := range samples {
		v := uint16(audio.SampleToInt16(sample * g))
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(output[(i*channels+ch)*2:], v)
		}
	}
	return output
}
