// ABOUTME: WAV file encoder
// ABOUTME: Writes mono buffers as 16-bit WAV files using go-audio
package encode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV writes buf scaled by gain as a 16-bit mono WAV stream
func WAV(w io.WriteSeeker, buf audio.Buffer, gain float64) error {
	enc := wav.NewEncoder(w, buf.SampleRate, 16, 1, 1)

	data := make([]int, len(buf.Samples))
	g := float32(gain)
	for i, s := range buf.Samples {
		data[i] = int(audio.SampleToInt16(s * g))
	}

	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav close failed: %w", err)
	}
	return nil
}
