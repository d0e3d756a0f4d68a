// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a whole FLAC stream frame by frame to mono float samples
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLAC decodes a FLAC stream
func FLAC(r io.ReadSeeker) (audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	if channels == 0 {
		return audio.Buffer{}, fmt.Errorf("flac stream has no channels")
	}

	var mono []float32
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("flac frame error: %w", err)
		}

		n := len(f.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += audio.SampleFromInt(f.Subframes[ch].Samples[i], bitDepth)
			}
			mono = append(mono, sum/float32(channels))
		}
	}

	return audio.Buffer{
		Samples:    mono,
		SampleRate: int(stream.Info.SampleRate),
	}, nil
}
