// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a whole MP3 stream to mono float samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func MP3(r io.ReadSeeker) (audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	data, err := io.ReadAll(decoder)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(data) / 2
	interleaved := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(data[i*2:]))
		interleaved[i] = audio.SampleFromInt16(sample16)
	}

	return audio.Buffer{
		Samples:    audio.MixDown(interleaved, 2),
		SampleRate: decoder.SampleRate(),
	}, nil
}
