// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE files to mono float samples using go-audio
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/go-audio/wav"
)

// WAV decodes a WAV stream
func WAV(r io.ReadSeeker) (audio.Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return audio.Buffer{}, fmt.Errorf("invalid wav file")
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("wav decode error: %w", err)
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}

	interleaved := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		interleaved[i] = audio.SampleFromInt(int32(v), bitDepth)
	}

	return audio.Buffer{
		Samples:    audio.MixDown(interleaved, pcm.Format.NumChannels),
		SampleRate: pcm.Format.SampleRate,
	}, nil
}
