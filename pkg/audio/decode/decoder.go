// ABOUTME: Decoder selection for audio assets
// ABOUTME: Maps file extensions to whole-file decoders producing mono buffers
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// Decoder reads a complete encoded stream into a mono buffer
type Decoder func(r io.ReadSeeker) (audio.Buffer, error)

// ForPath returns the decoder for a file based on its extension
func ForPath(path string) (Decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return MP3, nil
	case ".flac":
		return FLAC, nil
	case ".wav", ".wave":
		return WAV, nil
	default:
		return nil, fmt.Errorf("unsupported audio format: %q", ext)
	}
}

// File decodes the audio file at path
func File(path string) (audio.Buffer, error) {
	dec, err := ForPath(path)
	if err != nil {
		return audio.Buffer{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf, err := dec(f)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return buf, nil
}
