// ABOUTME: Unit tests for PCM and WAV encoding
// ABOUTME: Tests gain scaling, channel duplication and WAV decoding of written files
package encode

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/decode"
)

func TestPCM16(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float32
		gain     float64
		channels int
		want     []int16
	}{
		{"unity mono", []float32{0, 1, -1}, 1, 1, []int16{0, math.MaxInt16, -math.MaxInt16}},
		{"half gain", []float32{1}, 0.5, 1, []int16{16383}},
		{"stereo duplicate", []float32{1, 0}, 1, 2, []int16{math.MaxInt16, math.MaxInt16, 0, 0}},
		{"clip above range", []float32{0.9}, 4, 1, []int16{math.MaxInt16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := PCM16(tt.samples, tt.gain, tt.channels)
			if len(out) != len(tt.want)*2 {
				t.Fatalf("expected %d bytes, got %d", len(tt.want)*2, len(out))
			}
			for i, w := range tt.want {
				got := int16(binary.LittleEndian.Uint16(out[i*2:]))
				if got != w {
					t.Errorf("sample %d: expected %d, got %d", i, w, got)
				}
			}
		})
	}
}

func TestWAVWrittenFileDecodes(t *testing.T) {
	buf := audio.NewBuffer(4410, 44100)
	for i := range buf.Samples {
		buf.Samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
	}

	path := filepath.Join(t.TempDir(), "render.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WAV(f, buf, 0.5); err != nil {
		t.Fatalf("WAV: %v", err)
	}
	f.Close()

	got, err := decode.File(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SampleRate != 44100 {
		t.Errorf("expected 44100Hz, got %d", got.SampleRate)
	}
	if got.Len() != buf.Len() {
		t.Fatalf("expected %d samples, got %d", buf.Len(), got.Len())
	}
	for i := 0; i < got.Len(); i += 97 {
		want := buf.Samples[i] * 0.5
		if math.Abs(float64(got.Samples[i]-want)) > 1e-3 {
			t.Errorf("sample %d: expected %v, got %v", i, want, got.Samples[i])
		}
	}
}
