// ABOUTME: Sample reader shared by the output sinks
// ABOUTME: Streams a mono buffer as 16-bit PCM with live gain, looping and stop
package output

import (
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/encode"
)

// voiceReader implements io.Reader over a buffer for the oto player
type voiceReader struct {
	samples  []float32
	channels int
	pos      int
	loop     bool

	gain    atomic.Uint64
	stopped atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

func newVoiceReader(buf audio.Buffer, gain float64, channels int, cfg playConfig) *voiceReader {
	v := &voiceReader{
		samples:  buf.Samples,
		channels: channels,
		loop:     cfg.loop,
		done:     make(chan struct{}),
	}
	if cfg.offset > 0 && len(buf.Samples) > 0 {
		v.pos = int(cfg.offset*float64(buf.SampleRate)) % len(buf.Samples)
	}
	v.SetGain(gain)
	return v
}

func (v *voiceReader) Read(p []byte) (int, error) {
	if v.stopped.Load() || len(v.samples) == 0 {
		v.finish()
		return 0, io.EOF
	}

	frameBytes := 2 * v.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	gain := math.Float64frombits(v.gain.Load())
	written := 0
	for written < frames {
		if v.pos >= len(v.samples) {
			if !v.loop {
				break
			}
			v.pos = 0
		}
		n := len(v.samples) - v.pos
		if n > frames-written {
			n = frames - written
		}
		chunk := encode.PCM16(v.samples[v.pos:v.pos+n], gain, v.channels)
		copy(p[written*frameBytes:], chunk)
		written += n
		v.pos += n
	}

	if written == 0 {
		v.finish()
		return 0, io.EOF
	}
	return written * frameBytes, nil
}

func (v *voiceReader) SetGain(gain float64) {
	v.gain.Store(math.Float64bits(gain))
}

func (v *voiceReader) finish() {
	v.doneOnce.Do(func() {
		close(v.done)
	})
}

func (v *voiceReader) Done() <-chan struct{} {
	return v.done
}
