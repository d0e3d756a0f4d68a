// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for sinks that play scheduled mono buffers
package output

import (
	"time"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// Sink plays mono buffers at a local wall-clock instant
type Sink interface {
	// Play schedules buf at local time at (immediately if at has passed)
	Play(buf audio.Buffer, gain float64, at time.Time, opts ...Option) Voice

	// SampleRate is the rate buffers must be rendered at
	SampleRate() int

	// Close releases output resources
	Close() error
}

// Voice is one scheduled or sounding buffer
type Voice interface {
	// SetGain changes the voice gain while it plays
	SetGain(gain float64)

	// Stop halts the voice; pending starts are cancelled
	Stop()

	// Done is closed once the voice has finished or been stopped
	Done() <-chan struct{}
}

// Option adjusts how a buffer is played
type Option func(*playConfig)

type playConfig struct {
	offset float64
	loop   bool
}

// WithOffset starts playback offset seconds into the buffer
func WithOffset(seconds float64) Option {
	return func(c *playConfig) {
		c.offset = seconds
	}
}

// WithLoop repeats the buffer until the voice is stopped
func WithLoop(loop bool) Option {
	return func(c *playConfig) {
		c.loop = loop
	}
}

func newPlayConfig(opts []Option) playConfig {
	var c playConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}
