// ABOUTME: Silent output for headless nodes and tests
// ABOUTME: Tracks voices and completes them after the buffer duration
package output

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// Null is a Sink that renders nothing
type Null struct {
	sampleRate int

	mu    sync.Mutex
	plays []Played
}

// Played records one Play call on a Null sink
type Played struct {
	Buffer audio.Buffer
	Gain   float64
	At     time.Time
	Offset float64
	Loop   bool
}

type nullVoice struct {
	mu    sync.Mutex
	gain  float64
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

// NewNull creates a silent sink
func NewNull(sampleRate int) *Null {
	return &Null{sampleRate: sampleRate}
}

// Play records the request; non-looping voices finish after their duration
func (n *Null) Play(buf audio.Buffer, gain float64, at time.Time, opts ...Option) Voice {
	cfg := newPlayConfig(opts)

	n.mu.Lock()
	n.plays = append(n.plays, Played{Buffer: buf, Gain: gain, At: at, Offset: cfg.offset, Loop: cfg.loop})
	n.mu.Unlock()

	v := &nullVoice{gain: gain, done: make(chan struct{})}
	if !cfg.loop {
		remaining := buf.Duration() - time.Duration(cfg.offset*float64(time.Second))
		if remaining < 0 {
			remaining = 0
		}
		v.mu.Lock()
		v.timer = time.AfterFunc(time.Until(at)+remaining, v.finish)
		v.mu.Unlock()
	}
	return v
}

// Plays returns a copy of the recorded requests
func (n *Null) Plays() []Played {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Played(nil), n.plays...)
}

// SampleRate returns the configured rate
func (n *Null) SampleRate() int {
	return n.sampleRate
}

// Close is a no-op
func (n *Null) Close() error {
	return nil
}

func (v *nullVoice) SetGain(gain float64) {
	v.mu.Lock()
	v.gain = gain
	v.mu.Unlock()
}

func (v *nullVoice) Stop() {
	v.mu.Lock()
	if v.timer != nil {
		v.timer.Stop()
	}
	v.mu.Unlock()
	v.finish()
}

func (v *nullVoice) finish() {
	v.once.Do(func() {
		close(v.done)
	})
}

func (v *nullVoice) Done() <-chan struct{} {
	return v.done
}
