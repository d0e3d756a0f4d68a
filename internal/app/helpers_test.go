// ABOUTME: Shared fakes for app module tests
// ABOUTME: Manual scheduler, frozen clocks, recording sink and feedback
package app

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/nu-go/internal/ui"
	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/output"
	"github.com/Resonate-Protocol/nu-go/pkg/grain"
)

const testRate = 1000

var epoch = time.Unix(1_700_000_000, 0)

// testAsset is one second of rising steps, ten segments of distinct power
func testAsset(id int) *Asset {
	buf := audio.NewBuffer(testRate, testRate)
	for i := range buf.Samples {
		buf.Samples[i] = float32(0.05 + 0.08*float64(i/100))
	}
	return &Asset{ID: id, Path: "test.wav", Buffer: buf, Segments: grain.Slice(buf, DefaultSliceLength)}
}

type scheduled struct {
	fn        func(time.Time) time.Duration
	cancelled bool
}

type manualScheduler struct {
	entries []*scheduled
}

func (m *manualScheduler) Schedule(fn func(time.Time) time.Duration) func() {
	e := &scheduled{fn: fn}
	m.entries = append(m.entries, e)
	return func() { e.cancelled = true }
}

func (m *manualScheduler) active() int {
	n := 0
	for _, e := range m.entries {
		if !e.cancelled {
			n++
		}
	}
	return n
}

// tick runs every live entry once, in registration order
func (m *manualScheduler) tick(now time.Time) {
	for _, e := range append([]*scheduled(nil), m.entries...) {
		if !e.cancelled {
			e.fn(now)
		}
	}
}

type fixedShared float64

func (f fixedShared) Now() float64 { return float64(f) }

// frozenClock never fires its timers
type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time { return c.now }

func (c frozenClock) AfterFunc(time.Duration, func()) func() bool {
	return func() bool { return true }
}

type testVoice struct {
	mu      sync.Mutex
	gain    float64
	stopped bool
	done    chan struct{}
}

func (v *testVoice) SetGain(g float64) {
	v.mu.Lock()
	v.gain = g
	v.mu.Unlock()
}

func (v *testVoice) Gain() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gain
}

func (v *testVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped {
		v.stopped = true
		close(v.done)
	}
}

func (v *testVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

func (v *testVoice) Done() <-chan struct{} { return v.done }

type recordedPlay struct {
	output.Played
	voice *testVoice
}

// recordingSink keeps every voice it hands out
type recordingSink struct {
	*output.Null
	mu     sync.Mutex
	voices []*testVoice
}

func newRecordingSink() *recordingSink {
	return &recordingSink{Null: output.NewNull(testRate)}
}

func (s *recordingSink) Play(buf audio.Buffer, gain float64, at time.Time, opts ...output.Option) output.Voice {
	s.Null.Play(buf, gain, at, opts...)
	v := &testVoice{gain: gain, done: make(chan struct{})}
	s.mu.Lock()
	s.voices = append(s.voices, v)
	s.mu.Unlock()
	return v
}

func (s *recordingSink) plays() []recordedPlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedPlay
	for i, p := range s.Null.Plays() {
		out = append(out, recordedPlay{Played: p, voice: s.voices[i]})
	}
	return out
}

type recordingFeedback struct {
	mu     sync.Mutex
	blinks []ui.Color
	active int
	beats  int
}

func (f *recordingFeedback) Blink(c ui.Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blinks = append(f.blinks, c)
}

func (f *recordingFeedback) Enable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active++
}

func (f *recordingFeedback) Disable() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}

func (f *recordingFeedback) Beat(time.Duration, int, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats++
}

func (f *recordingFeedback) lastBlink() ui.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.blinks) == 0 {
		return ui.Color{}
	}
	return f.blinks[len(f.blinks)-1]
}

func (f *recordingFeedback) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}
