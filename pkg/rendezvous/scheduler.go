// ABOUTME: Rendezvous scheduler
// ABOUTME: Starts buffers at a shared-clock instant on the local clock, rejecting missed instants
package rendezvous

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/output"
)

// ErrMissed is returned when the rendezvous time is not in the future
var ErrMissed = errors.New("rendezvous time already passed")

// SharedClock reads the time all nodes agree on, in seconds
type SharedClock interface {
	Now() float64
}

// Clock is the local wall clock
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the real local clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc
func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Playback is one buffer handed to the sink
type Playback struct {
	ID    uint64
	Start time.Time
	Voice output.Voice

	stopTimer func() bool
	done      chan struct{}
	once      sync.Once
}

// Done is closed when the playback completes or is stopped
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

func (p *Playback) finish() {
	p.once.Do(func() {
		close(p.done)
	})
}

// Scheduler converts shared-clock start times into local sink starts and
// tracks what is playing
type Scheduler struct {
	shared SharedClock
	local  Clock
	sink   output.Sink

	mu     sync.Mutex
	active map[uint64]*Playback
	nextID uint64

	// OnComplete, if set, runs after a playback ends naturally
	OnComplete func(p *Playback)
}

// New creates a scheduler
func New(shared SharedClock, local Clock, sink output.Sink) *Scheduler {
	if local == nil {
		local = SystemClock{}
	}
	return &Scheduler{
		shared: shared,
		local:  local,
		sink:   sink,
		active: make(map[uint64]*Playback),
	}
}

// Schedule starts buf at shared time target. A target at or before the shared
// now fails with ErrMissed and the sink is never touched.
func (s *Scheduler) Schedule(target float64, buf audio.Buffer, gain float64, opts ...output.Option) (*Playback, error) {
	now := s.shared.Now()
	localNow := s.local.Now()

	if target <= now {
		return nil, fmt.Errorf("%w: %.3fs late", ErrMissed, now-target)
	}

	lead := seconds(target - now)
	p := s.start(localNow.Add(lead), buf, gain, opts)

	p.stopTimer = s.local.AfterFunc(lead+buf.Duration(), func() {
		if s.remove(p) {
			p.finish()
			if s.OnComplete != nil {
				s.OnComplete(p)
			}
		}
	})

	return p, nil
}

// Join starts a looping buffer that began, or will begin, at shared time
// target. Future targets are scheduled; past targets start now at the
// position the buffer would have reached.
func (s *Scheduler) Join(target float64, buf audio.Buffer, gain float64, loop bool) *Playback {
	now := s.shared.Now()
	localNow := s.local.Now()

	if target > now {
		return s.start(localNow.Add(seconds(target-now)), buf, gain, []output.Option{output.WithLoop(loop)})
	}

	offset := now - target
	if d := buf.Seconds(); d > 0 {
		offset = math.Mod(offset, d)
	}
	return s.start(localNow, buf, gain, []output.Option{output.WithLoop(loop), output.WithOffset(offset)})
}

func (s *Scheduler) start(at time.Time, buf audio.Buffer, gain float64, opts []output.Option) *Playback {
	s.mu.Lock()
	s.nextID++
	p := &Playback{ID: s.nextID, Start: at, done: make(chan struct{})}
	s.active[p.ID] = p
	s.mu.Unlock()

	p.Voice = s.sink.Play(buf, gain, at, opts...)

	if p.ID <= 3 {
		log.Printf("Rendezvous playback #%d starts in %v", p.ID, at.Sub(s.local.Now()).Round(time.Millisecond))
	}
	return p
}

// Stop halts one playback
func (s *Scheduler) Stop(p *Playback) {
	if !s.remove(p) {
		return
	}
	if p.stopTimer != nil {
		p.stopTimer()
	}
	p.Voice.Stop()
	p.finish()
}

// Reset stops every active playback and returns how many were stopped
func (s *Scheduler) Reset() int {
	s.mu.Lock()
	playing := make([]*Playback, 0, len(s.active))
	for _, p := range s.active {
		playing = append(playing, p)
	}
	s.active = make(map[uint64]*Playback)
	s.mu.Unlock()

	for _, p := range playing {
		if p.stopTimer != nil {
			p.stopTimer()
		}
		p.Voice.Stop()
		p.finish()
	}
	return len(playing)
}

// Active returns the number of playbacks in flight
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) remove(p *Playback) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[p.ID]; !ok {
		return false
	}
	delete(s.active, p.ID)
	return true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
