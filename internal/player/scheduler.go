// ABOUTME: Single-goroutine timeline for a player node
// ABOUTME: Serializes timed callbacks, periodic ticks and posted work in local-time order
package player

import (
	"container/heap"
	"log"
	"sync"
	"time"
)

// lateThreshold is how far past its time a callback may run before it is
// counted as late
const lateThreshold = 50 * time.Millisecond

// Timeline runs every callback of a node on one goroutine, ordered by local
// wall-clock time. It implements the periodic scheduler the granular engine
// ticks on.
type Timeline struct {
	now func() time.Time

	mu     sync.Mutex
	queue  *eventQueue
	posted []func()
	seq    uint64
	stats  TimelineStats

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// TimelineStats tracks timeline metrics
type TimelineStats struct {
	Fired     int64
	Late      int64
	Cancelled int64
}

// Handle identifies a queued callback
type Handle struct {
	ev *timedEvent
}

type timedEvent struct {
	at        time.Time
	seq       uint64
	fn        func(now time.Time) time.Duration
	periodic  bool
	cancelled bool
	index     int
}

// NewTimeline creates a timeline on the system clock and starts its loop
func NewTimeline() *Timeline {
	t := newTimeline(time.Now)
	go t.run()
	return t
}

func newTimeline(now func() time.Time) *Timeline {
	q := &eventQueue{}
	heap.Init(q)
	return &Timeline{
		now:   now,
		queue: q,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Post runs fn on the timeline goroutine as soon as possible
func (t *Timeline) Post(fn func()) {
	t.mu.Lock()
	t.posted = append(t.posted, fn)
	t.mu.Unlock()
	t.signal()
}

// At runs fn once at local time at
func (t *Timeline) At(at time.Time, fn func()) Handle {
	return t.push(at, func(time.Time) time.Duration {
		fn()
		return 0
	}, false)
}

// After runs fn once after d
func (t *Timeline) After(d time.Duration, fn func()) Handle {
	return t.At(t.now().Add(d), fn)
}

// Now reads the local clock the timeline runs on
func (t *Timeline) Now() time.Time {
	return t.now()
}

// AfterFunc runs f on the timeline after d. stop reports whether it kept f
// from running.
func (t *Timeline) AfterFunc(d time.Duration, f func()) (stop func() bool) {
	h := t.After(d, f)
	return func() bool {
		return t.cancel(h)
	}
}

// Schedule runs fn now and then again after each period fn returns. A
// non-positive period ends the series.
func (t *Timeline) Schedule(fn func(now time.Time) time.Duration) (cancel func()) {
	h := t.push(t.now(), fn, true)
	return func() {
		t.Cancel(h)
	}
}

// Cancel removes a queued callback; cancelling twice is a no-op
func (t *Timeline) Cancel(h Handle) {
	t.cancel(h)
}

// cancel reports whether the callback was still queued
func (t *Timeline) cancel(h Handle) bool {
	if h.ev == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if h.ev.cancelled {
		return false
	}
	h.ev.cancelled = true
	t.stats.Cancelled++
	if h.ev.index < 0 {
		return false
	}
	heap.Remove(t.queue, h.ev.index)
	return true
}

// Pending returns the number of queued timed callbacks
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Len()
}

// Stats returns timeline statistics
func (t *Timeline) Stats() TimelineStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Close stops the loop and waits for it to exit. Queued callbacks are
// discarded.
func (t *Timeline) Close() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	<-t.done
}

func (t *Timeline) push(at time.Time, fn func(time.Time) time.Duration, periodic bool) Handle {
	t.mu.Lock()
	t.seq++
	ev := &timedEvent{at: at, seq: t.seq, fn: fn, periodic: periodic}
	heap.Push(t.queue, ev)
	t.mu.Unlock()
	t.signal()
	return Handle{ev: ev}
}

func (t *Timeline) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// run is the timeline loop
func (t *Timeline) run() {
	defer close(t.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		t.runPosted()
		next, ok := t.runDue(t.now())

		wait := time.Hour
		if ok {
			wait = next.Sub(t.now())
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-t.stop:
			return
		case <-t.wake:
		case <-timer.C:
		}
	}
}

func (t *Timeline) runPosted() {
	t.mu.Lock()
	posted := t.posted
	t.posted = nil
	t.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
}

// runDue fires every callback due at or before now and returns the time of
// the next queued one
func (t *Timeline) runDue(now time.Time) (time.Time, bool) {
	for {
		t.mu.Lock()
		if t.queue.Len() == 0 {
			t.mu.Unlock()
			return time.Time{}, false
		}
		ev := t.queue.Peek()
		if ev.at.After(now) {
			t.mu.Unlock()
			return ev.at, true
		}
		heap.Pop(t.queue)

		late := now.Sub(ev.at)
		if late > lateThreshold {
			t.stats.Late++
			if t.stats.Late <= 5 {
				log.Printf("Timeline callback ran %v late", late)
			}
		}
		t.stats.Fired++
		t.mu.Unlock()

		period := ev.fn(now)
		if !ev.periodic || period <= 0 {
			continue
		}

		t.mu.Lock()
		if !ev.cancelled {
			// keep the series on its own grid unless it fell behind
			ev.at = ev.at.Add(period)
			if ev.at.Before(now) {
				ev.at = now.Add(period)
			}
			heap.Push(t.queue, ev)
		}
		t.mu.Unlock()
	}
}

// eventQueue is a priority queue of timed callbacks
type eventQueue struct {
	items []*timedEvent
}

// Implement heap.Interface
func (q *eventQueue) Len() int { return len(q.items) }

func (q *eventQueue) Less(i, j int) bool {
	if q.items[i].at.Equal(q.items[j].at) {
		return q.items[i].seq < q.items[j].seq
	}
	return q.items[i].at.Before(q.items[j].at)
}

func (q *eventQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *eventQueue) Push(x interface{}) {
	ev := x.(*timedEvent)
	ev.index = len(q.items)
	q.items = append(q.items, ev)
}

func (q *eventQueue) Pop() interface{} {
	n := len(q.items)
	ev := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	ev.index = -1
	return ev
}

func (q *eventQueue) Peek() *timedEvent {
	return q.items[0]
}
