// ABOUTME: Tests for the player timeline
// ABOUTME: Steps runDue with a fake clock and checks the live loop for leaks
package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time { return c.t }

func newStepTimeline() (*Timeline, *stepClock) {
	c := &stepClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return newTimeline(c.now), c
}

func TestRunDueOrder(t *testing.T) {
	tl, c := newStepTimeline()
	var order []string

	tl.At(c.t.Add(30*time.Millisecond), func() { order = append(order, "c") })
	tl.At(c.t.Add(10*time.Millisecond), func() { order = append(order, "a") })
	tl.At(c.t.Add(10*time.Millisecond), func() { order = append(order, "b") })

	next, ok := tl.runDue(c.t)
	require.True(t, ok)
	require.Equal(t, c.t.Add(10*time.Millisecond), next)
	require.Empty(t, order)

	_, ok = tl.runDue(c.t.Add(20 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, order)

	_, ok = tl.runDue(c.t.Add(time.Second))
	require.False(t, ok)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Equal(t, int64(3), tl.Stats().Fired)
}

func TestSchedulePeriodic(t *testing.T) {
	tl, c := newStepTimeline()
	start := c.t
	var ticks []time.Time

	cancel := tl.Schedule(func(now time.Time) time.Duration {
		ticks = append(ticks, now)
		return 100 * time.Millisecond
	})

	for i := 0; i <= 3; i++ {
		tl.runDue(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	require.Len(t, ticks, 4)
	require.Equal(t, 1, tl.Pending())

	cancel()
	cancel()
	require.Equal(t, 0, tl.Pending())
	tl.runDue(start.Add(time.Second))
	require.Len(t, ticks, 4)
	require.Equal(t, int64(1), tl.Stats().Cancelled)
}

func TestScheduleSelfAdjustingPeriod(t *testing.T) {
	tl, c := newStepTimeline()
	start := c.t
	periods := []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 0}
	calls := 0

	tl.Schedule(func(time.Time) time.Duration {
		p := periods[calls]
		calls++
		return p
	})

	next, _ := tl.runDue(start)
	require.Equal(t, start.Add(10*time.Millisecond), next)
	next, _ = tl.runDue(next)
	require.Equal(t, start.Add(50*time.Millisecond), next)

	// a zero period ends the series
	_, ok := tl.runDue(next)
	require.False(t, ok)
	require.Equal(t, 3, calls)
}

func TestCancelFromCallback(t *testing.T) {
	tl, c := newStepTimeline()
	calls := 0

	var cancel func()
	cancel = tl.Schedule(func(time.Time) time.Duration {
		calls++
		cancel()
		return time.Millisecond
	})

	tl.runDue(c.t)
	tl.runDue(c.t.Add(time.Second))
	require.Equal(t, 1, calls)
	require.Equal(t, 0, tl.Pending())
}

func TestAfterFuncStop(t *testing.T) {
	tl, c := newStepTimeline()
	require.Equal(t, c.t, tl.Now())

	calls := 0
	stop := tl.AfterFunc(10*time.Millisecond, func() { calls++ })
	require.True(t, stop())
	require.False(t, stop())
	tl.runDue(c.t.Add(time.Second))
	require.Zero(t, calls)

	stop = tl.AfterFunc(10*time.Millisecond, func() { calls++ })
	tl.runDue(c.t.Add(10 * time.Millisecond))
	require.Equal(t, 1, calls)
	require.False(t, stop())
}

func TestLateCallbacksCounted(t *testing.T) {
	tl, c := newStepTimeline()
	tl.At(c.t, func() {})
	tl.At(c.t, func() {})

	tl.runDue(c.t.Add(200 * time.Millisecond))
	stats := tl.Stats()
	require.Equal(t, int64(2), stats.Fired)
	require.Equal(t, int64(2), stats.Late)
}

func TestTimelineLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	tl := NewTimeline()
	posted := make(chan struct{})
	fired := make(chan struct{})
	ticks := make(chan struct{}, 8)

	tl.Post(func() { close(posted) })
	tl.After(5*time.Millisecond, func() { close(fired) })
	cancel := tl.Schedule(func(time.Time) time.Duration {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return 2 * time.Millisecond
	})

	for _, ch := range []chan struct{}{posted, fired} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timeline callback never ran")
		}
	}
	<-ticks
	<-ticks
	cancel()

	tl.Close()
	tl.Close()
}
