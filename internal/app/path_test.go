// ABOUTME: Tests for the propagation path module
// ABOUTME: Covers IR caching, rendezvous scheduling and failure feedback
package app

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/nu-go/internal/player"
	"github.com/Resonate-Protocol/nu-go/internal/ui"
	"github.com/Resonate-Protocol/nu-go/pkg/audio"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/output"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
)

type pathHarness struct {
	sink  *recordingSink
	fb    *recordingFeedback
	sched *rendezvous.Scheduler
	mod   *PathModule
}

func newPathHarness(t *testing.T, sharedNow float64, assets *Assets) *pathHarness {
	t.Helper()
	h := &pathHarness{sink: newRecordingSink(), fb: &recordingFeedback{}}
	h.sched = rendezvous.New(fixedShared(sharedNow), frozenClock{now: epoch}, h.sink)
	mod, err := NewPathModule(assets, h.sched, h.fb, nil)
	require.NoError(t, err)
	h.mod = mod
	return h
}

func testIR(pathID int) protocol.IR {
	return protocol.IR{
		PathID:  pathID,
		MinTime: -0.5,
		Taps:    []protocol.IRTap{{Time: 0, Gain: 1}, {Time: 0.2, Gain: 0.5}},
	}
}

func TestPathStartSchedulesAtRendezvous(t *testing.T) {
	h := newPathHarness(t, 10, NewAssets(testAsset(0)))

	h.mod.SetIR(testIR(1))
	require.Equal(t, ui.ColorIRReceived, h.fb.lastBlink())
	require.Equal(t, 1, h.mod.IRs())

	require.NoError(t, Dispatch(h.mod, control.Args{"startPath", 1.0, 12.0}))

	plays := h.sink.plays()
	require.Len(t, plays, 1)
	require.Equal(t, epoch.Add(2*time.Second), plays[0].At)
	require.Greater(t, plays[0].Gain, 0.0)
	require.Equal(t, 1, h.fb.activeCount())
	require.Equal(t, 1, h.sched.Active())
}

func TestPathUnresolvedIR(t *testing.T) {
	h := newPathHarness(t, 10, NewAssets(testAsset(0)))

	err := h.mod.StartPath(7, 12)
	require.ErrorIs(t, err, ErrUnresolvedTapList)
	require.Equal(t, ui.ColorIRMissing, h.fb.lastBlink())
	require.Empty(t, h.sink.plays())
	require.Equal(t, "unresolved_ir", errorKind(err))
}

func TestPathTooLate(t *testing.T) {
	h := newPathHarness(t, 10, NewAssets(testAsset(0)))
	h.mod.SetIR(testIR(1))

	err := h.mod.StartPath(1, 9.5)
	require.ErrorIs(t, err, rendezvous.ErrMissed)
	require.Equal(t, ui.ColorTooLate, h.fb.lastBlink())
	require.Empty(t, h.sink.plays())
	require.Zero(t, h.fb.activeCount())
	require.Equal(t, "rendezvous_missed", errorKind(err))
}

func TestPathMissingAsset(t *testing.T) {
	h := newPathHarness(t, 10, NewAssets(testAsset(0)))
	h.mod.SetIR(testIR(1))

	require.NoError(t, Dispatch(h.mod, control.Args{"audioFileId", 3.0}))
	err := h.mod.StartPath(1, 12)
	require.ErrorIs(t, err, ErrMissingAsset)
	require.Empty(t, h.sink.plays())
}

func TestPathParams(t *testing.T) {
	h := newPathHarness(t, 10, NewAssets(testAsset(0)))

	for _, args := range []control.Args{
		{"masterGain", 0.5},
		{"timeBound", 0.25},
		{"accSlope", 0.1},
		{"perc", 0.75},
		{"loop", false},
		{"propagationSpeed", -2.0},
	} {
		require.NoError(t, Dispatch(h.mod, args))
	}

	require.Equal(t, 0.5, h.mod.params.MasterGain)
	require.Equal(t, 0.25, h.mod.params.StartFraction)
	require.Equal(t, 0.1, h.mod.params.Slope)
	require.Equal(t, 0.75, h.mod.params.Perc)
	require.False(t, h.mod.params.Loop)
}

func TestPathReset(t *testing.T) {
	h := newPathHarness(t, 10, NewAssets(testAsset(0)))
	h.mod.SetIR(testIR(1))
	h.mod.SetIR(testIR(2))
	require.NoError(t, h.mod.StartPath(1, 11))
	require.NoError(t, h.mod.StartPath(2, 11))
	require.Equal(t, 2, h.fb.activeCount())

	require.NoError(t, Dispatch(h.mod, control.Args{"reset"}))
	require.Zero(t, h.sched.Active())
	require.Zero(t, h.fb.activeCount())
	for _, p := range h.sink.plays() {
		require.True(t, p.voice.Stopped())
	}
}

// Completions must queue behind whatever the timeline is running
func TestRendezvousCompletesOnTimeline(t *testing.T) {
	tl := player.NewTimeline()
	t.Cleanup(tl.Close)
	sched := rendezvous.New(fixedShared(100), tl, output.NewNull(testRate))

	var busy atomic.Bool
	completed := make(chan bool, 1)
	sched.OnComplete = func(*rendezvous.Playback) {
		completed <- busy.Load()
	}

	release := make(chan struct{})
	scheduled := make(chan error, 1)
	tl.Post(func() {
		busy.Store(true)
		_, err := sched.Schedule(100.01, audio.NewBuffer(10, testRate), 1)
		scheduled <- err
		<-release
		busy.Store(false)
	})
	require.NoError(t, <-scheduled)

	select {
	case <-completed:
		t.Fatal("completion ran while the timeline was busy")
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, 1, sched.Active())

	close(release)
	select {
	case wasBusy := <-completed:
		require.False(t, wasBusy)
	case <-time.After(2 * time.Second):
		t.Fatal("completion never ran")
	}
	require.Zero(t, sched.Active())
}
