// ABOUTME: Tests for the player groups module
// ABOUTME: Covers player filtering, late joins, gain chains and stopping
package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
)

type groupsHarness struct {
	sink *recordingSink
	fb   *recordingFeedback
	mod  *GroupsModule
}

func newGroupsHarness(sharedNow float64) *groupsHarness {
	h := &groupsHarness{sink: newRecordingSink(), fb: &recordingFeedback{}}
	sched := rendezvous.New(fixedShared(sharedNow), frozenClock{now: epoch}, h.sink)
	h.mod = NewGroupsModule(NewAssets(testAsset(0), testAsset(1)), sched, h.fb)
	h.mod.SetIndex(2)
	return h
}

func (h *groupsHarness) send(t *testing.T, args ...interface{}) {
	t.Helper()
	require.NoError(t, Dispatch(h.mod, control.Args(args)))
}

func TestGroupsIgnoreOtherPlayers(t *testing.T) {
	h := newGroupsHarness(10)

	h.send(t, "onOff", 3.0, 0.0, 12.0)
	require.Empty(t, h.sink.plays())

	h.send(t, "onOff", -1.0, 0.0, 12.0)
	require.Len(t, h.sink.plays(), 1)
	require.Equal(t, 1, h.mod.Playing())
}

func TestGroupsFutureStart(t *testing.T) {
	h := newGroupsHarness(10)
	h.send(t, "loop", 2.0, 1.0, 1.0)
	h.send(t, "onOff", 2.0, 1.0, 11.5)

	plays := h.sink.plays()
	require.Len(t, plays, 1)
	require.Equal(t, epoch.Add(1500*time.Millisecond), plays[0].At)
	require.Zero(t, plays[0].Offset)
	require.True(t, plays[0].Loop)
	require.Equal(t, 1, h.fb.activeCount())
}

func TestGroupsLateJoinOffset(t *testing.T) {
	h := newGroupsHarness(10)
	h.send(t, "onOff", 2.0, 0.0, 7.25)

	plays := h.sink.plays()
	require.Len(t, plays, 1)
	require.Equal(t, epoch, plays[0].At)
	require.InDelta(t, 0.75, plays[0].Offset, 1e-9)
	require.False(t, plays[0].Loop)
}

func TestGroupsGainChain(t *testing.T) {
	h := newGroupsHarness(10)
	h.send(t, "onOff", 2.0, 0.0, 12.0)

	plays := h.sink.plays()
	require.Zero(t, plays[0].Gain)

	h.send(t, "volume", 2.0, 0.0, 0.8)
	require.InDelta(t, 0.8, plays[0].voice.Gain(), 1e-9)

	h.send(t, "linkPlayerToGroup", -1.0, 0.0, 0.5)
	require.InDelta(t, 0.4, plays[0].voice.Gain(), 1e-9)

	h.send(t, "localVolume", 2.0, 0.5)
	require.InDelta(t, 0.2, plays[0].voice.Gain(), 1e-9)
}

func TestGroupsStop(t *testing.T) {
	h := newGroupsHarness(10)
	h.send(t, "onOff", 2.0, 0.0, 12.0)
	h.send(t, "onOff", 2.0, 0.0, 0.0)

	plays := h.sink.plays()
	require.True(t, plays[0].voice.Stopped())
	require.Zero(t, h.mod.Playing())
	require.Zero(t, h.fb.activeCount())

	// stopping an idle group is a no-op
	h.send(t, "onOff", 2.0, 0.0, 0.0)
	require.Zero(t, h.fb.activeCount())
}

func TestGroupsRestartReplacesSource(t *testing.T) {
	h := newGroupsHarness(10)
	h.send(t, "onOff", 2.0, 0.0, 12.0)
	h.send(t, "onOff", 2.0, 0.0, 13.0)

	plays := h.sink.plays()
	require.Len(t, plays, 2)
	require.True(t, plays[0].voice.Stopped())
	require.False(t, plays[1].voice.Stopped())
	require.Equal(t, 1, h.fb.activeCount())
}

func TestGroupsMissingAsset(t *testing.T) {
	h := newGroupsHarness(10)

	err := Dispatch(h.mod, control.Args{"onOff", 2.0, 9.0, 12.0})
	require.ErrorIs(t, err, ErrMissingAsset)
	require.Empty(t, h.sink.plays())
}

func TestGroupsMalformed(t *testing.T) {
	h := newGroupsHarness(10)

	require.Error(t, Dispatch(h.mod, control.Args{"volume", 2.0, 0.0}))
	require.Error(t, Dispatch(h.mod, control.Args{"onOff"}))
}
