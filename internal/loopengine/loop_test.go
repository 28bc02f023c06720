package loopengine

import (
	"testing"

	"github.com/schollz/echocore/internal/layer"
	"github.com/stretchr/testify/require"
)

func newLoop() *Loop {
	pool := layer.NewPool(1)
	return New(1, pool, 0)
}

func TestRecordPlayBasic(t *testing.T) {
	l := newLoop()
	require.Equal(t, Reset, l.Mode())

	l.StartRecord()
	require.Equal(t, Record, l.Mode())

	l.AdvanceRecord(1280)
	l.StopRecord()

	require.Equal(t, Play, l.Mode())
	require.Equal(t, 1280, l.Frames())
	require.Equal(t, 0, l.PlayFrame())
}

func TestRecordUndoRestoresPriorLoop(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(100)
	l.StopRecord()
	require.Equal(t, 100, l.Frames())

	ok := l.Undo()
	require.True(t, ok)
	require.Equal(t, 0, l.Frames())
}

func TestMultiplyRounded(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(10000)
	l.StopRecord()
	require.Equal(t, 10000, l.Frames())

	l.recordLayer.Cycles = 2
	l.playLayer.Cycles = 2

	l.StartMultiply()
	l.AdvanceRecord(25000)
	l.EndMultiplyRounded(3)

	require.Equal(t, Play, l.Mode())
	require.Equal(t, 30000, l.Frames())
	require.Equal(t, 3, l.Cycles())
}

func TestUnroundedMultiplyTruncates(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(10000)
	l.StopRecord()
	l.recordLayer.Cycles = 2
	l.playLayer.Cycles = 2

	l.StartMultiply()
	l.AdvanceRecord(13000)
	l.EndMultiplyUnrounded()

	require.Equal(t, Play, l.Mode())
	require.Equal(t, 1, l.Cycles())
	require.Equal(t, 13000, l.Frames())
}

func TestReverseIsInvolution(t *testing.T) {
	l := newLoop()
	require.False(t, l.Reverse())
	l.ToggleReverse()
	require.True(t, l.Reverse())
	l.ToggleReverse()
	require.False(t, l.Reverse())
}

func TestStartPointAtZeroIsNoop(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(4)
	l.StopRecord()

	before := l.Frames()
	l.frame = 0
	l.ApplyStartPoint()
	require.Equal(t, before, l.Frames())
}

func TestMuteAndUnmute(t *testing.T) {
	l := newLoop()
	l.SetMuted(true)
	require.Equal(t, Mute, l.Mode())
	require.True(t, l.Muted())
	l.SetMuted(false)
	require.Equal(t, Play, l.Mode())
}

func TestAdvancePlayWrapsAndReportsBoundary(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(100)
	l.StopRecord()

	crossed := l.AdvancePlay(50)
	require.False(t, crossed)
	crossed = l.AdvancePlay(60)
	require.True(t, crossed)
	require.Equal(t, 10, l.PlayFrame())
}

func TestPendingMultiplyCyclesRoundsUp(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(10000)
	l.StopRecord()

	l.StartMultiply()
	l.AdvanceRecord(25000)
	require.Equal(t, 3, l.PendingMultiplyCycles())

	l.EndMultiplyRounded(l.PendingMultiplyCycles())
	require.Equal(t, 30000, l.Frames())
	require.Equal(t, 3, l.Cycles())
}

func TestSetPlayFrameWraps(t *testing.T) {
	l := newLoop()
	l.StartRecord()
	l.AdvanceRecord(100)
	l.StopRecord()

	l.SetPlayFrame(150)
	require.Equal(t, 50, l.PlayFrame())
}
