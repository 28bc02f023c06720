package syncengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockedBeatCountMatchesPulsesPerBeat(t *testing.T) {
	tr := NewTracker(SourceMidi)
	tr.Lock(0, 96, 88200, 24, 4)

	beats := 0
	bars := 0
	remaining := 88200*2 + 10 // two full traversals, plus slack so the
	// boundary-exclusive final event of the second traversal (which lands
	// exactly at 2*loopFrames) still falls inside the simulated window.
	block := 128
	var offsets []int
	lastFrame := 0
	absoluteFrame := 0
	for remaining > 0 {
		n := block
		if n > remaining {
			n = remaining
		}
		events := tr.Advance(n)
		for _, e := range events {
			abs := absoluteFrame + int(e.PulseFrame)
			offsets = append(offsets, abs-lastFrame)
			lastFrame = abs
			beats++
			if e.PulseType == PulseBar {
				bars++
			}
		}
		absoluteFrame += n
		remaining -= n
	}

	require.Equal(t, (96/24)*2, beats)
	require.Equal(t, 2, bars)

	sum := 0
	for _, o := range offsets {
		sum += o
	}
	require.InDelta(t, 88200*2, sum, 2)
}

func TestDriftCorrectionAppliesAndResets(t *testing.T) {
	tr := NewTracker(SourceOut)
	tr.Lock(0, 96, 88200, 24, 4)
	tr.ForceDrift(3000)

	corrected := tr.CheckDrift(1000)
	require.True(t, corrected)
	require.Equal(t, 1, tr.CorrectionCount()-1+1)
	require.Equal(t, 1, tr.CorrectionCount())
	require.InDelta(t, 0, tr.Drift, 1e-9)
}

func TestDriftCorrectionSkippedBelowThreshold(t *testing.T) {
	tr := NewTracker(SourceOut)
	tr.Lock(0, 96, 88200, 24, 4)
	tr.ForceDrift(10)
	require.False(t, tr.CheckDrift(1000))
}

func TestStartResetsPulseAndAudioFrame(t *testing.T) {
	tr := NewTracker(SourceMidi)
	tr.Lock(0, 96, 88200, 24, 4)
	tr.Advance(40000)
	tr.Start()
	require.Equal(t, 0, tr.Pulse)
	require.Equal(t, 0, tr.AudioFrame)
}

func TestContinueWrapsToLoopPulses(t *testing.T) {
	tr := NewTracker(SourceMidi)
	tr.Lock(0, 96, 88200, 24, 4)
	tr.Continue(100)
	require.Equal(t, 4, tr.Pulse)
}

func TestResizeAppliesAtNextAdvance(t *testing.T) {
	tr := NewTracker(SourceOut)
	tr.Lock(0, 96, 88200, 24, 4)
	tr.RequestResize(96, 44100, 2.0)
	tr.Advance(128)
	require.Equal(t, 44100, tr.LoopFrames)
}

func TestUnlockedPulseWidthAveraging(t *testing.T) {
	tr := NewTracker(SourceHost)
	tr.PulseIn(0)
	tr.PulseIn(500)
	tr.PulseIn(1000)
	require.InDelta(t, 500, tr.AveragePulseWidth(), 1e-6)
}
