package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schollz/echocore/internal/event"
)

func TestProcessBlockMixesTrackOutput(t *testing.T) {
	e := New(1, 2, 2, 44100, 0, 0)
	e.Tracks[0].Invoke(nil, event.TypeRecord, event.QuantizeOff, true)

	in := make([]float32, 32*2)
	for i := range in {
		in[i] = 0.25
	}
	out := make([]float32, 32*2)
	e.ProcessBlock(32, in, out, HostSync{}, nil)

	require.Equal(t, 32, e.Tracks[0].ActiveLoop().Frame())
}

func TestProcessBlockElectsTrackSyncMaster(t *testing.T) {
	e := New(2, 1, 2, 44100, 0, 0)
	e.Tracks[1].Invoke(nil, event.TypeRecord, event.QuantizeOff, true)

	in := make([]float32, 8*2)
	out := make([]float32, 8*2)
	e.ProcessBlock(8, in, out, HostSync{}, nil)
	e.Tracks[1].Invoke(nil, event.TypeRecordStop, event.QuantizeOff, true)
	e.ProcessBlock(1, in[:2], out[:2], HostSync{}, nil)

	require.Equal(t, 1, e.Sync.TrackSyncMaster())
}

func TestApplyHostTransportStart(t *testing.T) {
	e := New(1, 1, 2, 44100, 0, 0)
	e.Sync.Host.Lock(0, 96, 88200, 24, 4)
	e.Sync.Host.Advance(4000)

	in := make([]float32, 4*2)
	out := make([]float32, 4*2)
	e.ProcessBlock(4, in, out, HostSync{TransportEvent: TransportStart}, nil)

	require.Equal(t, 0, e.Sync.Host.Pulse)
}

func TestMidiOutEmitsClockWhenOutLocked(t *testing.T) {
	e := New(1, 1, 2, 44100, 0, 0)
	e.Sync.Out.Lock(0, 96, 88200, 24, 4)

	in := make([]float32, 4*2)
	out := make([]float32, 4*2)
	got := e.ProcessBlock(4, in, out, HostSync{}, nil)

	require.Contains(t, got, MidiOut{Status: 0xF8})
}

func TestQueueConfigAppliesNextBlock(t *testing.T) {
	e := New(1, 1, 2, 44100, 0, 0)
	e.QueueConfig(0, Config{InputLevel: 1, OutputLevel: 0.5, Feedback: 1, Pan: 0})

	in := make([]float32, 4*2)
	out := make([]float32, 4*2)
	e.ProcessBlock(4, in, out, HostSync{}, nil)

	require.InDelta(t, 0.5, e.Tracks[0].Controls.OutputLevel, 1e-9)
}
