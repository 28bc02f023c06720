package controlsurface

import (
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/require"

	"github.com/schollz/echocore/internal/event"
	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/loopengine"
	"github.com/schollz/echocore/internal/track"
)

func newTestTracks(n int) []*track.Track {
	tracks := make([]*track.Track, n)
	for i := range tracks {
		pool := layer.NewPool(1)
		tracks[i] = track.New(i, 2, 1, 0, 0, pool)
	}
	return tracks
}

func TestTrackForDefaultsToZeroWithNoArguments(t *testing.T) {
	tracks := newTestTracks(2)
	s := New(tracks, "127.0.0.1", 57200)

	tr, ok := s.trackFor(osc.NewMessage("/record"))
	require.True(t, ok)
	require.Same(t, tracks[0], tr)
}

func TestTrackForHonorsExplicitTrackArgument(t *testing.T) {
	tracks := newTestTracks(2)
	s := New(tracks, "127.0.0.1", 57200)

	msg := osc.NewMessage("/record")
	msg.Append(int32(1))

	tr, ok := s.trackFor(msg)
	require.True(t, ok)
	require.Same(t, tracks[1], tr)
}

func TestTrackForRejectsOutOfRangeIndex(t *testing.T) {
	tracks := newTestTracks(1)
	s := New(tracks, "127.0.0.1", 57200)

	msg := osc.NewMessage("/record")
	msg.Append(int32(5))

	_, ok := s.trackFor(msg)
	require.False(t, ok)
}

func TestInvokeRecordSchedulesRecordMode(t *testing.T) {
	tracks := newTestTracks(1)
	s := New(tracks, "127.0.0.1", 57200)
	tr := tracks[0]

	s.invoke(Binding{Function: event.TypeRecord, Quantize: event.QuantizeOff, AllowStack: true}, osc.NewMessage("/record"))

	in := make([]float32, 4)
	out := make([]float32, 4)
	tr.ProcessBlock(4, in, out)

	require.Equal(t, loopengine.Record, tr.ActiveLoop().Mode())
}

func TestHandleUndoCallsTrackUndo(t *testing.T) {
	tracks := newTestTracks(1)
	s := New(tracks, "127.0.0.1", 57200)
	tr := tracks[0]

	s.invoke(Binding{Function: event.TypeRecord, Quantize: event.QuantizeOff, AllowStack: true}, osc.NewMessage("/record"))
	in := make([]float32, 4)
	out := make([]float32, 4)
	tr.ProcessBlock(4, in, out)
	require.Equal(t, loopengine.Record, tr.ActiveLoop().Mode())

	s.handleUndo(osc.NewMessage("/undo"))
	tr.ProcessBlock(1, in[:1], out[:1])
}

func TestSendTrackStateDoesNotError(t *testing.T) {
	tracks := newTestTracks(1)
	s := New(tracks, "127.0.0.1", 57200)

	require.NoError(t, s.SendTrackState(0))
	require.Error(t, s.SendTrackState(1))
}
