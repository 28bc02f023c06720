package project

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schollz/echocore/internal/event"
	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/track"
)

func newRecordedTrack(t *testing.T) *track.Track {
	t.Helper()
	pool := layer.NewPool(1)
	tr := track.New(0, 2, 1, 0, 0, pool)

	tr.Invoke(nil, event.TypeRecord, event.QuantizeOff, true)
	in := make([]float32, 8)
	for i := range in {
		in[i] = float32(i+1) * 0.1
	}
	out := make([]float32, 8)
	tr.ProcessBlock(8, in, out)
	tr.Invoke(nil, event.TypeRecordStop, event.QuantizeOff, true)
	tr.ProcessBlock(1, in[:1], out[:1])

	return tr
}

func TestSaveLoadRoundTripPreservesLayerAudio(t *testing.T) {
	tr := newRecordedTrack(t)
	dir := t.TempDir()

	require.NoError(t, Save(dir, 44100, 1, []*track.Track{tr}))

	st, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 44100, st.SampleRate)
	require.Len(t, st.Tracks, 1)

	loaded := st.Tracks[0]
	require.Equal(t, tr.ActiveIndex(), loaded.ActiveLoop)

	activeLoop := loaded.Loops[loaded.ActiveLoop]
	require.NotEmpty(t, activeLoop.Layers)

	playLayer := activeLoop.Layers[activeLoop.PlayLayer]
	require.Equal(t, 8, playLayer.Frames)
}

func TestApplyTrackRestoresPlaybackPosition(t *testing.T) {
	tr := newRecordedTrack(t)
	dir := t.TempDir()
	require.NoError(t, Save(dir, 44100, 1, []*track.Track{tr}))

	st, err := Load(dir)
	require.NoError(t, err)

	pool := layer.NewPool(1)
	restored := track.New(0, 2, 1, 0, 0, pool)
	require.NoError(t, ApplyTrack(restored, st.Tracks[0], 0))

	require.Equal(t, tr.ActiveLoop().Frames(), restored.ActiveLoop().Frames())
	require.Equal(t, tr.ActiveLoop().Mode(), restored.ActiveLoop().Mode())

	dst := make([]float32, 8)
	restored.ActiveLoop().PlayLayer().Render(0, 8, dst)
	want := make([]float32, 8)
	tr.ActiveLoop().PlayLayer().Render(0, 8, want)
	require.Equal(t, want, dst)
}
