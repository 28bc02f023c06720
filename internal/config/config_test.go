package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schollz/echocore/internal/engine"
)

func TestDefaultPresetIsUnityGain(t *testing.T) {
	p := DefaultPreset(3)
	require.Len(t, p.Tracks, 3)
	for _, cfg := range p.Tracks {
		require.Equal(t, float32(1), cfg.InputLevel)
		require.Equal(t, float32(1), cfg.OutputLevel)
		require.Equal(t, float32(1), cfg.Feedback)
	}
}

func TestPresetApplyQueuesPerTrackConfig(t *testing.T) {
	e := engine.New(2, 1, 2, 44100, 0, 0)
	p := Preset{Tracks: []engine.Config{
		{InputLevel: 1, OutputLevel: 0.5, Feedback: 1, Pan: -1},
		{InputLevel: 1, OutputLevel: 0.25, Feedback: 1, Pan: 1},
	}}

	require.NoError(t, p.Apply(e))

	in := make([]float32, 4*2)
	out := make([]float32, 4*2)
	e.ProcessBlock(4, in, out, engine.HostSync{}, nil)

	require.InDelta(t, 0.5, e.Tracks[0].Controls.OutputLevel, 1e-9)
	require.InDelta(t, 0.25, e.Tracks[1].Controls.OutputLevel, 1e-9)
}

func TestPresetApplyRejectsTooManyTracks(t *testing.T) {
	e := engine.New(1, 1, 2, 44100, 0, 0)
	p := Preset{Name: "oversized", Tracks: make([]engine.Config, 2)}

	err := p.Apply(e)
	require.Error(t, err)
}
