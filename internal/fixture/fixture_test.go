package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string, samples []int, channels, sampleRate, bitDepth int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestLoadRoundTripsMonoPCM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	samples := []int{0, 16384, -16384, 0}
	writeTestWAV(t, path, samples, 1, 44100, 16)

	buf, sampleRate, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 44100, sampleRate)
	require.Equal(t, 4, buf.Frames())

	dst := make([]float32, 4)
	buf.ReadInto(0, 4, dst)
	require.InDelta(t, 0, dst[0], 1e-3)
	require.InDelta(t, 0.5, dst[1], 1e-2)
	require.InDelta(t, -0.5, dst[2], 1e-2)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestLoadRejectsNonWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-wav.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, _, err := Load(path)
	require.Error(t, err)
}
