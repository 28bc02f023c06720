// Package fixture loads WAV files into audiobuf.Audio buffers for tests
// and the demo input path, the same go-audio/wav decoder the teacher
// already depends on (internal/getbpm) used for content instead of
// duration probing.
package fixture

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/schollz/echocore/internal/audiobuf"
)

// Load decodes a PCM WAV file into an audiobuf.Audio, returning the
// file's own sample rate alongside it. No resampling or channel
// remixing happens here; a caller wiring a fixture into a track whose
// rate or channel count differs is responsible for running it through
// internal/resample first, same as any other external audio source
// entering the engine from outside the interrupt path.
func Load(path string) (*audiobuf.Audio, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := 1
	sampleRate := 44100
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			sampleRate = buf.Format.SampleRate
		}
	}
	frames := len(buf.Data) / channels

	samples := make([]float32, frames*channels)
	norm := normalizer(buf.SourceBitDepth)
	for i := range samples {
		samples[i] = float32(buf.Data[i]) / norm
	}

	out := audiobuf.New(channels)
	if frames > 0 {
		out.Put(0, samples, frames, audiobuf.OpReplace)
	}
	return out, sampleRate, nil
}

func normalizer(bitDepth int) float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float32(int64(1) << uint(bitDepth-1))
}
