// Package config implements the ambient process configuration layer:
// command-line flags controlling block size, sample rate, and device
// selection, plus named preset snapshots of per-track settings that can be
// swapped at runtime without touching the interrupt path directly (the
// engine only ever sees the already-applied engine.Config values queued
// through Engine.QueueConfig).
package config

import (
	"flag"
	"fmt"

	"github.com/schollz/echocore/internal/engine"
)

// Flags holds the process-level settings parsed from the command line,
// mirroring the teacher's flat flag.IntVar/StringVar/BoolVar style in
// main.go rather than a flag-set struct library.
type Flags struct {
	BlockSize    int
	SampleRate   int
	Channels     int
	NumTracks    int
	MaxLoops     int
	Subcycles    int
	OSCPort      int
	OSCAddress   string
	MidiInName   string
	MidiOutName  string
	SaveFile      string
	SelectProject bool
	SkipAudioDev  bool
	Debug         string
}

// Parse registers and parses the process flags against the standard flag
// package's default command-line set. Call once from main.
func Parse() Flags {
	f := Flags{}
	flag.IntVar(&f.BlockSize, "block-size", 256, "audio block size in frames")
	flag.IntVar(&f.SampleRate, "sample-rate", 44100, "audio sample rate in Hz")
	flag.IntVar(&f.Channels, "channels", 2, "audio channel count")
	flag.IntVar(&f.NumTracks, "tracks", 1, "number of tracks")
	flag.IntVar(&f.MaxLoops, "max-loops", 4, "loops per track")
	flag.IntVar(&f.Subcycles, "subcycles", 4, "subcycles per cycle")
	flag.IntVar(&f.OSCPort, "osc-port", 57120, "OSC port for the control surface")
	flag.StringVar(&f.OSCAddress, "osc-address", "127.0.0.1", "OSC host address for the control surface")
	flag.StringVar(&f.MidiInName, "midi-in", "", "MIDI input device name substring for clock/transport; empty disables")
	flag.StringVar(&f.MidiOutName, "midi-out", "", "MIDI output device name substring for clock/transport; empty disables")
	flag.StringVar(&f.SaveFile, "project", "", "project directory to load/save state from; empty starts blank")
	flag.BoolVar(&f.SelectProject, "select-project", false, "browse saved projects interactively instead of passing -project")
	flag.BoolVar(&f.SkipAudioDev, "skip-audio-check", false, "skip checking for an audio device (for testing only)")
	flag.StringVar(&f.Debug, "debug", "", "if set, write debug logs to this file; empty logs to standard error")
	flag.Parse()
	return f
}

// Preset is a named, swappable bundle of per-track settings, the runtime
// analogue of Mobius's track presets: invoking it queues every track's
// engine.Config in one control-thread call rather than one field at a
// time, so a surface binding can switch a track's whole personality
// (levels, feedback, pan) atomically at the next block boundary.
type Preset struct {
	Name   string
	Tracks []engine.Config
}

// Apply queues p's per-track configs onto e, one QueueConfig call per
// track present in both p and e. Extra tracks in e retain their current
// config; presets shorter than e.Tracks only affect their own prefix.
func (p Preset) Apply(e *engine.Engine) error {
	if len(p.Tracks) > len(e.Tracks) {
		return fmt.Errorf("preset %q has %d tracks, engine only has %d", p.Name, len(p.Tracks), len(e.Tracks))
	}
	for i, cfg := range p.Tracks {
		e.QueueConfig(i, cfg)
	}
	return nil
}

// DefaultPreset returns a flat, unity-gain preset sized for n tracks, the
// snapshot a freshly started engine runs before any control surface binds.
func DefaultPreset(n int) Preset {
	tracks := make([]engine.Config, n)
	for i := range tracks {
		tracks[i] = engine.Config{InputLevel: 1, OutputLevel: 1, Feedback: 1, Pan: 0}
	}
	return Preset{Name: "default", Tracks: tracks}
}
