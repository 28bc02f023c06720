// Package engine implements the per-interrupt block driver described in
// spec §4.8: the fixed six-step sequence that turns one host callback into
// per-track scheduling, sync derivation, audio mixing, and sync-master
// bookkeeping.
package engine

import (
	"fmt"
	"sync"

	"github.com/schollz/echocore/internal/alog"
	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/syncengine"
	"github.com/schollz/echocore/internal/track"
)

// TransportEvent mirrors the hostSync transport field of the block I/O
// contract (spec §6).
type TransportEvent int

const (
	TransportNone TransportEvent = iota
	TransportStart
	TransportStop
	TransportContinue
)

// HostSync is the per-block transport status the host reports alongside
// its audio buffers.
type HostSync struct {
	Running        bool
	Tempo          float64
	Beat           int
	BeatsPerBar    int
	TransportEvent TransportEvent
}

// MidiEvent is one raw input MIDI message, block-relative per spec §6.
type MidiEvent struct {
	Status      byte
	Channel     byte
	Data1       byte
	Data2       byte
	FrameOffset int
}

// MidiOut is a clock/transport byte the engine wants the host to send.
type MidiOut struct {
	Status byte // 0xF8 clock, 0xFA start, 0xFB continue, 0xFC stop
}

// Config is the per-block preset snapshot applied at step 1 ("Snapshots
// configuration into each track, reacting to any pending preset swap").
type Config struct {
	InputLevel  float32
	OutputLevel float32
	Feedback    float32
	Pan         float32
}

// Engine owns the tracks, the global layer pool, and the host/midi/out
// sync trackers, and drives one block at a time.
type Engine struct {
	Channels      int
	SampleRate    int
	InputLatency  int
	OutputLatency int

	Pool   *layer.Pool
	Tracks []*track.Track
	Sync   *syncengine.Synchronizer

	pendingConfig map[int]Config
	configMu      sync.Mutex

	forceDriftCorrect bool
	noExternalAudio   bool

	log *alog.Logger
}

// New builds an engine with numTracks tracks, each with maxLoops loops.
func New(numTracks, maxLoops, channels, sampleRate, inputLatency, outputLatency int) *Engine {
	pool := layer.NewPool(channels)
	e := &Engine{
		Channels:      channels,
		SampleRate:    sampleRate,
		InputLatency:  inputLatency,
		OutputLatency: outputLatency,
		Pool:          pool,
		Sync:          syncengine.NewSynchronizer(),
		pendingConfig: make(map[int]Config),
		log:           alog.New("engine"),
	}
	for i := 0; i < numTracks; i++ {
		e.Tracks = append(e.Tracks, track.New(i, maxLoops, channels, inputLatency, outputLatency, pool))
	}
	return e
}

// QueueConfig stages a preset/control snapshot for trackIndex, applied at
// the start of the next block (control-thread entry point).
func (e *Engine) QueueConfig(trackIndex int, cfg Config) {
	e.configMu.Lock()
	defer e.configMu.Unlock()
	e.pendingConfig[trackIndex] = cfg
}

// SetForceDriftCorrect arms the one-shot test hook from spec §6 ("process-
// wide runtime flags").
func (e *Engine) SetForceDriftCorrect(v bool) { e.forceDriftCorrect = v }
func (e *Engine) SetNoExternalAudio(v bool)   { e.noExternalAudio = v }

// applyPendingConfig is step 1: snapshot any queued preset into each track's
// controls.
func (e *Engine) applyPendingConfig() {
	e.configMu.Lock()
	defer e.configMu.Unlock()
	for idx, cfg := range e.pendingConfig {
		if idx < 0 || idx >= len(e.Tracks) {
			continue
		}
		t := e.Tracks[idx]
		t.Controls.InputLevel = cfg.InputLevel
		t.Controls.OutputLevel = cfg.OutputLevel
		t.Controls.Feedback = cfg.Feedback
		t.Controls.Pan = cfg.Pan
	}
	e.pendingConfig = make(map[int]Config)
}

// applyHostTransport is step 1's transport half: Start/Stop/Continue feed
// the host tracker directly (spec §4.7).
func (e *Engine) applyHostTransport(hs HostSync) {
	switch hs.TransportEvent {
	case TransportStart:
		e.Sync.Host.Start()
	case TransportStop:
		e.Sync.Host.Stop()
	case TransportContinue:
		e.Sync.Host.Continue(hs.Beat * max1(e.Sync.Host.PulsesPerBeat))
	}
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

// feedMidi is step 1's MIDI half: routes raw input bytes into the MIDI
// tracker as pulses/transport events, per spec §6 "MIDI input".
func (e *Engine) feedMidi(midiIn []MidiEvent, blockStartFrame int) {
	for _, m := range midiIn {
		switch m.Status {
		case 0xF8: // clock
			e.Sync.Midi.PulseIn(blockStartFrame + m.FrameOffset)
		case 0xFA: // start
			e.Sync.Midi.Start()
		case 0xFB: // continue
			e.Sync.Midi.Continue(0)
		case 0xFC: // stop
			e.Sync.Midi.Stop()
		}
	}
}

// ProcessBlock runs the fixed six-step sequence from spec §4.8 once for
// `frames` samples of inputBuffer, filling outputBuffer (both interleaved,
// Channels wide), and returns the MIDI clock/transport bytes to emit.
func (e *Engine) ProcessBlock(frames int, inputBuffer, outputBuffer []float32, hostSync HostSync, midiIn []MidiEvent) []MidiOut {
	// Step 1: snapshot configuration / transport.
	e.applyPendingConfig()
	e.applyHostTransport(hostSync)
	e.feedMidi(midiIn, 0)

	// Step 2: resample the input stream into a contiguous block. Each
	// track owns its own Input resampler (armed by Speed/Rate dispatch in
	// process.go) for when its playback speed diverges from the engine's
	// native rate; at Speed==1 every track reads the host's block
	// directly, which is the common case and what's exercised here.
	if e.noExternalAudio {
		for i := range inputBuffer {
			inputBuffer[i] = 0
		}
	}

	// Step 3: advance every sync tracker by the block length, collecting
	// derived events into each following track's list before any track's
	// event loop runs (spec §5 ordering guarantee).
	derived := e.Sync.AdvanceAll(frames)
	for _, t := range e.Tracks {
		src := e.trackerSourceFor(t)
		t.InjectSync(derived[src])
	}

	// Step 4: each track runs its event loop and mixes into outputBuffer.
	for i := range outputBuffer {
		outputBuffer[i] = 0
	}
	for _, t := range e.Tracks {
		t.ProcessBlock(frames, inputBuffer, outputBuffer)
	}

	// Step 5: resample output. As with step 2, each track's Output
	// resampler is armed by Speed/Rate dispatch; the mixed result above is
	// already at the engine's native rate for the common Speed==1 case.

	// Step 6: finalize — drift check, master re-election, MIDI clock out.
	e.finalize(frames)

	return e.midiOutFor(hostSync)
}

// trackerSourceFor reports which synchronizer tracker drives t: the
// out-sync master is driven by the internal Out tracker, everyone else by
// whichever external source is locked (Midi takes priority over Host when
// both are present, matching most hardware sync priority schemes).
func (e *Engine) trackerSourceFor(t *track.Track) syncengine.Source {
	if e.Sync.OutSyncMaster() == t.Number {
		return syncengine.SourceOut
	}
	if e.Sync.Midi.Locked {
		return syncengine.SourceMidi
	}
	return syncengine.SourceHost
}

// finalize is step 6: drift correction, sync-master successor election,
// and idle-task autorepeat.
func (e *Engine) finalize(frames int) {
	maxDrift := float64(frames)
	if e.forceDriftCorrect {
		maxDrift = 0
		e.forceDriftCorrect = false
	}
	e.Sync.Host.CheckDrift(maxDrift)
	e.Sync.Midi.CheckDrift(maxDrift)
	e.Sync.Out.CheckDrift(maxDrift)

	if e.Sync.TrackSyncMaster() < 0 {
		if n := e.electTrackSyncMaster(); n >= 0 {
			e.Sync.SetTrackSyncMaster(n)
			e.log.Logf(alog.SevInfo, "elected track %d as track-sync master", n)
		}
	}
}

// electTrackSyncMaster scans tracks in order for the first with an active,
// non-empty loop (spec §4.8 "Sync masters").
func (e *Engine) electTrackSyncMaster() int {
	candidates := make([]int, len(e.Tracks))
	for i := range candidates {
		candidates[i] = i
	}
	return syncengine.ElectSuccessor(candidates, func(idx int) bool {
		return e.Tracks[idx].ActiveLoop().Frames() > 0
	})
}

// ReleaseTrack clears sync-master status for a track that just reset,
// electing a successor on the following block's finalize step.
func (e *Engine) ReleaseTrack(trackIndex int) {
	e.Sync.ReleaseTrackSyncMasterIfSelf(trackIndex)
}

// midiOutFor emits MIDI Start/Stop/Continue for this block's host transport
// event, plus one clock byte while the Out tracker is locked. Mode changes
// of the master loop emit no transport bytes.
func (e *Engine) midiOutFor(hostSync HostSync) []MidiOut {
	var out []MidiOut
	switch hostSync.TransportEvent {
	case TransportStart:
		out = append(out, MidiOut{Status: 0xFA})
	case TransportStop:
		out = append(out, MidiOut{Status: 0xFC})
	case TransportContinue:
		out = append(out, MidiOut{Status: 0xFB})
	}
	if e.Sync.Out.Locked {
		out = append(out, MidiOut{Status: 0xF8})
	}
	return out
}

func (e *Engine) String() string {
	return fmt.Sprintf("engine(tracks=%d, channels=%d)", len(e.Tracks), e.Channels)
}
