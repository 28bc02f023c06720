// Package loopengine implements the per-loop state machine: mode, frame
// counters, and the shift/undo/redo operations that drive the layer graph.
package loopengine

import (
	"github.com/schollz/echocore/internal/layer"
)

// Mode is the loop's current top-level behavior. Exactly one is active at
// any instant.
type Mode int

const (
	Reset Mode = iota
	Threshold
	Synchronize
	Record
	Play
	Overdub
	Multiply
	Insert
	Replace
	Substitute
	Stutter
	Mute
	Pause
	Rehearse
	SwitchMode
	Confirm
	Run
)

func (m Mode) String() string {
	names := [...]string{
		"Reset", "Threshold", "Synchronize", "Record", "Play", "Overdub",
		"Multiply", "Insert", "Replace", "Substitute", "Stutter", "Mute",
		"Pause", "Rehearse", "Switch", "Confirm", "Run",
	}
	if int(m) < len(names) {
		return names[m]
	}
	return "Unknown"
}

// Loop wraps the undo/redo chain of layers with the transport state that
// drives playback and recording.
type Loop struct {
	Number int

	pool *layer.Pool

	mode          Mode
	frame         int // record head
	playFrame     int // playback head, running ahead by output latency
	playLayer     *layer.Layer
	recordLayer   *layer.Layer
	prePlayLayer  *layer.Layer
	cycles        int
	modeStartFrame int
	paused        bool
	muted         bool
	reverse       bool

	feedback float32
	level    float32
	pan      float32

	outputLatency int
}

// New creates a loop at Reset with a single silent layer on its undo chain.
func New(number int, pool *layer.Pool, outputLatency int) *Loop {
	silence := pool.NewSilence()
	return &Loop{
		Number:        number,
		pool:          pool,
		mode:          Reset,
		playLayer:     silence,
		recordLayer:   silence,
		cycles:        1,
		feedback:      1,
		level:         1,
		outputLatency: outputLatency,
	}
}

// Restore rebuilds a loop from saved transport state and an already-wired
// play/record layer pair (the caller has reconstructed the layer chain and
// attached segments before calling this). Used only by project load; live
// loops always start from New and reach their state through the mode
// transitions above.
func Restore(number int, pool *layer.Pool, outputLatency int, mode Mode, frame, playFrame, cycles int, muted, reverse bool, playLayer, recordLayer *layer.Layer) *Loop {
	return &Loop{
		Number:        number,
		pool:          pool,
		mode:          mode,
		frame:         frame,
		playFrame:     playFrame,
		playLayer:     playLayer,
		recordLayer:   recordLayer,
		cycles:        cycles,
		muted:         muted,
		reverse:       reverse,
		feedback:      1,
		level:         1,
		outputLatency: outputLatency,
	}
}

func (l *Loop) Mode() Mode           { return l.mode }
func (l *Loop) Frame() int           { return l.frame }
func (l *Loop) PlayFrame() int       { return l.playFrame }
func (l *Loop) Cycles() int          { return l.cycles }
func (l *Loop) Frames() int          { return l.playLayer.Frames }
func (l *Loop) PlayLayer() *layer.Layer   { return l.playLayer }
func (l *Loop) RecordLayer() *layer.Layer { return l.recordLayer }
func (l *Loop) Reverse() bool        { return l.reverse }
func (l *Loop) Muted() bool          { return l.muted }
func (l *Loop) Paused() bool         { return l.paused }
func (l *Loop) CycleFrames() int {
	if l.cycles == 0 {
		return l.Frames()
	}
	return l.Frames() / l.cycles
}

func (l *Loop) SetFeedback(f float32) { l.feedback = f }
func (l *Loop) SetLevel(v float32)    { l.level = v }
func (l *Loop) SetPan(v float32)      { l.pan = v }

// shift performs the copy-on-write promotion described in spec §4.4/§4.5 and
// resets the record head.
func (l *Loop) shift() {
	play, rec := layer.Shift(l.pool, l.recordLayer, l.feedback)
	l.playLayer = play
	l.recordLayer = rec
	l.frame = 0
}

// StartRecord transitions Reset|Threshold|Synchronize -> Record, allocating
// a fresh record layer and zeroing the frame counter.
func (l *Loop) StartRecord() {
	rec := l.pool.NewSilence()
	rec.Prev = l.playLayer
	l.playLayer.Retain()
	l.recordLayer = rec
	l.mode = Record
	l.frame = 0
}

// StopRecord finalizes the recorded length, shifts, and enters Play (or the
// mode the invoking function asked for; callers needing Rehearse/Insert/
// Switch instead call StopRecordInto explicitly).
func (l *Loop) StopRecord() {
	l.StopRecordInto(Play)
}

func (l *Loop) StopRecordInto(next Mode) {
	l.recordLayer.Frames = l.frame
	l.recordLayer.Cycles = 1
	l.shift()
	l.mode = next
	l.playFrame = l.wrapOutputLatency()
}

func (l *Loop) wrapOutputLatency() int {
	frames := l.Frames()
	if frames == 0 {
		return 0
	}
	return ((l.frame + l.outputLatency) % frames + frames) % frames
}

// StartMultiply transitions Play -> Multiply, remembering the frame
// multiply began at.
func (l *Loop) StartMultiply() {
	l.modeStartFrame = l.frame
	l.mode = Multiply
}

// EndMultiplyRounded ends a multiply on a cycle boundary: the record layer
// already spans whole cycles by construction, so this just increments
// cycles to match the elapsed span and shifts.
func (l *Loop) EndMultiplyRounded(newCycles int) {
	l.recordLayer.Cycles = newCycles
	l.recordLayer.Frames = newCycles * l.CycleFrames()
	l.cycles = newCycles
	l.shift()
	l.mode = Play
}

// EndMultiplyUnrounded truncates immediately at the current frame (an
// "alternate ending" Record call during Multiply), splicing the layer so the
// multiply's start becomes the new frame 0 and collapsing to one cycle.
func (l *Loop) EndMultiplyUnrounded() {
	newFrames := l.frame
	spliced := layer.Splice(l.pool, l.playLayer, l.modeStartFrame, newFrames, 1)
	l.playLayer = spliced
	l.recordLayer = l.pool.NewSilence()
	l.recordLayer.Channels = spliced.Channels
	l.recordLayer.Frames = spliced.Frames
	l.recordLayer.Cycles = 1
	l.recordLayer.Prev = spliced
	spliced.Retain()
	if spliced.Frames > 0 {
		seg := l.recordLayer.AddSegment(spliced, 0, 0, spliced.Frames)
		seg.Feedback = l.feedback
	}
	l.cycles = 1
	l.frame = 0
	l.mode = Play
}

// StartOverdub/StopOverdub toggle recording into the current record layer
// without shifting; overdub mixes rather than replaces.
func (l *Loop) StartOverdub() { l.mode = Overdub }
func (l *Loop) StopOverdub()  { l.mode = Play }

// Mute silences playback by switching to the mute mode; a real engine
// schedules a play jump to a silence layer (handled by the event scheduler),
// this just flips the flag the track checks when mixing output.
func (l *Loop) SetMuted(m bool) {
	l.muted = m
	if m {
		l.mode = Mute
	} else if l.mode == Mute {
		l.mode = Play
	}
}

// ToggleReverse flips the reverse flag; per the reverse-is-an-involution
// law, doing this twice restores both the advance direction and any fade
// direction derived from it.
func (l *Loop) ToggleReverse() {
	l.reverse = !l.reverse
}

// Undo removes the most recent shift: the previous record layer becomes the
// record layer again and its predecessor becomes the play layer (the layer
// itself when it has none). Returns false if already at the root silence
// layer.
func (l *Loop) Undo() bool {
	prev := layer.Undo(l.recordLayer)
	if prev == nil {
		return false
	}
	old := l.recordLayer
	l.recordLayer = prev
	l.playLayer = prev.Prev
	if l.playLayer == nil {
		l.playLayer = prev
	}
	old.Release()
	if l.frame > l.recordLayer.Frames {
		l.frame = 0
	}
	return true
}

// Redo reapplies a layer previously removed by Undo.
func (l *Loop) Redo() bool {
	next := layer.Redo(l.recordLayer)
	if next == nil {
		return false
	}
	next.Retain()
	l.recordLayer = next
	l.playLayer = l.recordLayer.Prev
	return true
}

// AdvancePlay moves the playback head forward (or backward under reverse)
// by n frames, wrapping at the loop length. Returns true if the loop
// boundary was crossed.
func (l *Loop) AdvancePlay(n int) (crossedBoundary bool) {
	frames := l.Frames()
	if frames == 0 {
		return false
	}
	if l.reverse {
		l.playFrame -= n
		for l.playFrame < 0 {
			l.playFrame += frames
			crossedBoundary = true
		}
	} else {
		l.playFrame += n
		for l.playFrame >= frames {
			l.playFrame -= frames
			crossedBoundary = true
		}
	}
	return crossedBoundary
}

// AdvanceRecord moves the record head forward by n frames. Used while in
// Record/Overdub/Multiply/Insert.
func (l *Loop) AdvanceRecord(n int) {
	l.frame += n
}

// SetPlayFrame relocates the playback head directly, wrapping into range.
// Used for JumpPlay, Move/Slip, and Realign dispatch.
func (l *Loop) SetPlayFrame(f int) {
	frames := l.Frames()
	if frames <= 0 {
		l.playFrame = 0
		return
	}
	l.playFrame = ((f % frames) + frames) % frames
}

// PendingMultiplyCycles rounds the elapsed span since StartMultiply up to a
// whole number of the pre-multiply cycle length, the absolute cycle count
// EndMultiplyRounded should commit to.
func (l *Loop) PendingMultiplyCycles() int {
	cycle := l.CycleFrames()
	if cycle <= 0 {
		return l.cycles
	}
	elapsed := l.frame - l.modeStartFrame
	if elapsed < 0 {
		elapsed = 0
	}
	cycles := (elapsed + cycle - 1) / cycle
	if cycles < 1 {
		cycles = 1
	}
	return cycles
}

// ApplyStartPoint relocates the loop's effective frame 0 to the current
// frame, per spec §4.4 "Start-point relocation". A pre-shift is performed
// first so the split operates on an isolated record layer.
func (l *Loop) ApplyStartPoint() {
	relocate := l.frame
	l.shift()
	layer.StartPoint(l.recordLayer, relocate)
	l.playFrame = l.wrapOutputLatency()
}
