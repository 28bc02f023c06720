// Package track implements the per-track state described in spec §4.8: a
// bank of loops with one active, an input and output resampler, an event
// scheduler, sync state, and the private controls a control surface binds
// to (feedback, pan, level, speed, focus/group).
package track

import (
	"fmt"
	"sync"

	"github.com/schollz/echocore/internal/alog"
	"github.com/schollz/echocore/internal/event"
	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/loopengine"
	"github.com/schollz/echocore/internal/resample"
	"github.com/schollz/echocore/internal/syncengine"
)

// Controls holds the private per-track knobs a control surface binds to.
// None of these mutate loop or layer state directly; the engine reads them
// when mixing or scheduling.
type Controls struct {
	InputLevel  float32
	OutputLevel float32
	Feedback    float32
	Pan         float32

	SpeedOctave   int
	SpeedSemitone int
	SpeedBend     float64

	Focus bool
	Group int
}

func defaultControls() Controls {
	return Controls{InputLevel: 1, OutputLevel: 1, Feedback: 1, Pan: 0}
}

// Track owns up to MaxLoops loops (one active), an input and output stream,
// an event scheduler, and the sync tracker driving it. The per-track mutex
// guards scheduler mutations made from the control thread; the interrupt
// thread is the single writer for in-block changes and does not take it
// (spec §5 "Shared-resource policy").
type Track struct {
	Number   int
	Channels int
	MaxLoops int
	Subcycles int // quantize granularity: cycle frames divided by this count

	Pool *layer.Pool

	Loops  []*loopengine.Loop
	active int

	Scheduler *event.Scheduler

	Input  *resample.Resampler
	Output *resample.Resampler

	Sync       *syncengine.Tracker
	SyncMaster bool

	Controls Controls

	inputLatency  int
	outputLatency int
	absoluteFrame int // running scheduler-frame coordinate, never reset

	mu  sync.Mutex
	log *alog.Logger
}

// New allocates a track with maxLoops empty loops, loop 0 active.
func New(number, maxLoops, channels, inputLatency, outputLatency int, pool *layer.Pool) *Track {
	if maxLoops < 1 {
		maxLoops = 1
	}
	t := &Track{
		Number:        number,
		Channels:      channels,
		MaxLoops:      maxLoops,
		Subcycles:     4,
		Pool:          pool,
		Scheduler:     event.New(fmt.Sprintf("track%d", number)),
		Input:         resample.New(channels),
		Output:        resample.New(channels),
		Controls:      defaultControls(),
		inputLatency:  inputLatency,
		outputLatency: outputLatency,
		log:           alog.New(fmt.Sprintf("track:%d", number)),
	}
	for i := 0; i < maxLoops; i++ {
		t.Loops = append(t.Loops, loopengine.New(i, pool, outputLatency))
	}
	return t
}

func (t *Track) ActiveLoop() *loopengine.Loop { return t.Loops[t.active] }
func (t *Track) ActiveIndex() int             { return t.active }

// SetActive switches the active loop. Callers that want the switch to take
// effect at a quantized boundary should schedule a TypeSwitch event instead
// and apply the switch from its dispatch (see process.go).
func (t *Track) SetActive(n int) error {
	if n < 0 || n >= len(t.Loops) {
		return fmt.Errorf("track %d: loop index %d out of range [0,%d)", t.Number, n, len(t.Loops))
	}
	t.active = n
	return nil
}

// Quantizer interface, satisfied against the active loop so the scheduler
// can compute quantized frames without depending on loopengine directly.
func (t *Track) LoopFrames() int { return t.ActiveLoop().Frames() }
func (t *Track) CycleFrames() int { return t.ActiveLoop().CycleFrames() }
func (t *Track) SubcycleFrames() int {
	cycle := t.CycleFrames()
	if t.Subcycles <= 0 || cycle == 0 {
		return cycle
	}
	return cycle / t.Subcycles
}

// AbsoluteFrame is the track's running sample counter, the coordinate
// system the scheduler's event frames live in.
func (t *Track) AbsoluteFrame() int { return t.absoluteFrame }

// Invoke schedules an action from the control thread, taking the per-track
// critical section per spec §5. allowStack mirrors whether the invoking
// function permits stacking with an event already at the target frame.
func (t *Track) Invoke(action *event.Action, typ event.Type, mode event.QuantizeMode, allowStack bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.Scheduler.Schedule(t, t.absoluteFrame, typ, mode, allowStack, action)
	if e := t.Scheduler.Event(idx); e != nil {
		e.Function = typ.String()
	}
	return idx
}

// InvokeImmediate posts an immediate (non-quantized, preempting) event from
// the control thread, such as a hard Mute toggle.
func (t *Track) InvokeImmediate(action *event.Action, typ event.Type) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Scheduler.Add(event.Event{Type: typ, Function: typ.String(), Frame: t.absoluteFrame, Immediate: true, Action: action})
}

// Undo requests the scheduler undo the most recent quantized event from the
// control thread.
func (t *Track) Undo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Scheduler.Undo()
}

// InjectSync appends derived sync events from the tracker driving this
// track as TypeSync events, positioned at the track's absolute frame plus
// each event's block-relative pulse offset. Called once per block from the
// interrupt thread (engine step 3), so it takes no lock.
func (t *Track) InjectSync(events []syncengine.SyncEvent) {
	for _, e := range events {
		ev := e
		t.Scheduler.Add(event.Event{
			Type:     event.TypeSync,
			Function: event.TypeSync.String(),
			Frame:    t.absoluteFrame + int(e.PulseFrame),
			NoUndo:   true,
			Payload:  ev,
		})
	}
}
