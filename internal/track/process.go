package track

import (
	"github.com/schollz/echocore/internal/alog"
	"github.com/schollz/echocore/internal/audiobuf"
	"github.com/schollz/echocore/internal/event"
	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/loopengine"
	"github.com/schollz/echocore/internal/resample"
	"github.com/schollz/echocore/internal/syncengine"
)

// ProcessBlock runs one interrupt block: repeatedly finds the next event
// within the remaining window, consumes frames up to it, dispatches it, and
// loops until the block is exhausted (spec §4.8 step 4). in and out are
// interleaved, Channels-wide, n frames long; out is mixed into, not
// overwritten, so multiple tracks can share one output buffer.
func (t *Track) ProcessBlock(n int, in, out []float32) {
	remaining := n
	pos := 0
	for remaining > 0 {
		idx := t.Scheduler.NextEvent(t.absoluteFrame, remaining)
		chunk := remaining
		if idx >= 0 {
			if d := t.Scheduler.Event(idx).Frame - t.absoluteFrame; d < chunk {
				chunk = d
			}
		}
		if chunk > 0 {
			lo, hi := pos*t.Channels, (pos+chunk)*t.Channels
			t.advance(chunk, in[lo:hi], out[lo:hi])
			pos += chunk
			remaining -= chunk
			t.absoluteFrame += chunk
		}
		if idx >= 0 {
			if ev := t.Scheduler.Event(idx); ev != nil && ev.Frame == t.absoluteFrame {
				t.dispatch(idx)
			}
		}
	}
}

// advance consumes n frames: mixes the active loop's play content into out,
// records/overdubs in into the record layer when the mode calls for it, and
// moves both heads, logging a loop-boundary crossing informationally.
func (t *Track) advance(n int, in, out []float32) {
	loop := t.ActiveLoop()

	if loop.Mode() != loopengine.Mute && loop.Frames() > 0 {
		before := loop.PlayFrame()
		crossed := loop.AdvancePlay(n)
		start := before
		if loop.Reverse() {
			start = loop.PlayFrame()
		}
		buf := renderWrapped(loop.PlayLayer(), start, n, t.Channels)
		if loop.Reverse() {
			reverseFrames(buf, t.Channels)
		}
		for i, v := range buf {
			out[i] += v * t.Controls.OutputLevel
		}
		if crossed {
			t.log.Once(alog.SevInfo, "loop-boundary", "track %d crossed loop boundary", t.Number)
		}
	}

	switch loop.Mode() {
	case loopengine.Record:
		loop.RecordLayer().Audio.Put(loop.Frame(), in, n, audiobuf.OpReplace)
		loop.AdvanceRecord(n)
	case loopengine.Overdub, loopengine.Multiply, loopengine.Insert, loopengine.Replace, loopengine.Substitute:
		loop.RecordLayer().Audio.Put(loop.Frame(), in, n, audiobuf.OpAdd)
		loop.AdvanceRecord(n)
	}
}

// renderWrapped renders n frames of l starting at start, wrapping around
// l.Frames whenever the requested range crosses the loop boundary.
func renderWrapped(l *layer.Layer, start, n, channels int) []float32 {
	buf := make([]float32, n*channels)
	if l.Frames <= 0 {
		return buf
	}
	pos := wrapInt(start, l.Frames)
	offset := 0
	remaining := n
	for remaining > 0 {
		take := l.Frames - pos
		if take > remaining {
			take = remaining
		}
		l.Render(pos, take, buf[offset*channels:(offset+take)*channels])
		offset += take
		remaining -= take
		pos = 0
	}
	return buf
}

func reverseFrames(buf []float32, channels int) {
	n := len(buf) / channels
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		for c := 0; c < channels; c++ {
			buf[i*channels+c], buf[j*channels+c] = buf[j*channels+c], buf[i*channels+c]
		}
	}
}

func wrapInt(v, m int) int {
	if m <= 0 {
		return 0
	}
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}

// dispatch executes one due event against the active loop and this track's
// controls, then marks it processed (replaying any deferred reschedules)
// and returns it to the pool.
func (t *Track) dispatch(idx int) {
	ev := t.Scheduler.Event(idx)
	if ev == nil {
		return
	}
	loop := t.ActiveLoop()

	switch ev.Type {
	case event.TypeRecord:
		loop.StartRecord()
	case event.TypeRecordStop:
		loop.StopRecord()
	case event.TypeJumpPlay:
		if f, ok := ev.Payload.(int); ok {
			loop.SetPlayFrame(f)
		}
	case event.TypeReversePlay:
		loop.ToggleReverse()
	case event.TypeMultiply:
		if loop.Mode() == loopengine.Multiply {
			loop.EndMultiplyRounded(loop.PendingMultiplyCycles())
		} else {
			loop.StartMultiply()
		}
	case event.TypeMultiplyEnd:
		loop.EndMultiplyUnrounded()
	case event.TypeInsert:
		if loop.Mode() == loopengine.Multiply || loop.Mode() == loopengine.Insert {
			loop.EndMultiplyRounded(loop.PendingMultiplyCycles())
		} else {
			loop.StartMultiply()
		}
	case event.TypeInsertEnd:
		loop.EndMultiplyUnrounded()
	case event.TypeOverdub, event.TypeReplace, event.TypeSubstitute:
		if loop.Mode() == loopengine.Overdub {
			loop.StopOverdub()
		} else {
			loop.StartOverdub()
		}
	case event.TypeMute:
		loop.SetMuted(!loop.Muted())
	case event.TypeMove, event.TypeSlip, event.TypeRealign, event.TypeReturn:
		if f, ok := ev.Payload.(int); ok {
			loop.SetPlayFrame(f)
		}
	case event.TypeSpeed, event.TypeRate:
		speed := resample.SpeedFromComponents(t.Controls.SpeedOctave, t.Controls.SpeedSemitone, t.Controls.SpeedBend)
		t.Input.SetSpeed(speed)
		t.Output.SetSpeed(speed)
	case event.TypeSwitch:
		if n, ok := ev.Payload.(int); ok {
			if err := t.SetActive(n); err != nil {
				t.log.Logf(alog.SevWarning, "%v", err)
			}
		}
		t.Scheduler.ClearPendingSwitch()
	case event.TypeStartPoint:
		loop.ApplyStartPoint()
	case event.TypeSync:
		if se, ok := ev.Payload.(syncengine.SyncEvent); ok {
			t.log.Logf(alog.SevInfo, "sync pulse %s from %s at %d", se.PulseType, se.Source, ev.Frame)
		}
	case event.TypeValidate:
		t.log.Logf(alog.SevInfo, "validate checkpoint at %d", ev.Frame)
	case event.TypeTrack, event.TypeScript, event.TypeInvoke:
		// control-surface/script bookkeeping only; OnResolve (if any) fires
		// from MarkProcessed below.
	}

	t.Scheduler.MarkProcessed(idx, t.replay)
	t.Scheduler.Free(idx)
}

// replay is the per-track RescheduleFunc hook: it re-issues a deferred
// event now that its blocking mode-ender has resolved, rather than
// executing it in place. Calling dispatch here would free the event while
// RunRescheduling still holds its index pending re-insertion, corrupting
// the arena's free/active linkage. Instead replay recomputes the event's
// quantized target frame against the track's current position and leaves
// it Pending; the scheduler picks it up again through the normal
// NextEvent path on a later block (spec §4.6 "Rescheduling").
func (t *Track) replay(e *event.Event) {
	e.Frame = event.QuantizedFrame(t, t.absoluteFrame, e.QuantizeMode)
	e.Processed = false
	e.Pending = true
}
