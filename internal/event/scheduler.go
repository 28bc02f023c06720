package event

import "github.com/schollz/echocore/internal/alog"

// QuantizeMode selects the boundary an event is pushed to when it cannot
// execute immediately.
type QuantizeMode int

const (
	QuantizeOff QuantizeMode = iota
	QuantizeSubcycle
	QuantizeCycle
	QuantizeLoop
)

// Quantizer supplies the frame geometry the scheduler needs to compute
// quantized frames without depending on the loop engine package directly.
type Quantizer interface {
	LoopFrames() int
	CycleFrames() int
	SubcycleFrames() int
}

// Scheduler is the per-track event list described in spec §4.6: an
// insertion-ordered primary list, a parent/child tree, a pending switch
// pointer, and a reusable owned sync event.
type Scheduler struct {
	arena []Event
	free  []int

	listHead int
	listTail int

	switchEvent        int
	syncEvent          int
	lastSyncEventFrame int
	haveSyncEventFrame bool

	log *alog.Logger
}

func New(trackLabel string) *Scheduler {
	return &Scheduler{
		listHead:    noIndex,
		listTail:    noIndex,
		switchEvent: noIndex,
		syncEvent:   noIndex,
		log:         alog.New("scheduler:" + trackLabel),
	}
}

func (s *Scheduler) alloc() int {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.arena[idx] = Event{index: idx, parent: noIndex, firstChild: noIndex, nextSibling: noIndex, prevSibling: noIndex, listNext: noIndex, listPrev: noIndex, inUse: true}
		return idx
	}
	idx := len(s.arena)
	s.arena = append(s.arena, Event{index: idx, parent: noIndex, firstChild: noIndex, nextSibling: noIndex, prevSibling: noIndex, listNext: noIndex, listPrev: noIndex, inUse: true})
	return idx
}

// Event returns a pointer into the arena for idx, or nil if idx is invalid
// or the slot is not in use.
func (s *Scheduler) Event(idx int) *Event {
	if idx == noIndex || idx < 0 || idx >= len(s.arena) || !s.arena[idx].inUse {
		return nil
	}
	return &s.arena[idx]
}

func (s *Scheduler) listAppend(idx int) {
	e := &s.arena[idx]
	e.listPrev = s.listTail
	e.listNext = noIndex
	if s.listTail != noIndex {
		s.arena[s.listTail].listNext = idx
	} else {
		s.listHead = idx
	}
	s.listTail = idx
}

func (s *Scheduler) listRemove(idx int) {
	e := &s.arena[idx]
	if e.listPrev != noIndex {
		s.arena[e.listPrev].listNext = e.listNext
	} else {
		s.listHead = e.listNext
	}
	if e.listNext != noIndex {
		s.arena[e.listNext].listPrev = e.listPrev
	} else {
		s.listTail = e.listPrev
	}
	e.listNext, e.listPrev = noIndex, noIndex
}

// Add inserts a fully-formed event at the tail of the primary list. The
// event is copied into a newly allocated arena slot on every call; Add does
// not check whether the event is already on a list.
func (s *Scheduler) Add(e Event) int {
	idx := s.alloc()
	arenaIdx := s.arena[idx].index
	e.index = arenaIdx
	e.parent, e.firstChild, e.nextSibling, e.prevSibling = noIndex, noIndex, noIndex, noIndex
	e.listNext, e.listPrev = noIndex, noIndex
	e.inUse = true
	s.arena[arenaIdx] = e
	s.listAppend(arenaIdx)
	return arenaIdx
}

// AddChild appends a child event under parentIdx's first-child/sibling
// chain (insertion order), and also threads it onto the primary list so
// NextEvent can find it directly.
func (s *Scheduler) AddChild(parentIdx int, e Event) int {
	childIdx := s.Add(e)
	s.arena[childIdx].parent = parentIdx
	p := &s.arena[parentIdx]
	if p.firstChild == noIndex {
		p.firstChild = childIdx
	} else {
		last := p.firstChild
		for s.arena[last].nextSibling != noIndex {
			last = s.arena[last].nextSibling
		}
		s.arena[last].nextSibling = childIdx
		s.arena[childIdx].prevSibling = last
	}
	return childIdx
}

// Free returns an event (and, per spec, its *processed* children) to the
// pool. An event still on the primary list is force-removed with a
// warning; unprocessed children are detached and leaked rather than
// double-freed, matching the documented diagnostic behavior.
func (s *Scheduler) Free(idx int) {
	e := s.Event(idx)
	if e == nil {
		return
	}
	if e.listNext != noIndex || e.listPrev != noIndex || s.listHead == idx {
		s.log.Once(alog.SevViolation, "free-on-list", "freeing event %d still on list; force-removing", idx)
		s.listRemove(idx)
	}

	child := e.firstChild
	for child != noIndex {
		next := s.arena[child].nextSibling
		if s.arena[child].Processed {
			s.Free(child)
		} else {
			s.log.Logf(alog.SevWarning, "detaching unprocessed child %d of freed event %d", child, idx)
			s.arena[child].parent = noIndex
		}
		child = next
	}

	if e.OnResolve != nil {
		e.OnResolve(true)
	}
	e.inUse = false
	s.free = append(s.free, idx)
}

// Len reports how many events are currently on the primary list.
func (s *Scheduler) Len() int {
	n := 0
	for idx := s.listHead; idx != noIndex; idx = s.arena[idx].listNext {
		n++
	}
	return n
}

func wrapMod(v, m int) int {
	if m <= 0 {
		return 0
	}
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}

// QuantizedFrame computes the target frame for mode relative to `now`,
// pushing forward to the next boundary strictly after now. now and the
// result are both in the scheduler's monotonic absoluteFrame coordinate;
// none of the cases wrap through a loop-relative modulus, since that would
// fold the target behind now once absoluteFrame grows past one loop length.
func QuantizedFrame(q Quantizer, now int, mode QuantizeMode) int {
	switch mode {
	case QuantizeSubcycle:
		span := q.SubcycleFrames()
		if span <= 0 {
			return now
		}
		return ((now / span) + 1) * span
	case QuantizeCycle:
		span := q.CycleFrames()
		if span <= 0 {
			return now
		}
		return ((now / span) + 1) * span
	case QuantizeLoop:
		span := q.LoopFrames()
		if span <= 0 {
			return now
		}
		return ((now / span) + 1) * span
	default:
		return now
	}
}

// Schedule computes the quantized frame for a new event and inserts it,
// stacking-avoidance iterating to the next boundary when another event
// already occupies the target frame and stacking is forbidden. It also
// applies the reschedule-on-mode-ender rule from spec §4.6 step 2.
func (s *Scheduler) Schedule(q Quantizer, now int, typ Type, mode QuantizeMode, allowStack bool, action *Action) int {
	frame := QuantizedFrame(q, now, mode)
	if !allowStack {
		for guard := 0; guard < 64 && s.frameOccupied(frame); guard++ {
			next := QuantizedFrame(q, frame, mode)
			if next == frame || mode == QuantizeOff {
				break
			}
			frame = next
		}
	}

	e := Event{Type: typ, Frame: frame, Pending: true, Quantized: mode != QuantizeOff, QuantizeMode: mode, Action: action}
	for idx := s.listHead; idx != noIndex; idx = s.arena[idx].listNext {
		if Reschedules(s.arena[idx].Type) && s.arena[idx].Frame <= frame && !s.arena[idx].Processed {
			e.Reschedule = true
			break
		}
	}
	return s.Add(e)
}

func (s *Scheduler) frameOccupied(frame int) bool {
	for idx := s.listHead; idx != noIndex; idx = s.arena[idx].listNext {
		if s.arena[idx].Frame == frame {
			return true
		}
	}
	return false
}

// ScheduleJump attaches a JumpPlay child under parentIdx, compensating for
// combined input+output latency. If the computed frame would land before
// now, the jump's distance is reduced and the lost latency recorded on the
// child (spec §4.6 "Play-jump scheduling").
func (s *Scheduler) ScheduleJump(parentIdx int, now, inLatency, outLatency int) int {
	parent := s.Event(parentIdx)
	target := parent.Frame - inLatency - outLatency
	loss := 0
	if target < now {
		loss = now - target
		target = now
	}
	child := Event{Type: TypeJumpPlay, Frame: target, Pending: true, LatencyLoss: loss}
	return s.AddChild(parentIdx, child)
}

// RescheduleFunc re-issues a deferred event now that its blocking mode-ender
// has resolved: it recomputes e's quantized target frame in place (e.g. via
// QuantizedFrame against the track's current absoluteFrame) and leaves e
// Pending for the scheduler to dispatch normally later. It must not execute
// e's action itself and must not free e — RunRescheduling owns e's list
// membership, not fn.
type RescheduleFunc func(e *Event)

// RunRescheduling walks the list after a mode-ending event has executed,
// removing events flagged Reschedule in nearest-first order and replaying
// each through fn (spec §4.6 "Rescheduling"). fn is expected to update e's
// Frame and leave it pending rather than dispatch it; RunRescheduling
// re-links e onto the primary list afterward only if fn left it in use — a
// fn that frees e (or otherwise re-links it) is not double-appended.
func (s *Scheduler) RunRescheduling(fn RescheduleFunc) {
	type pending struct {
		idx   int
		frame int
	}
	var list []pending
	for idx := s.listHead; idx != noIndex; idx = s.arena[idx].listNext {
		if s.arena[idx].Reschedule {
			list = append(list, pending{idx, s.arena[idx].Frame})
		}
	}
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			if list[j].frame < list[i].frame {
				list[i], list[j] = list[j], list[i]
			}
		}
	}
	for _, p := range list {
		e := s.Event(p.idx)
		if e == nil {
			continue
		}
		e.Reschedule = false
		s.listRemove(p.idx)
		fn(e)
		if s.Event(p.idx) != nil {
			s.listAppend(p.idx)
		}
	}
}

// NextEvent selects the next event to process within [frame, frame+n):
// an unprocessed Immediate event anywhere in the list if there is one,
// otherwise the earliest unprocessed event in the window (ties go to the
// event earlier in the list), with a same-frame jump child preferred over
// its parent. Sync events are ordinary list entries and compete by frame
// like any other event. No loop/cycle/subcycle boundary pseudo-events are
// produced here. Returns noIndex if nothing falls within the window.
func (s *Scheduler) NextEvent(frame, n int) int {
	end := frame + n

	for idx := s.listHead; idx != noIndex; idx = s.arena[idx].listNext {
		if s.arena[idx].Immediate && !s.arena[idx].Processed {
			return idx
		}
	}

	best := noIndex
	bestFrame := end + 1
	for idx := s.listHead; idx != noIndex; idx = s.arena[idx].listNext {
		ev := &s.arena[idx]
		if ev.Processed || ev.Frame < frame || ev.Frame >= end {
			continue
		}
		candidate := idx
		candidateFrame := ev.Frame
		// prefer a same-frame jump child over its parent
		child := ev.firstChild
		for child != noIndex {
			c := &s.arena[child]
			if !c.Processed && c.Frame == ev.Frame && c.Type == TypeJumpPlay {
				candidate = child
				break
			}
			child = c.nextSibling
		}
		if candidateFrame < bestFrame {
			best = candidate
			bestFrame = candidateFrame
		}
	}
	return best
}

// MarkBoundary reports whether a loop/cycle/subcycle boundary at `frame`
// should emit a pseudo event, debouncing repeats at the same frame.
func (s *Scheduler) MarkBoundary(frame int) bool {
	if s.haveSyncEventFrame && s.lastSyncEventFrame == frame {
		return false
	}
	s.lastSyncEventFrame = frame
	s.haveSyncEventFrame = true
	return true
}

// Undo removes the most recent quantized parent event without NoUndo,
// undoing any processed children in reverse insertion order first. Undoing
// a pending switch pops its stacked child before cancelling the switch
// itself (spec §4.6 "Undo").
func (s *Scheduler) Undo() bool {
	if s.switchEvent != noIndex {
		sw := s.Event(s.switchEvent)
		if sw.firstChild != noIndex {
			last := sw.firstChild
			for s.arena[last].nextSibling != noIndex {
				last = s.arena[last].nextSibling
			}
			s.detachChild(s.switchEvent, last)
			s.Free(last)
			return true
		}
		s.Free(s.switchEvent)
		s.switchEvent = noIndex
		return true
	}

	var target int = noIndex
	for idx := s.listTail; idx != noIndex; idx = s.arena[idx].listPrev {
		e := &s.arena[idx]
		if e.parent == noIndex && e.Quantized && !e.NoUndo {
			target = idx
			break
		}
	}
	if target == noIndex {
		return false
	}

	e := &s.arena[target]
	child := e.firstChild
	var processedChildren []int
	for child != noIndex {
		if s.arena[child].Processed {
			processedChildren = append(processedChildren, child)
		}
		child = s.arena[child].nextSibling
	}
	for i := len(processedChildren) - 1; i >= 0; i-- {
		c := s.Event(processedChildren[i])
		if c.OnResolve != nil {
			c.OnResolve(true)
		}
	}
	s.Free(target)
	return true
}

func (s *Scheduler) detachChild(parentIdx, childIdx int) {
	p := &s.arena[parentIdx]
	c := &s.arena[childIdx]
	if c.prevSibling != noIndex {
		s.arena[c.prevSibling].nextSibling = c.nextSibling
	} else {
		p.firstChild = c.nextSibling
	}
	if c.nextSibling != noIndex {
		s.arena[c.nextSibling].prevSibling = c.prevSibling
	}
	c.nextSibling, c.prevSibling = noIndex, noIndex
}

// SetPendingSwitch records idx as the scheduler's pending switch event.
func (s *Scheduler) SetPendingSwitch(idx int) { s.switchEvent = idx }
func (s *Scheduler) PendingSwitch() int       { return s.switchEvent }
func (s *Scheduler) ClearPendingSwitch()      { s.switchEvent = noIndex }

// StackOnSwitch stacks a function invocation as a child of the pending
// SwitchEvent (spec example 5: Undo through a switch stack).
func (s *Scheduler) StackOnSwitch(e Event) int {
	if s.switchEvent == noIndex {
		s.log.Logf(alog.SevWarning, "StackOnSwitch called with no pending switch")
		return noIndex
	}
	return s.AddChild(s.switchEvent, e)
}

// MarkProcessed marks idx processed, running RunRescheduling via fn if the
// event's type is a mode-ender.
func (s *Scheduler) MarkProcessed(idx int, fn RescheduleFunc) {
	e := s.Event(idx)
	if e == nil {
		s.log.Logf(alog.SevViolation, "MarkProcessed on invalid index %d", idx)
		return
	}
	if e.Function == "" {
		s.log.Once(alog.SevViolation, "nil-function", "event %d has no function at execution; marking it processed", idx)
	}
	e.Processed = true
	if e.OnResolve != nil {
		e.OnResolve(false)
	}
	if Reschedules(e.Type) && fn != nil {
		s.RunRescheduling(fn)
	}
}
