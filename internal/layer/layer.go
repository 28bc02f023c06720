// Package layer implements the copy-on-write layer/segment content graph: a
// layer's content is its own local audio plus a set of segments referencing
// ranges of earlier, now-immutable layers.
package layer

import (
	"github.com/schollz/echocore/internal/audiobuf"
	"github.com/schollz/echocore/internal/ramp"
)

// Segment is a read-only reference from a layer into a range of an earlier
// layer. It holds a strong reference to sourceLayer for the lifetime of the
// segment.
type Segment struct {
	SourceLayer    *Layer
	SourceStart    int
	DestOffset     int
	Frames         int
	FadeLeft       ramp.Fade
	FadeRight      ramp.Fade
	HasFadeLeft    bool
	HasFadeRight   bool
	DeferredLeft   bool
	DeferredRight  bool
	LocalCopyLeft  int
	LocalCopyRight int
	Feedback       float32
}

func newSegment(src *Layer, srcStart, destOffset, frames int) *Segment {
	src.Retain()
	s := &Segment{SourceLayer: src, SourceStart: srcStart, DestOffset: destOffset, Frames: frames, Feedback: 1}
	return s
}

func (s *Segment) release() {
	if s.SourceLayer != nil {
		s.SourceLayer.Release()
		s.SourceLayer = nil
	}
}

// Layer is a node in the undo/redo content chain: a local Audio (the
// increment recorded directly into this layer) plus segments referencing
// prior layers.
type Layer struct {
	Number     int
	Audio      *audiobuf.Audio
	Channels   int
	Segments   []*Segment
	Frames     int
	Cycles     int
	DeferLeft  bool
	DeferRight bool
	Prev       *Layer // undo chain
	Redo       *Layer // redo chain
	FadeTable  *ramp.Table

	refCount int32
}

// Pool hands out monotonically increasing layer numbers. Layers whose
// reference count drops to zero are not handed back to it, so Freed always
// reports 0.
type Pool struct {
	channels int
	next     int
	freed    int
	table    *ramp.Table
}

func NewPool(channels int) *Pool {
	return &Pool{channels: channels, table: ramp.NewTable(ramp.DefaultRange)}
}

// NewSilence allocates a fresh, empty layer with refcount 1 representing the
// initial silence a loop's undo chain bottoms out at.
func (p *Pool) NewSilence() *Layer {
	l := &Layer{
		Number:    p.next,
		Audio:     audiobuf.New(p.channels),
		Channels:  p.channels,
		Cycles:    1,
		FadeTable: p.table,
		refCount:  1,
	}
	p.next++
	return l
}

func (p *Pool) Freed() int { return p.freed }

// Restore reconstructs a layer at a specific number with local audio
// pre-seeded from flat interleaved samples, bumping the pool's allocation
// counter past it so later NewSilence calls never collide. Segments are
// attached afterward by the caller via AddSegment so retain bookkeeping
// stays correct; Restore itself starts the layer at refcount 1.
func (p *Pool) Restore(number, channels, frames, cycles int, samples []float32) *Layer {
	if number >= p.next {
		p.next = number + 1
	}
	a := audiobuf.New(channels)
	if frames > 0 && len(samples) > 0 {
		a.Put(0, samples, frames, audiobuf.OpReplace)
	}
	return &Layer{
		Number:    number,
		Audio:     a,
		Channels:  channels,
		Frames:    frames,
		Cycles:    cycles,
		FadeTable: p.table,
		refCount:  1,
	}
}

// Retain increments the reference count. A layer is reachable from a loop's
// play/record/undo/redo chain or from any segment; Release drops its
// segment references when the count reaches zero.
func (l *Layer) Retain() {
	l.refCount++
}

// Release decrements the reference count, recursively releasing the layer's
// segments (and therefore their source layers) once it reaches zero.
func (l *Layer) Release() {
	l.refCount--
	if l.refCount > 0 {
		return
	}
	for _, s := range l.Segments {
		s.release()
	}
	l.Segments = nil
}

func (l *Layer) RefCount() int32 { return l.refCount }

// AddSegment appends a segment referencing src[srcStart:srcStart+frames]
// into this layer at destOffset.
func (l *Layer) AddSegment(src *Layer, srcStart, destOffset, frames int) *Segment {
	s := newSegment(src, srcStart, destOffset, frames)
	l.Segments = append(l.Segments, s)
	return s
}

// Render reconstructs nFrames of this layer's content starting at frame into
// dst (Channels wide), by mixing local audio with every segment overlapping
// the requested range. Segments are non-overlapping in the destination
// domain by construction, so mixing (rather than painter's-algorithm
// overwrite) is sufficient and exact.
func (l *Layer) Render(frame, nFrames int, dst []float32) {
	ch := l.Channels
	for i := range dst[:nFrames*ch] {
		dst[i] = 0
	}
	local := make([]float32, nFrames*ch)
	l.Audio.ReadInto(frame, nFrames, local)
	for i := range local {
		dst[i] += local[i]
	}

	for _, seg := range l.Segments {
		segEnd := seg.DestOffset + seg.Frames
		rangeEnd := frame + nFrames
		lo := max(frame, seg.DestOffset)
		hi := min(rangeEnd, segEnd)
		if lo >= hi {
			continue
		}
		count := hi - lo
		srcFrame := seg.SourceStart + (lo - seg.DestOffset)
		tmp := make([]float32, count*ch)
		seg.SourceLayer.Render(srcFrame, count, tmp)
		applySegmentFades(seg, l.FadeTable, lo-seg.DestOffset, count, ch, tmp)
		dstOff := (lo - frame) * ch
		for i := 0; i < count*ch; i++ {
			dst[dstOff+i] += tmp[i] * seg.Feedback
		}
	}
}

// applySegmentFades attenuates buf (count frames, offset offsetInSeg into
// the segment) for any edge within the fade table's window: the segment's
// first FadeTable.Len() frames ramp up from silence if HasFadeLeft, and its
// last FadeTable.Len() frames ramp down to silence if HasFadeRight.
func applySegmentFades(seg *Segment, table *ramp.Table, offsetInSeg, count, ch int, buf []float32) {
	if table == nil {
		return
	}
	n := table.Len()
	for f := 0; f < count; f++ {
		pos := offsetInSeg + f
		mul := float32(1)
		if seg.HasFadeLeft && pos < n {
			mul *= table.At(pos)
		}
		if seg.HasFadeRight {
			fromEnd := seg.Frames - 1 - pos
			if fromEnd < n {
				mul *= table.At(fromEnd)
			}
		}
		if mul == 1 {
			continue
		}
		base := f * ch
		for c := 0; c < ch; c++ {
			buf[base+c] *= mul
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
