package layer

// Shift performs the atomic promotion described in the specification: the
// layer that was just recorded into becomes the new play layer (no audio is
// copied), and a fresh record layer is allocated whose sole segment
// references the entire new play layer, with feedback encoded into the
// segment. The new record layer's Prev links to the play layer, extending
// the undo chain.
func Shift(pool *Pool, finishedRecord *Layer, feedback float32) (playLayer, newRecordLayer *Layer) {
	playLayer = finishedRecord

	newRecordLayer = pool.NewSilence()
	newRecordLayer.Channels = playLayer.Channels
	newRecordLayer.Frames = playLayer.Frames
	newRecordLayer.Cycles = playLayer.Cycles

	newRecordLayer.Prev = playLayer
	playLayer.Retain() // undo-chain reference, independent of the segment's

	if playLayer.Frames > 0 {
		seg := newRecordLayer.AddSegment(playLayer, 0, 0, playLayer.Frames)
		seg.Feedback = feedback
	}
	return playLayer, newRecordLayer
}

// Undo walks one step back in the undo chain, linking a Redo pointer so the
// step can be replayed forward. Returns nil if cur has no prior layer.
func Undo(cur *Layer) *Layer {
	prev := cur.Prev
	if prev == nil {
		return nil
	}
	prev.Redo = cur
	return prev
}

// Redo walks one step forward if cur was reached via Undo.
func Redo(cur *Layer) *Layer {
	return cur.Redo
}

// Splice restructures a layer so that frame modeStartFrame of the source
// becomes the new frame 0 and the result is newFrames long with the given
// cycle count. Used by unrounded multiply (cycles=1) and rounded multiply
// (cycles preserved). The new layer references the source via one or two
// segments (two when the window wraps the loop boundary); no audio is
// copied.
func Splice(pool *Pool, source *Layer, modeStartFrame, newFrames, cycles int) *Layer {
	out := pool.NewSilence()
	out.Channels = source.Channels
	out.Frames = newFrames
	out.Cycles = cycles
	out.Prev = source
	source.Retain()

	if source.Frames == 0 || newFrames == 0 {
		return out
	}

	start := modeStartFrame % source.Frames
	if start < 0 {
		start += source.Frames
	}

	firstLen := source.Frames - start
	if firstLen > newFrames {
		firstLen = newFrames
	}
	out.AddSegment(source, start, 0, firstLen)

	remaining := newFrames - firstLen
	if remaining > 0 {
		out.AddSegment(source, 0, firstLen, remaining)
	}
	return out
}

// StartPoint relocates the effective frame 0 of a layer built from a single
// whole-loop segment (the state immediately after a pre-shift) to
// relocateFrame, splitting that segment into two in swapped order and
// carrying over any deferred-fade flags symmetrically. A relocateFrame of 0
// is a no-op.
func StartPoint(l *Layer, relocateFrame int) {
	if relocateFrame == 0 || l.Frames == 0 || len(l.Segments) != 1 {
		return
	}
	orig := l.Segments[0]
	relocateFrame %= l.Frames
	if relocateFrame < 0 {
		relocateFrame += l.Frames
	}

	head := orig.SourceLayer

	firstLen := l.Frames - relocateFrame
	first := newSegment(head, orig.SourceStart+relocateFrame, 0, firstLen)
	first.DeferredRight = orig.DeferredRight
	first.HasFadeRight = orig.HasFadeRight

	second := newSegment(head, orig.SourceStart, firstLen, relocateFrame)
	second.DeferredLeft = orig.DeferredLeft
	second.HasFadeLeft = orig.HasFadeLeft

	orig.release()
	l.Segments = []*Segment{first, second}
}
