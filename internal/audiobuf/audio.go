// Package audiobuf implements the sparse, block-chunked audio buffer and its
// cursor, the storage backbone every layer and stream reads and writes
// through.
package audiobuf

const BlockFrames = 4096

// Op selects how Put combines new samples with whatever is already stored.
type Op int

const (
	OpAdd Op = iota
	OpReplace
	OpRemove
)

// Audio is a sparse ordered sequence of interleaved frames, stored as a
// vector of fixed-size blocks. A nil block is read as silence and costs no
// memory. Version increments on any structural change (block allocation,
// reset) and is used by AudioCursor to detect staleness.
type Audio struct {
	Channels   int
	StartFrame int
	blocks     [][]float32 // each non-nil block holds BlockFrames*Channels samples
	frames     int
	version    uint64
}

func New(channels int) *Audio {
	if channels < 1 {
		channels = 1
	}
	return &Audio{Channels: channels}
}

func (a *Audio) Frames() int      { return a.frames }
func (a *Audio) Version() uint64  { return a.version }
func (a *Audio) NumBlocks() int   { return len(a.blocks) }
func (a *Audio) bump()            { a.version++ }

// Reset empties the audio back to zero length, releasing all blocks.
func (a *Audio) Reset() {
	a.blocks = nil
	a.frames = 0
	a.StartFrame = 0
	a.bump()
}

// Locate maps an absolute frame to a (blockIndex, blockOffset) pair.
func (a *Audio) Locate(frame int) (blockIndex, blockOffset int) {
	abs := frame + a.StartFrame
	if abs < 0 {
		abs = 0
	}
	return abs / BlockFrames, abs % BlockFrames
}

// blockAt returns the block holding frame, allocating it (and any
// intervening blocks as sparse nils) if prepare is true.
func (a *Audio) blockAt(index int, prepare bool) []float32 {
	if index < len(a.blocks) {
		b := a.blocks[index]
		if b == nil && prepare {
			b = make([]float32, BlockFrames*a.Channels)
			a.blocks[index] = b
			a.bump()
		}
		return b
	}
	if !prepare {
		return nil
	}
	for len(a.blocks) <= index {
		a.blocks = append(a.blocks, nil)
	}
	b := make([]float32, BlockFrames*a.Channels)
	a.blocks[index] = b
	a.bump()
	return b
}

// PrepareFrame ensures a writable block backs frame, extending the logical
// length if necessary.
func (a *Audio) PrepareFrame(frame int) {
	idx, _ := a.Locate(frame)
	a.blockAt(idx, true)
	if frame+1 > a.frames {
		a.frames = frame + 1
	}
}

// ReadInto reads nFrames starting at frame into dst (length
// nFrames*Channels), mixing silence for unallocated blocks. Always returns
// nFrames; frames outside the buffer read as zero.
func (a *Audio) ReadInto(frame, nFrames int, dst []float32) int {
	ch := a.Channels
	for f := 0; f < nFrames; f++ {
		cur := frame + f
		dstBase := f * ch
		if cur < 0 || cur >= a.frames {
			for c := 0; c < ch; c++ {
				dst[dstBase+c] = 0
			}
			continue
		}
		idx, off := a.Locate(cur)
		block := a.blockAt(idx, false)
		if block == nil {
			for c := 0; c < ch; c++ {
				dst[dstBase+c] = 0
			}
			continue
		}
		srcBase := off * ch
		copy(dst[dstBase:dstBase+ch], block[srcBase:srcBase+ch])
	}
	return nFrames
}

// Put writes nFrames from src (interleaved, Channels wide) starting at
// frame, combining per op. OpReplace overwrites, OpAdd mixes, OpRemove
// subtracts (used to undo a mix). Extends the buffer as needed.
func (a *Audio) Put(frame int, src []float32, nFrames int, op Op) {
	ch := a.Channels
	for f := 0; f < nFrames; f++ {
		cur := frame + f
		a.PrepareFrame(cur)
		idx, off := a.Locate(cur)
		block := a.blockAt(idx, true)
		srcBase := f * ch
		dstBase := off * ch
		for c := 0; c < ch; c++ {
			s := src[srcBase+c]
			switch op {
			case OpReplace:
				block[dstBase+c] = s
			case OpAdd:
				block[dstBase+c] += s
			case OpRemove:
				block[dstBase+c] -= s
			}
		}
	}
}
