package layer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func recordInto(l *Layer, frame int, value float32) {
	l.Audio.Put(frame, []float32{value}, 1, 0)
}

func TestShiftPromotesRecordToPlay(t *testing.T) {
	pool := NewPool(1)
	silence := pool.NewSilence()
	silence.Frames = 4
	recordInto(silence, 0, 1)
	recordInto(silence, 1, 2)
	recordInto(silence, 2, 3)
	recordInto(silence, 3, 4)

	play, rec := Shift(pool, silence, 1)
	require.Equal(t, silence, play)
	require.Equal(t, play, rec.Prev)
	require.Len(t, rec.Segments, 1)

	dst := make([]float32, 4)
	rec.Render(0, 4, dst)
	require.Equal(t, []float32{1, 2, 3, 4}, dst)
}

func TestShiftIsReferenceCountedNotCopied(t *testing.T) {
	pool := NewPool(1)
	silence := pool.NewSilence()
	silence.Frames = 2
	before := silence.RefCount()

	_, rec := Shift(pool, silence, 1)
	require.Greater(t, silence.RefCount(), before)

	rec.Release()
	// two references remain: the one from allocation and the Prev link
	// Shift added
	require.GreaterOrEqual(t, silence.RefCount(), int32(1))
}

func TestUndoRedoWalksChain(t *testing.T) {
	pool := NewPool(1)
	silence := pool.NewSilence()
	silence.Frames = 2
	play, rec := Shift(pool, silence, 1)

	back := Undo(rec)
	require.Equal(t, play, back)
	require.Equal(t, rec, Redo(back))
}

func TestUndoAtRootReturnsNil(t *testing.T) {
	pool := NewPool(1)
	silence := pool.NewSilence()
	require.Nil(t, Undo(silence))
}

func TestSpliceUnroundedMultiplyNoWrap(t *testing.T) {
	pool := NewPool(1)
	src := pool.NewSilence()
	src.Frames = 10
	for i := 0; i < 10; i++ {
		recordInto(src, i, float32(i))
	}

	out := Splice(pool, src, 3, 4, 1)
	require.Equal(t, 4, out.Frames)
	require.Equal(t, 1, out.Cycles)

	dst := make([]float32, 4)
	out.Render(0, 4, dst)
	require.Equal(t, []float32{3, 4, 5, 6}, dst)
}

func TestSpliceWrapsAcrossLoopBoundary(t *testing.T) {
	pool := NewPool(1)
	src := pool.NewSilence()
	src.Frames = 5
	for i := 0; i < 5; i++ {
		recordInto(src, i, float32(i))
	}

	out := Splice(pool, src, 3, 5, 1)
	dst := make([]float32, 5)
	out.Render(0, 5, dst)
	require.Equal(t, []float32{3, 4, 0, 1, 2}, dst)
}

func TestStartPointZeroIsNoop(t *testing.T) {
	pool := NewPool(1)
	base := pool.NewSilence()
	base.Frames = 4
	for i := 0; i < 4; i++ {
		recordInto(base, i, float32(i))
	}
	_, rec := Shift(pool, base, 1)

	before := make([]float32, 4)
	rec.Render(0, 4, before)

	StartPoint(rec, 0)

	after := make([]float32, 4)
	rec.Render(0, 4, after)
	require.Equal(t, before, after)
}

func TestStartPointRelocatesOrigin(t *testing.T) {
	pool := NewPool(1)
	base := pool.NewSilence()
	base.Frames = 4
	for i := 0; i < 4; i++ {
		recordInto(base, i, float32(i))
	}
	_, rec := Shift(pool, base, 1)

	StartPoint(rec, 2)
	require.Len(t, rec.Segments, 2)

	dst := make([]float32, 4)
	rec.Render(0, 4, dst)
	require.Equal(t, []float32{2, 3, 0, 1}, dst)
}

func TestRenderSumsLocalAndSegments(t *testing.T) {
	pool := NewPool(1)
	base := pool.NewSilence()
	base.Frames = 2
	recordInto(base, 0, 10)
	recordInto(base, 1, 20)

	_, rec := Shift(pool, base, 1)
	// overdub: mix additional local content on top of the referenced segment
	rec.Audio.Put(0, []float32{1}, 1, 0)

	dst := make([]float32, 2)
	rec.Render(0, 2, dst)
	require.InDelta(t, 11, dst[0], 1e-6)
	require.InDelta(t, 20, dst[1], 1e-6)
}
