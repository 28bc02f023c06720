package project

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/loopengine"
	"github.com/schollz/echocore/internal/track"
)

var stateJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// SegmentState mirrors layer.Segment. SourceLayer is an index into the
// owning LoopState.Layers table rather than a pointer, since layers are
// shared by reference across a loop's undo/redo chain and its segments.
type SegmentState struct {
	SourceLayer  int
	SourceStart  int
	DestOffset   int
	Frames       int
	HasFadeLeft  bool
	HasFadeRight bool
	Feedback     float32
}

// LayerState mirrors layer.Layer: its own local audio (flattened to
// interleaved samples) plus segments referencing earlier layers by table
// index. Prev/Redo are table indices too, -1 meaning nil.
type LayerState struct {
	Number   int
	Channels int
	Frames   int
	Cycles   int
	Samples  []float32
	Segments []SegmentState
	Prev     int
	Redo     int
}

// LoopState is one loop bank slot: mode and transport position at save
// time, plus the chain of layers reachable from its play and record heads.
type LoopState struct {
	Mode        int
	Frame       int
	PlayFrame   int
	Cycles      int
	Muted       bool
	Reverse     bool
	PlayLayer   int
	RecordLayer int
	Layers      []LayerState
}

// TrackState is one track's loop bank and which slot is active.
type TrackState struct {
	ActiveLoop int
	Loops      []LoopState
}

// State is the full persisted project: spec's "per track, a chain of
// layers with segment references and local audios; cycles, frame count,
// mode at time of save, active loop index".
type State struct {
	SampleRate int
	Channels   int
	Tracks     []TrackState
}

const dataFileName = "data.json.gz"

// Save flattens tracks into a State and writes it to dir/data.json.gz,
// gzip+JSON exactly like the teacher's own save format (see
// internal/storage), so the project browser above keeps finding projects
// by the same filename it already scans for.
func Save(dir string, sampleRate, channels int, tracks []*track.Track) error {
	st := State{SampleRate: sampleRate, Channels: channels}
	st.Tracks = make([]TrackState, len(tracks))
	for i, tr := range tracks {
		st.Tracks[i] = snapshotTrack(tr)
	}

	data, err := stateJSON.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal project state: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, dataFileName))
	if err != nil {
		return fmt.Errorf("create %s: %w", dataFileName, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return fmt.Errorf("write %s: %w", dataFileName, err)
	}
	return gw.Close()
}

// Load reads dir/data.json.gz back into a State. Reconstructing live
// tracks from it is the caller's job (ApplyTrack), since that requires a
// layer.Pool and loop bank sized to match the running engine.
func Load(dir string) (*State, error) {
	f, err := os.Open(filepath.Join(dir, dataFileName))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dataFileName, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dataFileName, err)
	}

	var st State
	if err := stateJSON.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal project state: %w", err)
	}
	return &st, nil
}

func snapshotTrack(tr *track.Track) TrackState {
	ts := TrackState{ActiveLoop: tr.ActiveIndex()}
	ts.Loops = make([]LoopState, len(tr.Loops))
	for i, lp := range tr.Loops {
		ts.Loops[i] = snapshotLoop(lp)
	}
	return ts
}

func snapshotLoop(lp *loopengine.Loop) LoopState {
	var table []*layer.Layer
	index := map[*layer.Layer]int{}

	var collect func(l *layer.Layer)
	collect = func(l *layer.Layer) {
		if l == nil {
			return
		}
		if _, ok := index[l]; ok {
			return
		}
		index[l] = len(table)
		table = append(table, l)
		collect(l.Prev)
		collect(l.Redo)
		for _, s := range l.Segments {
			collect(s.SourceLayer)
		}
	}
	collect(lp.PlayLayer())
	collect(lp.RecordLayer())

	layers := make([]LayerState, len(table))
	for i, l := range table {
		layers[i] = snapshotLayer(l, index)
	}

	return LoopState{
		Mode:        int(lp.Mode()),
		Frame:       lp.Frame(),
		PlayFrame:   lp.PlayFrame(),
		Cycles:      lp.Cycles(),
		Muted:       lp.Muted(),
		Reverse:     lp.Reverse(),
		PlayLayer:   index[lp.PlayLayer()],
		RecordLayer: index[lp.RecordLayer()],
		Layers:      layers,
	}
}

func snapshotLayer(l *layer.Layer, index map[*layer.Layer]int) LayerState {
	samples := make([]float32, l.Frames*l.Channels)
	if l.Frames > 0 {
		l.Audio.ReadInto(0, l.Frames, samples)
	}

	segs := make([]SegmentState, len(l.Segments))
	for i, s := range l.Segments {
		segs[i] = SegmentState{
			SourceLayer:  index[s.SourceLayer],
			SourceStart:  s.SourceStart,
			DestOffset:   s.DestOffset,
			Frames:       s.Frames,
			HasFadeLeft:  s.HasFadeLeft,
			HasFadeRight: s.HasFadeRight,
			Feedback:     s.Feedback,
		}
	}

	prev, redo := -1, -1
	if l.Prev != nil {
		prev = index[l.Prev]
	}
	if l.Redo != nil {
		redo = index[l.Redo]
	}

	return LayerState{
		Number:   l.Number,
		Channels: l.Channels,
		Frames:   l.Frames,
		Cycles:   l.Cycles,
		Samples:  samples,
		Segments: segs,
		Prev:     prev,
		Redo:     redo,
	}
}

// ApplyTrack rebuilds one track's loop bank from a TrackState, using pool
// to allocate (and renumber past) restored layers. The track's loop bank
// must already be sized to at least len(ts.Loops); loops beyond that are
// skipped.
func ApplyTrack(tr *track.Track, ts TrackState, outputLatency int) error {
	for i, lsState := range ts.Loops {
		if i >= len(tr.Loops) {
			break
		}
		restored, err := restoreLoop(i, tr.Pool, outputLatency, lsState)
		if err != nil {
			return fmt.Errorf("restore loop %d: %w", i, err)
		}
		tr.Loops[i] = restored
	}
	return tr.SetActive(ts.ActiveLoop)
}

func restoreLoop(number int, pool *layer.Pool, outputLatency int, ls LoopState) (*loopengine.Loop, error) {
	layers := make([]*layer.Layer, len(ls.Layers))
	for i, lsr := range ls.Layers {
		layers[i] = pool.Restore(lsr.Number, lsr.Channels, lsr.Frames, lsr.Cycles, lsr.Samples)
	}
	for i, lsr := range ls.Layers {
		l := layers[i]
		if lsr.Prev >= 0 {
			l.Prev = layers[lsr.Prev]
		}
		if lsr.Redo >= 0 {
			l.Redo = layers[lsr.Redo]
		}
		for _, segState := range lsr.Segments {
			if segState.SourceLayer < 0 || segState.SourceLayer >= len(layers) {
				return nil, fmt.Errorf("segment source layer index %d out of range", segState.SourceLayer)
			}
			seg := l.AddSegment(layers[segState.SourceLayer], segState.SourceStart, segState.DestOffset, segState.Frames)
			seg.HasFadeLeft = segState.HasFadeLeft
			seg.HasFadeRight = segState.HasFadeRight
			seg.Feedback = segState.Feedback
		}
	}

	if ls.PlayLayer < 0 || ls.PlayLayer >= len(layers) || ls.RecordLayer < 0 || ls.RecordLayer >= len(layers) {
		return nil, fmt.Errorf("play/record layer index out of range")
	}

	return loopengine.Restore(number, pool, outputLatency, loopengine.Mode(ls.Mode), ls.Frame, ls.PlayFrame, ls.Cycles, ls.Muted, ls.Reverse, layers[ls.PlayLayer], layers[ls.RecordLayer]), nil
}
