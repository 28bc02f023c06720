package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schollz/echocore/internal/event"
	"github.com/schollz/echocore/internal/layer"
	"github.com/schollz/echocore/internal/loopengine"
	"github.com/schollz/echocore/internal/syncengine"
)

func newTrack() *Track {
	pool := layer.NewPool(2)
	return New(0, 4, 2, 0, 0, pool)
}

func TestRecordPlayRoundTrip(t *testing.T) {
	tr := newTrack()
	tr.Invoke(nil, event.TypeRecord, event.QuantizeOff, true)

	in := make([]float32, 128*2)
	for i := range in {
		in[i] = 0.5
	}
	out := make([]float32, 128*2)
	tr.ProcessBlock(128, in, out)

	require.Equal(t, loopengine.Record, tr.ActiveLoop().Mode())
	require.Equal(t, 128, tr.ActiveLoop().Frame())

	tr.Invoke(nil, event.TypeRecordStop, event.QuantizeOff, true)
	out2 := make([]float32, 1*2)
	tr.ProcessBlock(1, in[:2], out2)

	require.Equal(t, loopengine.Play, tr.ActiveLoop().Mode())
	require.Equal(t, 128, tr.ActiveLoop().Frames())
}

func TestMuteSuppressesOutput(t *testing.T) {
	tr := newTrack()
	tr.Invoke(nil, event.TypeRecord, event.QuantizeOff, true)

	in := make([]float32, 64*2)
	for i := range in {
		in[i] = 1
	}
	tr.ProcessBlock(64, in, make([]float32, 64*2))
	tr.Invoke(nil, event.TypeRecordStop, event.QuantizeOff, true)
	tr.ProcessBlock(1, in[:2], make([]float32, 1*2))

	tr.ActiveLoop().SetMuted(true)
	out := make([]float32, 64*2)
	tr.ProcessBlock(64, make([]float32, 64*2), out)
	for _, v := range out {
		require.Equal(t, float32(0), v)
	}
}

func TestInjectSyncAddsSyncEvent(t *testing.T) {
	tr := newTrack()
	tr.InjectSync(nil)
	require.Equal(t, 0, tr.Scheduler.Len())

	tr.InjectSync([]syncengine.SyncEvent{{PulseFrame: 5}})
	require.Equal(t, 1, tr.Scheduler.Len())
	idx := tr.Scheduler.NextEvent(0, 128)
	require.Equal(t, event.TypeSync, tr.Scheduler.Event(idx).Type)
	require.Equal(t, 5, tr.Scheduler.Event(idx).Frame)
}

func TestSwitchDispatchChangesActiveLoop(t *testing.T) {
	tr := newTrack()
	idx := tr.InvokeImmediate(nil, event.TypeSwitch)
	e := tr.Scheduler.Event(idx)
	e.Payload = 2
	tr.ProcessBlock(1, make([]float32, 2), make([]float32, 2))
	require.Equal(t, 2, tr.ActiveIndex())
}

func TestSetActiveOutOfRangeErrors(t *testing.T) {
	tr := newTrack()
	require.Error(t, tr.SetActive(99))
}

// TestRescheduledEventSurvivesModeEnderDispatch exercises the real wiring
// between RunRescheduling and Track.replay: a function invoked at the same
// frame as a pending mode-ender (RecordStop) gets deferred behind it
// (Reschedule: true), and once the ender dispatches, the deferred event must
// be re-issued and eventually dispatched cleanly, leaving the scheduler's
// arena consistent rather than double-linking a freed slot back onto the
// active list.
func TestRescheduledEventSurvivesModeEnderDispatch(t *testing.T) {
	tr := newTrack()
	tr.Invoke(nil, event.TypeRecord, event.QuantizeOff, true)

	in := make([]float32, 128*2)
	out := make([]float32, 128*2)
	tr.ProcessBlock(128, in, out)
	require.Equal(t, loopengine.Record, tr.ActiveLoop().Mode())

	tr.Invoke(nil, event.TypeRecordStop, event.QuantizeOff, true)
	overdub := tr.Invoke(nil, event.TypeOverdub, event.QuantizeOff, true)
	require.True(t, tr.Scheduler.Event(overdub).Reschedule)

	tr.ProcessBlock(1, in[:2], out[:2])

	require.Equal(t, loopengine.Overdub, tr.ActiveLoop().Mode())
	require.Equal(t, 0, tr.Scheduler.Len())
}
