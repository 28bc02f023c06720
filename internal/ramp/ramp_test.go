package ramp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTableClampsRange(t *testing.T) {
	require.Equal(t, MinRange, NewTable(1).Len())
	require.Equal(t, MaxRange, NewTable(100000).Len())
	require.Equal(t, 256, NewTable(256).Len())
}

func TestTableEndpoints(t *testing.T) {
	tbl := NewTable(128)
	require.InDelta(t, 0.0, tbl.At(0), 1e-9)
	require.InDelta(t, 1.0, tbl.At(127), 1e-9)
}

func TestTableMonotonic(t *testing.T) {
	tbl := NewTable(128)
	for i := 1; i < tbl.Len(); i++ {
		require.GreaterOrEqual(t, tbl.At(i), tbl.At(i-1))
	}
}

func TestValueUpDown(t *testing.T) {
	tbl := NewTable(128)
	require.InDelta(t, tbl.At(0), tbl.Value(127, false), 1e-9)
	require.InDelta(t, tbl.At(127), tbl.Value(0, false), 1e-9)
}

func TestFadeLifecycle(t *testing.T) {
	var f Fade
	require.True(t, f.IsDisabled())

	f.Enable(10, true)
	require.True(t, f.IsEnabled())
	require.False(t, f.Inc(5, false))
	require.True(t, f.IsEnabled())

	require.True(t, f.Inc(10, false))
	require.True(t, f.IsActive())
	require.Equal(t, 1, f.Processed())

	require.True(t, f.Inc(11, false))
	require.Equal(t, 2, f.Processed())
}

func TestFadeActivateSkipsEnabled(t *testing.T) {
	var f Fade
	f.Activate(40, false)
	require.True(t, f.IsActive())
	require.Equal(t, 40, f.Processed())
	require.False(t, f.Up())
}

func TestFadeDisableResets(t *testing.T) {
	var f Fade
	f.Enable(0, true)
	f.Inc(0, false)
	f.Disable()
	require.True(t, f.IsDisabled())
	require.Equal(t, 0, f.Processed())
}
