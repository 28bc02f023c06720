package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/echocore/internal/engine"
)

func TestModelViewRendersOneRowPerTrack(t *testing.T) {
	e := engine.New(3, 4, 2, 44100, 0, 0)
	m := NewModel(e)

	view := m.View()
	assert.NotEmpty(t, view)
	for i := 0; i < 3; i++ {
		assert.Contains(t, view, fmt.Sprintf("track %d", i))
	}
	assert.Contains(t, view, "echocore monitor")
	assert.Contains(t, view, "track-sync master")
}

func TestRenderTrackRowShowsModeAndFrame(t *testing.T) {
	e := engine.New(1, 4, 2, 44100, 0, 0)
	row := renderTrackRow(e.Tracks[0])

	assert.Contains(t, row, "track 0")
	assert.Contains(t, row, "0/")
	assert.Contains(t, row, "cyc")
}

func TestModeColorBlendsTowardHotAtFullFraction(t *testing.T) {
	idle := modeColor(0)
	hot := modeColor(1)
	assert.NotEqual(t, idle, hot)
	assert.True(t, strings.HasPrefix(idle, "#"))
	assert.True(t, strings.HasPrefix(hot, "#"))
}
