// Command echomonitor is a read-only terminal dashboard over an engine's
// exported state: track modes, loop frame/cycle counters, and sync drift.
// It never calls into anything that mutates the engine; the engine's own
// control surfaces (OSC, MIDI) are the only write path.
package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"

	"github.com/schollz/echocore/internal/engine"
	"github.com/schollz/echocore/internal/track"
)

func main() {
	var numTracks, maxLoops, channels, sampleRate int
	flag.IntVar(&numTracks, "tracks", 2, "number of demo tracks to display")
	flag.IntVar(&maxLoops, "max-loops", 4, "loops per track")
	flag.IntVar(&channels, "channels", 2, "channel count")
	flag.IntVar(&sampleRate, "sample-rate", 44100, "sample rate in Hz")
	flag.Parse()

	e := engine.New(numTracks, maxLoops, channels, sampleRate, 0, 0)

	p := tea.NewProgram(NewModel(e))
	if _, err := p.Run(); err != nil {
		fmt.Println("error running echomonitor:", err)
	}
}

// tickMsg drives the dashboard's refresh rate; it never advances the
// engine itself, only redraws whatever state is already there.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the bubbletea model rendering one Engine's track table.
type Model struct {
	engine *engine.Engine
	width  int
	height int
}

// NewModel builds a dashboard over e.
func NewModel(e *engine.Engine) *Model {
	return &Model{engine: e}
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Padding(0, 0, 1, 0)

	var rows []string
	rows = append(rows, titleStyle.Render("echocore monitor"))
	for _, t := range m.engine.Tracks {
		rows = append(rows, renderTrackRow(t))
	}
	rows = append(rows, m.renderSyncRow())

	containerStyle := lipgloss.NewStyle().Padding(1, 2)
	return containerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// modeColor blends a dim gray (idle) toward a bright red (deep into the
// loop's cycle) the same way mixer.go blends colorful.Color values for its
// level bars, so the busiest loops read as visually "hot" at a glance.
func modeColor(loopFraction float64) string {
	idle, _ := colorful.Hex("#808080")
	hot, _ := colorful.Hex("#FF4040")
	return idle.BlendRgb(hot, loopFraction).Hex()
}

func renderTrackRow(t *track.Track) string {
	loop := t.ActiveLoop()
	frames := loop.Frames()
	fraction := 0.0
	if frames > 0 {
		fraction = float64(loop.Frame()) / float64(frames)
	}

	profile := termenv.ColorProfile()
	mode := termenv.String(loop.Mode().String()).Foreground(profile.Color(modeColor(fraction))).String()

	flags := ""
	if loop.Muted() {
		flags += "M"
	}
	if loop.Reverse() {
		flags += "R"
	}

	cells := []string{
		lipgloss.NewStyle().Width(10).Render(fmt.Sprintf("track %d", t.Number)),
		lipgloss.NewStyle().Width(20).Render(mode),
		lipgloss.NewStyle().Width(16).Render(fmt.Sprintf("%d/%d", loop.Frame(), frames)),
		lipgloss.NewStyle().Width(10).Render(fmt.Sprintf("cyc %d", loop.Cycles())),
		lipgloss.NewStyle().Render(flags),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) renderSyncRow() string {
	s := m.engine.Sync
	parts := []string{
		fmt.Sprintf("track-sync master: %d", s.TrackSyncMaster()),
		fmt.Sprintf("out-sync master: %d", s.OutSyncMaster()),
		fmt.Sprintf("midi locked: %v", s.Midi.Locked),
		fmt.Sprintf("host locked: %v", s.Host.Locked),
	}
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Padding(1, 0, 0, 0)
	return style.Render(strings.Join(parts, "  "))
}
