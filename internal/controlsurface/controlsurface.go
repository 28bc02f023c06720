// Package controlsurface implements the OSC-based external binding layer
// of spec §6 "Function invocation (control surface contract)": it decodes
// incoming OSC messages into scheduled function invocations on a track,
// and forwards engine state back out over OSC, mirroring the send side of
// the teacher's model.SendOSCPlaybackMessage family.
package controlsurface

import (
	"fmt"
	"log"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/echocore/internal/event"
	"github.com/schollz/echocore/internal/track"
)

// Binding maps one OSC address onto a scheduled function invocation.
type Binding struct {
	Address    string
	Function   event.Type
	Quantize   event.QuantizeMode
	AllowStack bool
}

// DefaultBindings is the stock address table a freshly built Surface
// listens on, one per function a control surface can trigger.
var DefaultBindings = []Binding{
	{"/record", event.TypeRecord, event.QuantizeOff, true},
	{"/overdub", event.TypeOverdub, event.QuantizeOff, true},
	{"/multiply", event.TypeMultiply, event.QuantizeCycle, true},
	{"/insert", event.TypeInsert, event.QuantizeCycle, true},
	{"/replace", event.TypeReplace, event.QuantizeOff, true},
	{"/substitute", event.TypeSubstitute, event.QuantizeOff, true},
	{"/mute", event.TypeMute, event.QuantizeOff, true},
	{"/reverse", event.TypeReversePlay, event.QuantizeOff, true},
	{"/speed", event.TypeSpeed, event.QuantizeOff, true},
	{"/rate", event.TypeRate, event.QuantizeOff, true},
	{"/switch", event.TypeSwitch, event.QuantizeLoop, false},
	{"/startpoint", event.TypeStartPoint, event.QuantizeLoop, true},
	{"/realign", event.TypeRealign, event.QuantizeLoop, true},
}

// Surface binds a set of tracks to an OSC input port for function
// invocation and an OSC output port for state forwarding.
type Surface struct {
	Tracks []*track.Track

	client     *osc.Client
	dispatcher *osc.StandardDispatcher
	server     *osc.Server
}

// New builds a Surface over tracks, sending state updates to
// outHost:outPort and ready to listen for invocations once bound via
// Bind/ListenAndServe.
func New(tracks []*track.Track, outHost string, outPort int) *Surface {
	s := &Surface{
		Tracks:     tracks,
		client:     osc.NewClient(outHost, outPort),
		dispatcher: osc.NewStandardDispatcher(),
	}
	for _, b := range DefaultBindings {
		s.Bind(b)
	}
	s.dispatcher.AddMsgHandler("/undo", s.handleUndo)
	return s
}

// Bind registers an additional (or overriding) address handler. Call
// before ListenAndServe; the dispatcher isn't safe to mutate once serving.
func (s *Surface) Bind(b Binding) {
	binding := b
	s.dispatcher.AddMsgHandler(binding.Address, func(msg *osc.Message) {
		s.invoke(binding, msg)
	})
}

// trackFor resolves the target track from the message's first int32
// argument, defaulting to track 0 when the message carries none.
func (s *Surface) trackFor(msg *osc.Message) (*track.Track, bool) {
	idx := 0
	if len(msg.Arguments) > 0 {
		v, ok := msg.Arguments[0].(int32)
		if !ok {
			return nil, false
		}
		idx = int(v)
	}
	if idx < 0 || idx >= len(s.Tracks) {
		return nil, false
	}
	return s.Tracks[idx], true
}

func (s *Surface) invoke(b Binding, msg *osc.Message) {
	tr, ok := s.trackFor(msg)
	if !ok {
		log.Printf("controlsurface: %s: no matching track", msg.Address)
		return
	}
	action := &event.Action{Function: b.Function.String(), Trigger: "osc"}
	tr.Invoke(action, b.Function, b.Quantize, b.AllowStack)
}

func (s *Surface) handleUndo(msg *osc.Message) {
	tr, ok := s.trackFor(msg)
	if !ok {
		return
	}
	tr.Undo()
}

// ListenAndServe opens the OSC input port and blocks handling messages.
// Run it from its own goroutine; it never touches the audio thread
// directly, only a track's scheduler through the per-track mutex Invoke
// already takes.
func (s *Surface) ListenAndServe(addr string) error {
	s.server = &osc.Server{Addr: addr, Dispatcher: s.dispatcher}
	return s.server.ListenAndServe()
}

// SendTrackState pushes one track's mode/frame/cycle snapshot out over
// OSC, the same "push current state after every change" idiom the
// teacher's SendOSCPlaybackMessage family uses for its UI.
func (s *Surface) SendTrackState(trackIndex int) error {
	if trackIndex < 0 || trackIndex >= len(s.Tracks) {
		return fmt.Errorf("controlsurface: track %d out of range", trackIndex)
	}
	tr := s.Tracks[trackIndex]
	loop := tr.ActiveLoop()

	msg := osc.NewMessage("/echocore/state")
	msg.Append(int32(trackIndex))
	msg.Append(loop.Mode().String())
	msg.Append(int32(loop.Frame()))
	msg.Append(int32(loop.Cycles()))
	msg.Append(loop.Muted())
	msg.Append(loop.Reverse())
	return s.client.Send(msg)
}
