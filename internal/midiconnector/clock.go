//go:build !windows

package midiconnector

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// RawMessage is one MIDI byte sequence received from an input port, with the
// millisecond timestamp the driver reported it at.
type RawMessage struct {
	Data      []byte
	TimestampMS int32
}

// ClockListener streams raw MIDI bytes from an input port onto a channel,
// the "MIDI input thread" of spec §5: it never blocks the interrupt, it
// only ever pushes.
type ClockListener struct {
	in       drivers.In
	stop     func()
	Messages chan RawMessage
}

// ListenClock opens deviceName for input and starts streaming every message
// it receives (clock, start/stop/continue, and anything else) onto
// Messages. Callers drain Messages once per block and translate entries
// into engine.MidiEvent with a block-relative frame offset.
func ListenClock(deviceName string) (*ClockListener, error) {
	name, _, err := filterName(deviceName)
	if err != nil {
		return nil, err
	}
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, err
	}
	if err := in.Open(); err != nil {
		return nil, err
	}
	cl := &ClockListener{in: in, Messages: make(chan RawMessage, 1024)}
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		raw := append([]byte(nil), msg.Bytes()...)
		select {
		case cl.Messages <- RawMessage{Data: raw, TimestampMS: timestampms}:
		default:
			// queue full: drop rather than block the driver's callback.
		}
	})
	if err != nil {
		in.Close()
		return nil, err
	}
	cl.stop = stop
	return cl, nil
}

// Close stops listening and releases the input port.
func (c *ClockListener) Close() {
	if c.stop != nil {
		c.stop()
	}
	c.in.Close()
}

// SendClock/SendStart/SendStop/SendContinue emit the raw MIDI realtime
// bytes the engine's out-sync tracker drives (spec §6 "MIDI output"). d
// must already be open.
func (d *Device) SendClock() error    { return d.sendRealtime(0xF8) }
func (d *Device) SendStart() error    { return d.sendRealtime(0xFA) }
func (d *Device) SendStop() error     { return d.sendRealtime(0xFC) }
func (d *Device) SendContinue() error { return d.sendRealtime(0xFB) }

func (d *Device) sendRealtime(status byte) error {
	mutex.Lock()
	defer mutex.Unlock()
	out, ok := devicesOpen[d.name]
	if !ok {
		return nil
	}
	return out.Send([]byte{status})
}
