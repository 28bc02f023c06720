// Command echocored is the process entry point: it wires an engine.Engine
// to a duplex PortAudio stream, an OSC control surface, and optional MIDI
// clock in/out, following the same parse-flags/open-devices/run-loop/
// cleanup-on-signal shape as the teacher's own main.go.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"

	"github.com/schollz/echocore/internal/config"
	"github.com/schollz/echocore/internal/controlsurface"
	"github.com/schollz/echocore/internal/engine"
	"github.com/schollz/echocore/internal/midiconnector"
	"github.com/schollz/echocore/internal/project"
)

func main() {
	flags := config.Parse()

	if flags.Debug != "" {
		f, err := os.OpenFile(flags.Debug, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("could not open debug log: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	e := engine.New(flags.NumTracks, flags.MaxLoops, flags.Channels, flags.SampleRate, 0, 0)
	if err := config.DefaultPreset(flags.NumTracks).Apply(e); err != nil {
		log.Printf("could not apply default preset: %v", err)
	}

	if flags.SelectProject {
		path, cancelled := project.RunProjectSelector()
		if cancelled {
			log.Fatal("project selection cancelled")
		}
		flags.SaveFile = path
	}

	if flags.SaveFile != "" {
		if st, err := project.Load(flags.SaveFile); err != nil {
			log.Printf("no saved project loaded from %s: %v", flags.SaveFile, err)
		} else {
			for i, ts := range st.Tracks {
				if i >= len(e.Tracks) {
					break
				}
				if err := project.ApplyTrack(e.Tracks[i], ts, 0); err != nil {
					log.Printf("could not restore track %d: %v", i, err)
				}
			}
			log.Printf("loaded project from %s", flags.SaveFile)
		}
	}

	surface := controlsurface.New(e.Tracks, flags.OSCAddress, flags.OSCPort)
	go func() {
		addr := fmt.Sprintf(":%d", flags.OSCPort+1)
		log.Printf("starting OSC control surface on %s", addr)
		if err := surface.ListenAndServe(addr); err != nil {
			log.Printf("OSC server stopped: %v", err)
		}
	}()

	var clockIn *midiconnector.ClockListener
	if flags.MidiInName != "" {
		var err error
		clockIn, err = midiconnector.ListenClock(flags.MidiInName)
		if err != nil {
			log.Printf("could not open MIDI input %q: %v", flags.MidiInName, err)
		} else {
			defer clockIn.Close()
		}
	}

	var clockOut *midiconnector.Device
	if flags.MidiOutName != "" {
		dev, err := midiconnector.New(flags.MidiOutName)
		if err != nil {
			log.Printf("could not find MIDI output %q: %v", flags.MidiOutName, err)
		} else if err := dev.Open(); err != nil {
			log.Printf("could not open MIDI output %q: %v", flags.MidiOutName, err)
		} else {
			clockOut = dev
		}
	}

	setupCleanupOnExit(e, flags, clockIn)

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("could not initialize portaudio: %v", err)
	}
	defer portaudio.Terminate()

	callback := func(in, out []float32) {
		frames := len(out) / flags.Channels
		midiIn := drainClock(clockIn)
		clocks := e.ProcessBlock(frames, in, out, engine.HostSync{}, midiIn)
		sendClockOut(clockOut, clocks)
	}

	stream, err := portaudio.OpenDefaultStream(flags.Channels, flags.Channels, float64(flags.SampleRate), flags.BlockSize, callback)
	if err != nil {
		log.Fatalf("could not open audio stream: %v", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Fatalf("could not start audio stream: %v", err)
	}
	defer stream.Stop()

	log.Printf("echocored running: %d track(s), %d Hz, block %d", flags.NumTracks, flags.SampleRate, flags.BlockSize)
	select {}
}

// drainClock non-blockingly collects every MIDI realtime byte queued since
// the last block and turns it into a block-relative engine.MidiEvent; the
// sub-block timestamp on each RawMessage isn't translated into a precise
// FrameOffset; clock/transport bytes are dispatched at block start, which
// is accurate enough for drift correction at typical block sizes.
func drainClock(cl *midiconnector.ClockListener) []engine.MidiEvent {
	if cl == nil {
		return nil
	}
	var events []engine.MidiEvent
	for {
		select {
		case raw := <-cl.Messages:
			if len(raw.Data) == 0 {
				continue
			}
			events = append(events, engine.MidiEvent{Status: raw.Data[0]})
		default:
			return events
		}
	}
}

func sendClockOut(dev *midiconnector.Device, outs []engine.MidiOut) {
	if dev == nil {
		return
	}
	for _, m := range outs {
		var err error
		switch m.Status {
		case 0xF8:
			err = dev.SendClock()
		case 0xFA:
			err = dev.SendStart()
		case 0xFB:
			err = dev.SendContinue()
		case 0xFC:
			err = dev.SendStop()
		}
		if err != nil {
			log.Printf("midi clock out: %v", err)
		}
	}
}

func setupCleanupOnExit(e *engine.Engine, flags config.Flags, clockIn *midiconnector.ClockListener) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-c
		if flags.SaveFile != "" {
			if err := project.Save(flags.SaveFile, flags.SampleRate, flags.Channels, e.Tracks); err != nil {
				log.Printf("could not save project to %s: %v", flags.SaveFile, err)
			} else {
				log.Printf("saved project to %s", flags.SaveFile)
			}
		}
		if clockIn != nil {
			clockIn.Close()
		}
		midiconnector.Close()
		os.Exit(0)
	}()
}
