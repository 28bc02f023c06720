package syncengine

// Synchronizer owns the three trackers (host-beat input, MIDI clock input,
// and the internal clock driving output MIDI clock) and the master
// elections described in spec §4.8.
type Synchronizer struct {
	Host *Tracker
	Midi *Tracker
	Out  *Tracker

	trackSyncMaster int // track index, or -1
	outSyncMaster   int
}

func NewSynchronizer() *Synchronizer {
	return &Synchronizer{
		Host:            NewTracker(SourceHost),
		Midi:            NewTracker(SourceMidi),
		Out:             NewTracker(SourceOut),
		trackSyncMaster: -1,
		outSyncMaster:   -1,
	}
}

func (s *Synchronizer) Tracker(src Source) *Tracker {
	switch src {
	case SourceHost:
		return s.Host
	case SourceMidi:
		return s.Midi
	case SourceOut:
		return s.Out
	}
	return nil
}

// AdvanceAll advances every tracker by one block's worth of frames before
// any track's event loop runs, so every slave observes the identical pulse
// schedule (spec §5 ordering guarantee).
func (s *Synchronizer) AdvanceAll(frames int) map[Source][]SyncEvent {
	return map[Source][]SyncEvent{
		SourceHost: s.Host.Advance(frames),
		SourceMidi: s.Midi.Advance(frames),
		SourceOut:  s.Out.Advance(frames),
	}
}

func (s *Synchronizer) TrackSyncMaster() int { return s.trackSyncMaster }
func (s *Synchronizer) OutSyncMaster() int   { return s.outSyncMaster }

func (s *Synchronizer) SetTrackSyncMaster(track int) { s.trackSyncMaster = track }
func (s *Synchronizer) SetOutSyncMaster(track int)   { s.outSyncMaster = track }

// ElectSuccessor scans candidate tracks (in order) for a successor
// when the current master resets; the first candidate reporting hasLoop
// true is elected. Returns -1 if none qualify.
func ElectSuccessor(candidates []int, hasLoop func(track int) bool) int {
	for _, c := range candidates {
		if hasLoop(c) {
			return c
		}
	}
	return -1
}

// ReleaseTrackSyncMasterIfSelf clears the track-sync master when the
// resetting track is the current master, so the engine can elect a
// successor.
func (s *Synchronizer) ReleaseTrackSyncMasterIfSelf(track int) {
	if s.trackSyncMaster == track {
		s.trackSyncMaster = -1
	}
	if s.outSyncMaster == track {
		s.outSyncMaster = -1
	}
}
