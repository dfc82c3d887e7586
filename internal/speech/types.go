package speech

import (
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
)

// State is the playback state of a Controller.
type State int

const (
	// StateIdle means nothing is loaded or playback was stopped.
	StateIdle State = iota
	// StatePlaying means an utterance is queued or speaking.
	StatePlaying
	// StatePaused means the synthesizer is paused mid-utterance.
	StatePaused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Utterance is a single unit of text handed to a Synthesizer.
type Utterance struct {
	ID      uint64
	Index   int
	Speaker string
	Text    string
	Profile voice.Profile
}

// Completion reports that an utterance finished. Err is set when rendering
// or playback failed; the controller still moves on.
type Completion struct {
	ID    uint64
	Index int
	Err   error
}

// Synthesizer renders utterances to audio. At most one utterance is active;
// Speak replaces whatever was queued before. Implementations deliver exactly
// one Completion per utterance that was not cancelled, and never from inside
// Speak itself. No method may block on playback.
type Synthesizer interface {
	// Available reports whether speech output is possible at all.
	Available() bool
	Speak(u Utterance)
	// Cancel flushes the active utterance without a completion.
	Cancel()
	Pause()
	Resume()
	// Paused reports whether an utterance is held mid-way.
	Paused() bool
	Completions() <-chan Completion
}

// Prefetcher is implemented by synthesizers that can render the following
// utterance while the current one plays. Prefetched utterances carry ID 0
// and never produce a Completion.
type Prefetcher interface {
	Prefetch(u Utterance)
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State    State
	Index    int
	Segments []transcript.Segment
}

// IsPlaying reports whether the snapshot was taken while playing.
func (s Snapshot) IsPlaying() bool {
	return s.State == StatePlaying
}

// Current returns the segment at Index, if any.
func (s Snapshot) Current() (transcript.Segment, bool) {
	if s.Index < 0 || s.Index >= len(s.Segments) {
		return transcript.Segment{}, false
	}
	return s.Segments[s.Index], true
}
