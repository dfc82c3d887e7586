package speech

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/metrics"
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
)

// Controller plays transcript segments one at a time through a Synthesizer.
type Controller struct {
	synth    Synthesizer
	assigner voice.Assigner
	logger   *log.Logger

	mu       sync.Mutex
	state    State
	segments []transcript.Segment
	index    int
	active   uint64 // id of the queued utterance, 0 when none
	lastID   uint64

	onStateChange   func(isPlaying bool)
	onSegmentChange func(index int, seg transcript.Segment)

	// observer calls run outside mu, in the order they were queued
	pending  []func()
	notifyMu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for playback diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController creates an idle controller.
func NewController(synth Synthesizer, assigner voice.Assigner, opts ...Option) *Controller {
	c := &Controller{
		synth:    synth,
		assigner: assigner,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnStateChange registers the state observer, replacing any previous one.
// It is called with true when playback enters Playing and false otherwise.
func (c *Controller) OnStateChange(fn func(isPlaying bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// OnSegmentChange registers the segment observer, replacing any previous
// one. It is called every time a segment is handed to the synthesizer.
func (c *Controller) OnSegmentChange(fn func(index int, seg transcript.Segment)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSegmentChange = fn
}

// Submit replaces the loaded transcript and starts playing it from the
// first segment with speakable content. It does nothing when the
// synthesizer is unavailable.
func (c *Controller) Submit(text string) {
	if c.synth == nil || !c.synth.Available() {
		c.logger.Debug("speech synthesis unavailable, ignoring transcript")
		return
	}

	segments := transcript.Parse(text)
	metrics.TranscriptsSubmitted.Inc()

	c.mu.Lock()
	c.synth.Cancel()
	c.segments = segments
	c.index = 0
	c.active = 0

	first := c.nextSpeakable(-1)
	if first < 0 {
		c.logger.Debug("transcript has nothing to say", "segments", len(segments))
		c.setState(StateIdle)
		c.mu.Unlock()
		c.flush()
		return
	}

	c.logger.Debug("transcript submitted", "segments", len(segments), "first", first)
	metrics.SegmentsSkipped.Add(float64(first))
	c.speak(first)
	c.setState(StatePlaying)
	c.mu.Unlock()
	c.flush()
}

// Pause holds the current utterance. It only has an effect while playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.synth.Pause()
	c.setState(StatePaused)
	c.mu.Unlock()
	c.flush()
}

// Resume continues a paused utterance. If the synthesizer no longer holds
// one, the current segment is spoken again from the start.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	if c.synth.Paused() {
		c.synth.Resume()
	} else {
		c.logger.Debug("nothing paused, restarting segment", "index", c.index)
		c.speak(c.index)
	}
	c.setState(StatePlaying)
	c.mu.Unlock()
	c.flush()
}

// Next skips to the following segment with speakable content.
func (c *Controller) Next() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.jump(c.nextSpeakable(c.index))
	c.mu.Unlock()
	c.flush()
}

// Prev goes back to the preceding segment with speakable content.
func (c *Controller) Prev() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.jump(c.prevSpeakable(c.index))
	c.mu.Unlock()
	c.flush()
}

// Stop cancels synthesis and rewinds to the first segment.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.synth.Cancel()
	c.active = 0
	c.index = 0
	c.setState(StateIdle)
	c.mu.Unlock()
	c.flush()
}

// HandleCompletion advances playback when the active utterance finishes.
// Completions for utterances that were cancelled or replaced are ignored.
func (c *Controller) HandleCompletion(done Completion) {
	c.mu.Lock()
	if c.state != StatePlaying || done.ID != c.active || done.Index != c.index {
		c.mu.Unlock()
		metrics.StaleCompletions.Inc()
		c.logger.Debug("ignoring stale completion", "id", done.ID, "index", done.Index)
		return
	}

	if done.Err != nil {
		c.logger.Warn("utterance failed, moving on", "index", done.Index, "err", done.Err)
	}

	c.active = 0
	if next := c.nextSpeakable(c.index); next >= 0 {
		metrics.SegmentsSkipped.Add(float64(next - c.index - 1))
		c.speak(next)
	} else {
		c.logger.Debug("end of transcript", "segments", len(c.segments))
		c.index = 0
		c.setState(StateIdle)
	}
	c.mu.Unlock()
	c.flush()
}

// Run feeds synthesizer completions into the controller until ctx is done
// or the completion channel is closed.
func (c *Controller) Run(ctx context.Context) error {
	events := c.synth.Completions()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case done, ok := <-events:
			if !ok {
				return nil
			}
			c.HandleCompletion(done)
		}
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	segments := make([]transcript.Segment, len(c.segments))
	copy(segments, c.segments)
	return Snapshot{
		State:    c.state,
		Index:    c.index,
		Segments: segments,
	}
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// jump retargets playback. A negative target is a boundary and leaves
// everything untouched.
func (c *Controller) jump(target int) {
	if target < 0 {
		return
	}
	c.synth.Cancel()
	c.speak(target)
	c.setState(StatePlaying)
}

// speak queues the segment at i. Callers hold mu and guarantee the segment
// is speakable.
func (c *Controller) speak(i int) {
	seg := c.segments[i]
	c.lastID++
	c.active = c.lastID
	c.index = i

	u := c.utterance(i, c.active)

	c.logger.Debug("speaking segment", "index", i, "speaker", seg.Speaker, "profile", u.Profile)
	metrics.UtterancesQueued.Inc()
	c.synth.Speak(u)

	if p, ok := c.synth.(Prefetcher); ok {
		if next := c.nextSpeakable(i); next >= 0 {
			p.Prefetch(c.utterance(next, 0))
		}
	}

	if fn := c.onSegmentChange; fn != nil {
		c.pending = append(c.pending, func() { fn(i, seg) })
	}
}

func (c *Controller) utterance(i int, id uint64) Utterance {
	seg := c.segments[i]
	u := Utterance{
		ID:      id,
		Index:   i,
		Speaker: seg.Speaker,
		Text:    seg.Speakable(),
	}
	if c.assigner != nil {
		u.Profile = c.assigner.Profile(seg.Speaker)
	}
	return u
}

// nextSpeakable returns the first index after i whose content survives
// stripping, or -1.
func (c *Controller) nextSpeakable(i int) int {
	for j := i + 1; j < len(c.segments); j++ {
		if c.segments[j].Speakable() != "" {
			return j
		}
	}
	return -1
}

// prevSpeakable returns the last index before i whose content survives
// stripping, or -1.
func (c *Controller) prevSpeakable(i int) int {
	for j := i - 1; j >= 0; j-- {
		if c.segments[j].Speakable() != "" {
			return j
		}
	}
	return -1
}

// setState records a transition and queues the observer call. Staying in
// Idle is not a transition; re-entering Playing on a restart is.
func (c *Controller) setState(s State) {
	prev := c.state
	c.state = s
	if prev == StateIdle && s == StateIdle {
		return
	}

	metrics.StateTransitions.WithLabelValues(s.String()).Inc()
	c.logger.Debug("playback state", "from", prev, "to", s, "index", c.index)

	if fn := c.onStateChange; fn != nil {
		playing := s == StatePlaying
		c.pending = append(c.pending, func() { fn(playing) })
	}
}

// flush delivers queued observer calls. Observers may call back into the
// controller; their notifications are appended and delivered by the same
// loop.
func (c *Controller) flush() {
	for {
		if !c.notifyMu.TryLock() {
			return
		}

		c.mu.Lock()
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		c.notifyMu.Unlock()

		c.mu.Lock()
		empty := len(c.pending) == 0
		c.mu.Unlock()
		if empty {
			return
		}
	}
}
