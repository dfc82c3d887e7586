// Package synth adapts an engine, a cache and an audio player into a
// speech.Synthesizer.
package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/cache"
	"github.com/dgnsrekt/tribunal-tts/internal/engines"
	"github.com/dgnsrekt/tribunal-tts/internal/metrics"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
)

// Store is the subset of the cache used for rendered audio.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

const (
	minSpeed = 0.25
	maxSpeed = 4.0
)

// AudioSynthesizer renders utterances with an engine and plays them. One
// utterance is active at a time; rendering runs in the background and a
// Completion is sent once the audio has played to the end.
type AudioSynthesizer struct {
	engine    engines.Engine
	player    audio.AudioPlayer
	store     Store
	logger    *log.Logger
	available bool

	events chan speech.Completion
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	current   uint64
	cancel    context.CancelFunc
	rendering bool
	paused    bool

	// rendered audio waiting for Resume after a pause during rendering
	pending   []byte
	pendingOf speech.Utterance
	onDone    func()

	prefetchCancel context.CancelFunc
	renders        sync.WaitGroup
}

// Option configures an AudioSynthesizer.
type Option func(*AudioSynthesizer)

// WithStore caches rendered audio.
func WithStore(store Store) Option {
	return func(s *AudioSynthesizer) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *AudioSynthesizer) {
		s.logger = l
	}
}

// New creates a synthesizer. The engine is validated once; when validation
// fails the synthesizer reports itself unavailable.
func New(engine engines.Engine, player audio.AudioPlayer, opts ...Option) *AudioSynthesizer {
	s := &AudioSynthesizer{
		engine: engine,
		player: player,
		logger: log.Default(),
		events: make(chan speech.Completion, 8),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := engine.Validate(); err != nil {
		s.logger.Warn("TTS engine unavailable", "engine", engine.Name(), "err", err)
	} else {
		s.available = true
	}
	return s
}

// Available reports whether the engine passed validation.
func (s *AudioSynthesizer) Available() bool {
	return s.available
}

// Completions delivers finished utterances.
func (s *AudioSynthesizer) Completions() <-chan speech.Completion {
	return s.events
}

// Speak cancels whatever is active and starts rendering u.
func (s *AudioSynthesizer) Speak(u speech.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	if s.isClosed() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.current = u.ID
	s.cancel = cancel
	s.rendering = true

	s.renders.Add(1)
	go s.render(ctx, u)
}

func (s *AudioSynthesizer) render(ctx context.Context, u speech.Utterance) {
	defer s.renders.Done()

	pcm, err := s.Render(ctx, u)
	if errors.Is(err, context.Canceled) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != u.ID {
		return
	}
	s.rendering = false
	if err != nil {
		metrics.SynthesisErrors.WithLabelValues(s.engine.Name()).Inc()
		go s.emit(speech.Completion{ID: u.ID, Index: u.Index, Err: err})
		return
	}

	done := func() { s.emit(speech.Completion{ID: u.ID, Index: u.Index}) }
	if s.paused {
		s.pending = pcm
		s.pendingOf = u
		s.onDone = done
		return
	}
	s.playLocked(u, pcm, done)
}

func (s *AudioSynthesizer) playLocked(u speech.Utterance, pcm []byte, done func()) {
	if err := s.player.Play(pcm, done); err != nil {
		metrics.SynthesisErrors.WithLabelValues(s.engine.Name()).Inc()
		go s.emit(speech.Completion{ID: u.ID, Index: u.Index, Err: fmt.Errorf("playback failed: %w", err)})
	}
}

// Render returns PCM for u in the player's format, from the cache when
// possible.
func (s *AudioSynthesizer) Render(ctx context.Context, u speech.Utterance) ([]byte, error) {
	pitch, rate := u.Profile.Pitch, u.Profile.Rate
	if pitch <= 0 {
		pitch = 1
	}
	if rate <= 0 {
		rate = 1
	}

	key := cache.Key{
		Engine: s.engine.Name(),
		Voice:  u.Profile.VoiceID(),
		Text:   u.Text,
		Pitch:  pitch,
		Rate:   rate,
	}.String()

	if s.store != nil {
		if pcm, ok := s.store.Get(key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return pcm, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// resampling by pitch also speeds playback up by pitch, so the engine
	// renders at rate/pitch
	speed := clampSpeed(rate / pitch)

	start := time.Now()
	raw, err := s.engine.Synthesize(ctx, engines.Request{
		Text:  u.Text,
		Voice: u.Profile.VoiceID(),
		Speed: speed,
	})
	if err != nil {
		return nil, err
	}
	metrics.SynthesisDuration.WithLabelValues(s.engine.Name()).Observe(time.Since(start).Seconds())

	pcm := audio.Convert(raw, s.engine.Format(), s.player.Format(), pitch)
	if s.store != nil {
		if err := s.store.Put(key, pcm); err != nil {
			s.logger.Debug("Could not cache audio", "err", err)
		}
	}

	s.logger.Debug("Rendered utterance", "index", u.Index, "speed", speed, "pitch", pitch, "bytes", len(pcm))
	return pcm, nil
}

// Prefetch renders u into the cache in the background. A newer prefetch
// replaces an older one still running.
func (s *AudioSynthesizer) Prefetch(u speech.Utterance) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return
	}
	if s.prefetchCancel != nil {
		s.prefetchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.prefetchCancel = cancel

	s.renders.Add(1)
	go func() {
		defer s.renders.Done()
		if _, err := s.Render(ctx, u); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("Prefetch failed", "index", u.Index, "err", err)
		}
	}()
}

// Cancel drops the active utterance without a completion.
func (s *AudioSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *AudioSynthesizer) resetLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.current = 0
	s.rendering = false
	s.paused = false
	s.pending = nil
	s.onDone = nil
	if err := s.player.Stop(); err != nil {
		s.logger.Debug("Player stop failed", "err", err)
	}
}

// Pause holds playback, or holds the audio back if it is still rendering.
// Audio that has already played to the end is not held.
func (s *AudioSynthesizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == 0 || s.paused {
		return
	}
	switch {
	case s.player.State() == audio.StatePlaying:
		if err := s.player.Pause(); err != nil {
			s.logger.Debug("Player pause failed", "err", err)
			return
		}
	case !s.rendering:
		return
	}
	s.paused = true
}

// Resume continues a held utterance.
func (s *AudioSynthesizer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false

	if s.pending != nil {
		pcm, u, done := s.pending, s.pendingOf, s.onDone
		s.pending, s.onDone = nil, nil
		s.playLocked(u, pcm, done)
		return
	}
	if s.player.State() == audio.StatePaused {
		if err := s.player.Resume(); err != nil {
			s.logger.Debug("Player resume failed", "err", err)
		}
	}
}

// Paused reports whether an utterance is being held.
func (s *AudioSynthesizer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *AudioSynthesizer) emit(c speech.Completion) {
	select {
	case s.events <- c:
	case <-s.closed:
	}
}

// Close cancels playback, waits for background renders and releases the
// player. Nothing is written to the store after Close returns.
func (s *AudioSynthesizer) Close() error {
	s.mu.Lock()
	s.resetLocked()
	if s.prefetchCancel != nil {
		s.prefetchCancel()
	}
	s.once.Do(func() { close(s.closed) })
	s.mu.Unlock()

	s.renders.Wait()
	return s.player.Close()
}

func (s *AudioSynthesizer) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func clampSpeed(v float64) float64 {
	if v < minSpeed {
		return minSpeed
	}
	if v > maxSpeed {
		return maxSpeed
	}
	return v
}

var (
	_ speech.Synthesizer = (*AudioSynthesizer)(nil)
	_ speech.Prefetcher  = (*AudioSynthesizer)(nil)
)
