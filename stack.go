package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/cache"
	"github.com/dgnsrekt/tribunal-tts/internal/config"
	"github.com/dgnsrekt/tribunal-tts/internal/engines"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
	"github.com/dgnsrekt/tribunal-tts/internal/synth"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
)

// stack is everything between a transcript and the speakers.
type stack struct {
	engine     engines.Engine
	store      *cache.Manager
	synth      *synth.AudioSynthesizer
	assigner   *voice.PersonaAssigner
	controller *speech.Controller
}

func newStack(cfg config.Config, mute bool) (*stack, error) {
	engine, err := engines.New(cfg.EngineConfig())
	if err != nil {
		return nil, fmt.Errorf("unable to create %s engine: %w", cfg.Engine, err)
	}

	pc := cfg.PlayerConfig()
	var player audio.AudioPlayer
	if mute {
		player = audio.NewMockPlayer(audio.Format{SampleRate: pc.SampleRate, Channels: pc.Channels})
	} else {
		player, err = audio.NewPlayer(pc)
		if err != nil {
			return nil, fmt.Errorf("unable to open audio device: %w", err)
		}
	}

	s := &stack{engine: engine}
	opts := []synth.Option{synth.WithLogger(log.Default())}
	if !cfg.Cache.Disabled {
		s.store, err = cache.NewManager(cfg.CacheConfig())
		if err != nil {
			log.Warn("Audio cache disabled", "err", err)
		} else {
			opts = append(opts, synth.WithStore(s.store))
		}
	}

	s.synth = synth.New(engine, player, opts...)
	s.assigner = voice.NewPersonaAssigner(engine.Voices(), cfg.AssignerOptions()...)
	s.controller = speech.NewController(s.synth, s.assigner, speech.WithLogger(log.Default()))

	male, female := s.assigner.Pools()
	log.Debug("Playback stack ready",
		"engine", engine.Name(),
		"available", s.synth.Available(),
		"male_voices", len(male),
		"female_voices", len(female),
		"cache", s.store != nil,
	)
	return s, nil
}

func (s *stack) Close() error {
	s.controller.Stop()
	errs := []error{s.synth.Close()}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
