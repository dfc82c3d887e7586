package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player errors.
var (
	ErrEmptyAudio   = errors.New("audio data is empty")
	ErrPlayerClosed = errors.New("player is closed")
	ErrNotPlaying   = errors.New("player is not playing")
	ErrNotPaused    = errors.New("player is not paused")
)

// State is the current state of a player.
type State int32

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AudioPlayer plays one PCM buffer at a time. onDone runs once when the
// buffer has been played to the end; it does not run after Stop or when a
// later Play replaces the buffer.
type AudioPlayer interface {
	Play(pcm []byte, onDone func()) error
	Pause() error
	Resume() error
	Stop() error
	State() State
	Format() Format
	Close() error
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BufferSize int // bytes
	Volume     float64

	// PollInterval is how often playback is checked for completion.
	PollInterval time.Duration
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:   44100,
		Channels:     1,
		BufferSize:   4096,
		Volume:       1.0,
		PollInterval: 20 * time.Millisecond,
	}
}

// Player is an AudioPlayer backed by an oto context.
type Player struct {
	context *oto.Context
	format  Format
	poll    time.Duration
	volume  float64

	mu     sync.Mutex
	player *oto.Player
	// the buffer must stay referenced while oto reads from it
	data  []byte
	gen   uint64
	state atomic.Int32
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPlayerConfig().PollInterval
	}

	p := &Player{
		context: ctx,
		format:  Format{SampleRate: config.SampleRate, Channels: config.Channels},
		poll:    config.PollInterval,
		volume:  config.Volume,
	}
	p.state.Store(int32(StateStopped))
	return p, nil
}

func validateConfig(config PlayerConfig) error {
	// oto only supports these sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if config.Volume < 0 || config.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", config.Volume)
	}
	return nil
}

// Format returns the PCM format the device was opened with.
func (p *Player) Format() Format {
	return p.format
}

// State returns the current player state.
func (p *Player) State() State {
	return State(p.state.Load())
}

// Play replaces any current buffer and starts playing pcm.
func (p *Player) Play(pcm []byte, onDone func()) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateClosed {
		return ErrPlayerClosed
	}
	p.stopLocked()

	data := make([]byte, len(pcm))
	copy(data, pcm)

	player := p.context.NewPlayer(bytes.NewReader(data))
	player.SetVolume(p.volume)

	p.gen++
	p.player = player
	p.data = data
	p.state.Store(int32(StatePlaying))
	player.Play()

	go p.watch(p.gen, player, onDone)
	return nil
}

// watch waits for player to drain and fires onDone unless the buffer was
// replaced or stopped in the meantime.
func (p *Player) watch(gen uint64, player *oto.Player, onDone func()) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		if p.State() == StatePaused || player.IsPlaying() {
			p.mu.Unlock()
			continue
		}

		p.stopLocked()
		p.mu.Unlock()

		if onDone != nil {
			onDone()
		}
		return
	}
}

// Pause pauses the current playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StatePlaying {
		return fmt.Errorf("cannot pause: %w", ErrNotPlaying)
	}
	p.player.Pause()
	p.state.Store(int32(StatePaused))
	return nil
}

// Resume resumes paused playback.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StatePaused {
		return fmt.Errorf("cannot resume: %w", ErrNotPaused)
	}
	p.player.Play()
	p.state.Store(int32(StatePlaying))
	return nil
}

// Stop stops playback and releases the buffer.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	if s := p.State(); s == StateStopped || s == StateClosed {
		return
	}

	if p.player != nil {
		p.player.Pause()
		_ = p.player.Close()
		p.player = nil
	}
	p.data = nil
	p.gen++
	p.state.Store(int32(StateStopped))
}

// Close stops playback. The oto context has no Close in v3 and lives until
// the process exits.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.state.Store(int32(StateClosed))
	return nil
}

var _ AudioPlayer = (*Player)(nil)
