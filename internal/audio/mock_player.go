package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockCallbacks provides hooks for tests.
type MockCallbacks struct {
	OnPlay   func(pcm []byte)
	OnPause  func()
	OnResume func()
	OnStop   func()
}

// MockPlayer simulates playback without an audio device. Each buffer
// "plays" for its PCM duration scaled by the delay factor. In manual mode
// buffers only finish when Finish is called.
type MockPlayer struct {
	format      Format
	delayFactor float64
	manual      bool
	callbacks   MockCallbacks

	mu        sync.Mutex
	state     State
	gen       uint64
	onDone    func()
	timer     *time.Timer
	remaining time.Duration
	startedAt time.Time
	last      []byte

	playCount   atomic.Int64
	pauseCount  atomic.Int64
	resumeCount atomic.Int64
	stopCount   atomic.Int64
}

// NewMockPlayer returns a mock player that plays buffers in real time.
func NewMockPlayer(format Format) *MockPlayer {
	return &MockPlayer{format: format, delayFactor: 1}
}

// NewManualMockPlayer returns a mock player whose buffers only finish when
// Finish is called.
func NewManualMockPlayer(format Format) *MockPlayer {
	return &MockPlayer{format: format, delayFactor: 1, manual: true}
}

// SetDelayFactor speeds up (<1) or slows down (>1) simulated playback.
func (mp *MockPlayer) SetDelayFactor(f float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.delayFactor = f
}

// SetCallbacks installs test hooks.
func (mp *MockPlayer) SetCallbacks(cb MockCallbacks) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.callbacks = cb
}

func (mp *MockPlayer) Format() Format { return mp.format }

func (mp *MockPlayer) State() State {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

func (mp *MockPlayer) Play(pcm []byte, onDone func()) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	mp.mu.Lock()
	if mp.state == StateClosed {
		mp.mu.Unlock()
		return ErrPlayerClosed
	}
	mp.stopLocked()

	mp.gen++
	mp.onDone = onDone
	mp.last = pcm
	mp.state = StatePlaying
	mp.remaining = time.Duration(float64(mp.format.Duration(pcm)) * mp.delayFactor)
	mp.startTimerLocked()
	mp.playCount.Add(1)
	cb := mp.callbacks.OnPlay
	mp.mu.Unlock()

	if cb != nil {
		cb(pcm)
	}
	return nil
}

func (mp *MockPlayer) startTimerLocked() {
	mp.startedAt = time.Now()
	if mp.manual {
		return
	}
	gen := mp.gen
	mp.timer = time.AfterFunc(mp.remaining, func() { mp.complete(gen) })
}

// complete finishes the buffer of generation gen if it is still current.
func (mp *MockPlayer) complete(gen uint64) {
	mp.mu.Lock()
	if mp.gen != gen || mp.state != StatePlaying {
		mp.mu.Unlock()
		return
	}
	done := mp.onDone
	mp.onDone = nil
	mp.timer = nil
	mp.state = StateStopped
	mp.mu.Unlock()

	if done != nil {
		done()
	}
}

// Finish completes the current buffer as if it had played to the end.
func (mp *MockPlayer) Finish() {
	mp.mu.Lock()
	gen := mp.gen
	mp.mu.Unlock()
	mp.complete(gen)
}

func (mp *MockPlayer) Pause() error {
	mp.mu.Lock()
	if mp.state != StatePlaying {
		mp.mu.Unlock()
		return ErrNotPlaying
	}
	if mp.timer != nil {
		mp.timer.Stop()
		mp.timer = nil
	}
	mp.remaining -= time.Since(mp.startedAt)
	if mp.remaining < 0 {
		mp.remaining = 0
	}
	mp.state = StatePaused
	mp.pauseCount.Add(1)
	cb := mp.callbacks.OnPause
	mp.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (mp *MockPlayer) Resume() error {
	mp.mu.Lock()
	if mp.state != StatePaused {
		mp.mu.Unlock()
		return ErrNotPaused
	}
	mp.state = StatePlaying
	mp.startTimerLocked()
	mp.resumeCount.Add(1)
	cb := mp.callbacks.OnResume
	mp.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	stopped := mp.stopLocked()
	cb := mp.callbacks.OnStop
	mp.mu.Unlock()

	if stopped && cb != nil {
		cb()
	}
	return nil
}

func (mp *MockPlayer) stopLocked() bool {
	if mp.state != StatePlaying && mp.state != StatePaused {
		return false
	}
	if mp.timer != nil {
		mp.timer.Stop()
		mp.timer = nil
	}
	mp.gen++
	mp.onDone = nil
	mp.state = StateStopped
	mp.stopCount.Add(1)
	return true
}

func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.stopLocked()
	mp.state = StateClosed
	return nil
}

// LastPlayed returns the most recent buffer handed to Play.
func (mp *MockPlayer) LastPlayed() []byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.last
}

// Counts returns how often each operation succeeded.
func (mp *MockPlayer) Counts() (play, pause, resume, stop int64) {
	return mp.playCount.Load(), mp.pauseCount.Load(), mp.resumeCount.Load(), mp.stopCount.Load()
}

var _ AudioPlayer = (*MockPlayer)(nil)
