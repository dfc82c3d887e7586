package audio

import (
	"errors"
	"testing"
	"time"
)

// TestPlayerConfig tests the player configuration validation.
func TestPlayerConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    PlayerConfig
		expectErr bool
	}{
		{
			name:   "valid config 44100Hz",
			config: PlayerConfig{SampleRate: 44100, Channels: 1, BufferSize: 4096, Volume: 1},
		},
		{
			name:   "valid config 48000Hz",
			config: PlayerConfig{SampleRate: 48000, Channels: 2, BufferSize: 8192, Volume: 0.5},
		},
		{
			name:      "invalid sample rate",
			config:    PlayerConfig{SampleRate: 22050, Channels: 1, BufferSize: 4096, Volume: 1},
			expectErr: true,
		},
		{
			name:      "invalid channels",
			config:    PlayerConfig{SampleRate: 44100, Channels: 3, BufferSize: 4096, Volume: 1},
			expectErr: true,
		},
		{
			name:      "invalid buffer size",
			config:    PlayerConfig{SampleRate: 44100, Channels: 1, BufferSize: 0, Volume: 1},
			expectErr: true,
		},
		{
			name:      "invalid volume",
			config:    PlayerConfig{SampleRate: 44100, Channels: 1, BufferSize: 4096, Volume: 1.5},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config)
			if tt.expectErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

var testFormat = Format{SampleRate: 44100, Channels: 1}

func TestMockPlayer_PlaysToCompletion(t *testing.T) {
	mp := NewMockPlayer(testFormat)
	done := make(chan struct{})

	if err := mp.Play(testFormat.Silence(20*time.Millisecond), func() { close(done) }); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if mp.State() != StatePlaying {
		t.Errorf("expected playing, got %s", mp.State())
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onDone never ran")
	}
	if mp.State() != StateStopped {
		t.Errorf("expected stopped after completion, got %s", mp.State())
	}
}

func TestMockPlayer_StopSuppressesCompletion(t *testing.T) {
	mp := NewManualMockPlayer(testFormat)
	called := false

	_ = mp.Play(testFormat.Silence(time.Second), func() { called = true })
	if err := mp.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	mp.Finish()

	if called {
		t.Error("onDone ran after Stop")
	}
}

func TestMockPlayer_ReplaceSuppressesCompletion(t *testing.T) {
	mp := NewManualMockPlayer(testFormat)
	var first, second bool

	_ = mp.Play(testFormat.Silence(time.Second), func() { first = true })
	_ = mp.Play(testFormat.Silence(time.Second), func() { second = true })
	mp.Finish()

	if first {
		t.Error("replaced buffer reported completion")
	}
	if !second {
		t.Error("current buffer did not report completion")
	}
}

func TestMockPlayer_PauseResume(t *testing.T) {
	mp := NewManualMockPlayer(testFormat)
	_ = mp.Play(testFormat.Silence(time.Second), nil)

	if err := mp.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume while playing: got %v", err)
	}
	if err := mp.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if mp.State() != StatePaused {
		t.Errorf("expected paused, got %s", mp.State())
	}
	if err := mp.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Pause while paused: got %v", err)
	}

	// a paused buffer does not finish
	mp.Finish()
	if mp.State() != StatePaused {
		t.Error("Finish completed a paused buffer")
	}

	if err := mp.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	play, pause, resume, _ := mp.Counts()
	if play != 1 || pause != 1 || resume != 1 {
		t.Errorf("counts = %d/%d/%d", play, pause, resume)
	}
}

func TestMockPlayer_Closed(t *testing.T) {
	mp := NewManualMockPlayer(testFormat)
	_ = mp.Close()

	if err := mp.Play([]byte{0, 0}, nil); !errors.Is(err, ErrPlayerClosed) {
		t.Errorf("expected ErrPlayerClosed, got %v", err)
	}
	if err := NewMockPlayer(testFormat).Play(nil, nil); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestMockPlayer_Callbacks(t *testing.T) {
	mp := NewManualMockPlayer(testFormat)
	var events []string
	mp.SetCallbacks(MockCallbacks{
		OnPlay:   func([]byte) { events = append(events, "play") },
		OnPause:  func() { events = append(events, "pause") },
		OnResume: func() { events = append(events, "resume") },
		OnStop:   func() { events = append(events, "stop") },
	})

	_ = mp.Play([]byte{1, 0}, nil)
	_ = mp.Pause()
	_ = mp.Resume()
	_ = mp.Stop()
	_ = mp.Stop()

	want := []string{"play", "pause", "resume", "stop"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events = %v, want %v", events, want)
		}
	}
}
