package engines

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
)

// Mock produces silence sized like real speech. It needs no external
// programs, which makes it useful for tests and dry runs.
type Mock struct {
	// WordsPerMinute sets the simulated speaking pace.
	WordsPerMinute int
	// Err, when set, is returned by every call to Synthesize.
	Err error
	// Delay simulates rendering latency.
	Delay time.Duration

	mu       sync.Mutex
	requests []Request
}

// NewMock returns a mock engine speaking at 150 words per minute.
func NewMock() *Mock {
	return &Mock{WordsPerMinute: 150}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Format() audio.Format {
	return audio.Format{SampleRate: 22050, Channels: 1}
}

// Voices returns a small Spanish voice set with one voice per pool.
func (m *Mock) Voices() []voice.Voice {
	return []voice.Voice{
		{ID: "mock-jorge", Name: "Mock Jorge", Language: "es-ES"},
		{ID: "mock-helena", Name: "Mock Helena", Language: "es-ES"},
		{ID: "mock-paulina", Name: "Mock Paulina", Language: "es-MX"},
	}
}

func (m *Mock) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}
	wpm := m.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	words := len(strings.Fields(req.Text))
	d := time.Duration(float64(words) / float64(wpm) / speed * float64(time.Minute))
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return m.Format().Silence(d), nil
}

// Requests returns every request seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *Mock) Validate() error { return nil }

var _ Engine = (*Mock)(nil)
