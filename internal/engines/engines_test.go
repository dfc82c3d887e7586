package engines

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeModel(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	model := filepath.Join(dir, "es_ES-test-medium.onnx")
	if err := os.WriteFile(model, []byte("fake model"), 0o644); err != nil {
		t.Fatal(err)
	}
	if config != "" {
		if err := os.WriteFile(model+".json", []byte(config), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return model
}

func TestNewPiper(t *testing.T) {
	if _, err := NewPiper(PiperConfig{}); err == nil {
		t.Error("expected error for missing model path")
	}
	if _, err := NewPiper(PiperConfig{Model: "/non/existent/model.onnx"}); err == nil {
		t.Error("expected error for non-existent model")
	}

	p, err := NewPiper(PiperConfig{Model: writeModel(t, "")})
	if err != nil {
		t.Fatalf("NewPiper: %v", err)
	}
	if p.Format().SampleRate != 22050 {
		t.Errorf("default sample rate = %d", p.Format().SampleRate)
	}
	if v := p.Voices(); len(v) != 1 || v[0].Name != "es_ES-test-medium" {
		t.Errorf("unexpected voices %+v", v)
	}
}

func TestPiper_ModelConfig(t *testing.T) {
	model := writeModel(t, `{
		"audio": {"sample_rate": 16000},
		"language": {"code": "es_MX"},
		"dataset": "ald",
		"speaker_id_map": {"helena": 1, "pablo": 0}
	}`)

	p, err := NewPiper(PiperConfig{Model: model})
	if err != nil {
		t.Fatalf("NewPiper: %v", err)
	}
	if p.Format().SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", p.Format().SampleRate)
	}

	voices := p.Voices()
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %+v", voices)
	}
	if voices[0].ID != "0" || voices[0].Name != "ald pablo" || voices[0].Language != "es-MX" {
		t.Errorf("unexpected first voice %+v", voices[0])
	}
	if voices[1].ID != "1" {
		t.Errorf("voices not sorted by speaker id: %+v", voices)
	}
}

func TestPiper_Args(t *testing.T) {
	p, _ := NewPiper(PiperConfig{Model: writeModel(t, "")})

	args := strings.Join(p.args(Request{Text: "hola", Speed: 2, Voice: "3"}), " ")
	for _, want := range []string{"--output-raw", "--length-scale 0.50", "--speaker 3"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	args = strings.Join(p.args(Request{Text: "hola"}), " ")
	if !strings.Contains(args, "--length-scale 1.00") || strings.Contains(args, "--speaker") {
		t.Errorf("unexpected default args %q", args)
	}
}

func TestPiper_SynthesizeWithFakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "piper")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\ncat\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	p, err := NewPiper(PiperConfig{Binary: bin, Model: writeModel(t, "")})
	if err != nil {
		t.Fatalf("NewPiper: %v", err)
	}

	pcm, err := p.Synthesize(context.Background(), Request{Text: "hola!"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	// five bytes of "audio" are trimmed to whole frames
	if string(pcm) != "hola" {
		t.Errorf("got %q", pcm)
	}
}

func TestPiper_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "piper")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	p, _ := NewPiper(PiperConfig{Binary: bin, Model: writeModel(t, ""), Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := p.Synthesize(context.Background(), Request{Text: "hola"})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not stop the process promptly")
	}
}

func TestPiper_ValidateMissingBinary(t *testing.T) {
	p, _ := NewPiper(PiperConfig{Binary: "definitely-not-piper-xyz", Model: writeModel(t, "")})
	if err := p.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestCheckRequest(t *testing.T) {
	if err := checkRequest(Request{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if err := checkRequest(Request{Text: strings.Repeat("a", MaxTextSize+1)}); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}
	if err := checkRequest(Request{Text: "hola"}); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestAtempo(t *testing.T) {
	tests := map[float64]string{
		1:    "",
		0:    "",
		1.25: "atempo=1.250",
		3:    "atempo=2.0,atempo=1.500",
		0.25: "atempo=0.5,atempo=0.500",
	}
	for speed, want := range tests {
		if got := atempo(speed); got != want {
			t.Errorf("atempo(%v) = %q, want %q", speed, got, want)
		}
	}
}

func TestGTTS_Voices(t *testing.T) {
	g, err := NewGTTS(GTTSConfig{TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewGTTS: %v", err)
	}
	v := g.Voices()
	if len(v) != 1 || v[0].Name != "Google español" || v[0].ID != "es" {
		t.Errorf("unexpected voices %+v", v)
	}
	if g.Format().SampleRate != 44100 {
		t.Error("gTTS output must be 44100 Hz")
	}
}

func TestGTTS_Args(t *testing.T) {
	g, _ := NewGTTS(GTTSConfig{Language: "es", TLD: "com.mx", Slow: true, TempDir: t.TempDir()})
	args := strings.Join(g.gttsArgs("hola"), " ")
	if args != "hola -l es -t com.mx --slow -o -" {
		t.Errorf("unexpected args %q", args)
	}
}

func TestGTTS_RateLimitHonoursContext(t *testing.T) {
	g, _ := NewGTTS(GTTSConfig{RequestsPerMinute: 1, TempDir: t.TempDir()})
	// use up the single token
	g.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Synthesize(ctx, Request{Text: "hola"}); err == nil {
		t.Error("expected the cancelled context to abort the rate limit wait")
	}
}

func TestMock(t *testing.T) {
	m := NewMock()

	normal, err := m.Synthesize(context.Background(), Request{Text: strings.Repeat("palabra ", 30)})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	fast, _ := m.Synthesize(context.Background(), Request{Text: strings.Repeat("palabra ", 30), Speed: 2})

	if got := m.Format().Duration(normal); got != 12*time.Second {
		t.Errorf("30 words at 150 wpm = %v, want 12s", got)
	}
	if len(fast) >= len(normal) {
		t.Error("higher speed should produce shorter audio")
	}
	if len(m.Requests()) != 2 {
		t.Errorf("requests = %d", len(m.Requests()))
	}

	m.Err = errors.New("boom")
	if _, err := m.Synthesize(context.Background(), Request{Text: "hola"}); err == nil {
		t.Error("expected configured error")
	}
}

func TestNew(t *testing.T) {
	e, err := New(Config{Engine: "mock"})
	if err != nil || e.Name() != "mock" {
		t.Errorf("New(mock) = %v, %v", e, err)
	}
	if _, err := New(Config{Engine: "espeak"}); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
	if _, err := New(Config{Engine: "gtts", GTTS: GTTSConfig{TempDir: t.TempDir()}}); err != nil {
		t.Errorf("New(gtts): %v", err)
	}
}
