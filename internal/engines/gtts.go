package engines

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/time/rate"
)

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Language code, e.g. "es".
	Language string
	// TLD selects the Google Translate host, which changes the accent.
	TLD  string
	Slow bool
	// RequestsPerMinute limits calls to Google, defaults to 50.
	RequestsPerMinute int
	TempDir           string
}

// GTTS synthesizes through gtts-cli and converts the MP3 with ffmpeg.
type GTTS struct {
	language string
	tld      string
	slow     bool
	tempDir  string
	limiter  *rate.Limiter
}

// NewGTTS creates a gTTS engine.
func NewGTTS(config GTTSConfig) (*GTTS, error) {
	if config.Language == "" {
		config.Language = voice.DefaultLanguage
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 50
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(config.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &GTTS{
		language: config.Language,
		tld:      config.TLD,
		slow:     config.Slow,
		tempDir:  config.TempDir,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}, nil
}

func (g *GTTS) Name() string { return "gtts" }

// Format is fixed by the ffmpeg conversion.
func (g *GTTS) Format() audio.Format {
	return audio.Format{SampleRate: 44100, Channels: 1}
}

// Voices returns the single Google voice for the configured language,
// named the way browsers name it ("Google español").
func (g *GTTS) Voices() []voice.Voice {
	tag := language.Make(g.language)
	name := display.Self.Name(tag)
	if name == "" {
		name = g.language
	}
	return []voice.Voice{{
		ID:       g.language,
		Name:     "Google " + strings.ToLower(name),
		Language: tag.String(),
	}}
}

// Synthesize renders text to MP3 and converts it to PCM. The voice field
// is ignored; gTTS has one voice per language.
func (g *GTTS) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3, err := run(ctx, 30*time.Second, "", "gtts-cli", g.gttsArgs(req.Text)...)
	if err != nil {
		return nil, fmt.Errorf("MP3 generation failed: %w", err)
	}

	pcm, err := g.toPCM(ctx, mp3, req.Speed)
	if err != nil {
		return nil, fmt.Errorf("MP3 to PCM conversion failed: %w", err)
	}
	return pcm, nil
}

func (g *GTTS) gttsArgs(text string) []string {
	args := []string{text, "-l", g.language}
	if g.tld != "" {
		args = append(args, "-t", g.tld)
	}
	if g.slow {
		args = append(args, "--slow")
	}
	return append(args, "-o", "-")
}

func (g *GTTS) toPCM(ctx context.Context, mp3 []byte, speed float64) ([]byte, error) {
	f, err := os.CreateTemp(g.tempDir, "gtts-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp MP3 file: %w", err)
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	_, err = f.Write(mp3)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write MP3 data: %w", err)
	}

	args := []string{"-i", f.Name(), "-f", "s16le", "-ar", "44100", "-ac", "1"}
	if filter := atempo(speed); filter != "" {
		args = append(args, "-filter:a", filter)
	}
	args = append(args, "-")

	return run(ctx, 15*time.Second, "", "ffmpeg", args...)
}

// atempo builds an ffmpeg filter chain for speed. A single atempo stage
// accepts 0.5 to 2.0, so larger factors are chained.
func atempo(speed float64) string {
	if speed <= 0 || speed == 1 {
		return ""
	}
	var stages []string
	for speed > 2 {
		stages = append(stages, "atempo=2.0")
		speed /= 2
	}
	for speed < 0.5 {
		stages = append(stages, "atempo=0.5")
		speed /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.3f", speed))
	return strings.Join(stages, ",")
}

// Validate checks both programs are installed.
func (g *GTTS) Validate() error {
	if err := lookPath("gtts-cli", "Install with: pip install gtts"); err != nil {
		return err
	}
	return lookPath("ffmpeg", "Install ffmpeg for audio conversion")
}

var _ Engine = (*GTTS)(nil)
