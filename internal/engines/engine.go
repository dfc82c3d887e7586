package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
)

// Engine errors.
var (
	ErrUnknownEngine = errors.New("unknown TTS engine")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrTextTooLong   = errors.New("text too long")
)

// MaxTextSize bounds a single synthesis request, in bytes.
const MaxTextSize = 5000

// Request is one synthesis job. Voice is an engine specific voice ID, empty
// for the engine default. Speed scales tempo, 1.0 is normal.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Engine renders text to PCM in the engine's Format.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]byte, error)
	Format() audio.Format
	Voices() []voice.Voice
	// Validate checks that the engine's programs and files are usable.
	Validate() error
}

func checkRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	if len(req.Text) > MaxTextSize {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, len(req.Text), MaxTextSize)
	}
	return nil
}

// run executes a program with stdin pre-filled and returns its stdout. On
// timeout the process gets an interrupt and is killed shortly after.
func run(ctx context.Context, timeout time.Duration, stdin string, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", name, timeout, ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output, stderr: %s", name, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// lookPath reports a missing program with an install hint.
func lookPath(name, hint string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w\n\n%s", name, err, hint)
	}
	return nil
}
