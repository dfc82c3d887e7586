package engines

import "fmt"

// Config selects and configures an engine.
type Config struct {
	Engine string
	Piper  PiperConfig
	GTTS   GTTSConfig
}

// Names lists the supported engines.
var Names = []string{"piper", "gtts", "mock"}

// New creates the engine named in config.
func New(config Config) (Engine, error) {
	switch config.Engine {
	case "piper":
		return NewPiper(config.Piper)
	case "gtts", "google":
		return NewGTTS(config.GTTS)
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: piper, gtts, mock)", ErrUnknownEngine, config.Engine)
	}
}
