// Package config reads the playback configuration from viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/cache"
	"github.com/dgnsrekt/tribunal-tts/internal/engines"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// AppName names the config file, env prefix and app directories.
const AppName = "tribunal"

var ErrInvalid = errors.New("invalid configuration")

// Config is the typed form of the tts section.
type Config struct {
	Engine   string
	Language string

	Piper  engines.PiperConfig
	GTTS   engines.GTTSConfig
	Cache  CacheConfig
	Player PlayerConfig

	Personas    []voice.Persona
	FemaleNames []string
}

// CacheConfig sizes the synthesized-audio cache.
type CacheConfig struct {
	Disabled bool
	Dir      string
	// MemorySize and MaxSize are in megabytes.
	MemorySize       int
	MaxSize          int
	CompressionLevel int
	TTL              time.Duration
}

// PlayerConfig tunes audio output.
type PlayerConfig struct {
	Volume     float64
	BufferSize int
	SampleRate int
}

// SetDefaults registers the defaults for every key Load reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tts.engine", "piper")
	v.SetDefault("tts.language", voice.DefaultLanguage)

	v.SetDefault("tts.piper.binary", "piper")
	v.SetDefault("tts.piper.model", "")
	v.SetDefault("tts.piper.timeout", 30*time.Second)

	v.SetDefault("tts.gtts.language", voice.DefaultLanguage)
	v.SetDefault("tts.gtts.tld", "com")
	v.SetDefault("tts.gtts.slow", false)
	v.SetDefault("tts.gtts.requests_per_minute", 50)

	v.SetDefault("tts.cache.disabled", false)
	v.SetDefault("tts.cache.dir", "")
	v.SetDefault("tts.cache.memory_size", 64)
	v.SetDefault("tts.cache.max_size", 100)
	v.SetDefault("tts.cache.compression_level", 3)
	v.SetDefault("tts.cache.ttl", 7*24*time.Hour)

	def := audio.DefaultPlayerConfig()
	v.SetDefault("tts.player.volume", def.Volume)
	v.SetDefault("tts.player.buffer_size", def.BufferSize)
	v.SetDefault("tts.player.sample_rate", def.SampleRate)
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Engine:   strings.ToLower(v.GetString("tts.engine")),
		Language: v.GetString("tts.language"),
		Piper: engines.PiperConfig{
			Binary:      v.GetString("tts.piper.binary"),
			Model:       v.GetString("tts.piper.model"),
			ModelConfig: v.GetString("tts.piper.model_config"),
			Timeout:     v.GetDuration("tts.piper.timeout"),
		},
		GTTS: engines.GTTSConfig{
			Language:          v.GetString("tts.gtts.language"),
			TLD:               v.GetString("tts.gtts.tld"),
			Slow:              v.GetBool("tts.gtts.slow"),
			RequestsPerMinute: v.GetInt("tts.gtts.requests_per_minute"),
		},
		Cache: CacheConfig{
			Disabled:         v.GetBool("tts.cache.disabled"),
			Dir:              v.GetString("tts.cache.dir"),
			MemorySize:       v.GetInt("tts.cache.memory_size"),
			MaxSize:          v.GetInt("tts.cache.max_size"),
			CompressionLevel: v.GetInt("tts.cache.compression_level"),
			TTL:              v.GetDuration("tts.cache.ttl"),
		},
		Player: PlayerConfig{
			Volume:     v.GetFloat64("tts.player.volume"),
			BufferSize: v.GetInt("tts.player.buffer_size"),
			SampleRate: v.GetInt("tts.player.sample_rate"),
		},
		FemaleNames: v.GetStringSlice("tts.female_names"),
	}

	if v.IsSet("tts.personas") {
		if err := v.UnmarshalKey("tts.personas", &cfg.Personas); err != nil {
			return cfg, fmt.Errorf("%w: personas: %w", ErrInvalid, err)
		}
	}

	var err error
	if cfg.Piper.Model, err = expand(cfg.Piper.Model); err != nil {
		return cfg, err
	}
	if cfg.Piper.ModelConfig, err = expand(cfg.Piper.ModelConfig); err != nil {
		return cfg, err
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir, err = DefaultCacheDir()
	} else {
		cfg.Cache.Dir, err = expand(cfg.Cache.Dir)
	}
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if !knownEngine(c.Engine) {
		return fmt.Errorf("%w: engine %q (valid: %s)", ErrInvalid, c.Engine, strings.Join(engines.Names, ", "))
	}

	if c.Cache.MaxSize < 1 || c.Cache.MaxSize > 10000 {
		return fmt.Errorf("%w: cache max_size must be between 1 and 10000 MB, got %d", ErrInvalid, c.Cache.MaxSize)
	}
	if c.Cache.MemorySize < 1 {
		return fmt.Errorf("%w: cache memory_size must be positive, got %d", ErrInvalid, c.Cache.MemorySize)
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 4 {
		return fmt.Errorf("%w: cache compression_level must be between 0 and 4, got %d", ErrInvalid, c.Cache.CompressionLevel)
	}

	if l := len(c.GTTS.Language); l < 2 || l > 5 {
		return fmt.Errorf("%w: gtts language code must be 2-5 characters, got %q", ErrInvalid, c.GTTS.Language)
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return fmt.Errorf("%w: player volume must be between 0 and 1, got %.2f", ErrInvalid, c.Player.Volume)
	}

	if c.Engine == "piper" && c.Piper.Model != "" {
		if _, err := os.Stat(c.Piper.Model); os.IsNotExist(err) {
			return fmt.Errorf("%w: piper model file does not exist: %s", ErrInvalid, c.Piper.Model)
		}
	}

	for _, p := range c.Personas {
		if strings.TrimSpace(p.Match) == "" {
			return fmt.Errorf("%w: persona without match", ErrInvalid)
		}
		if p.Pitch < 0.25 || p.Pitch > 4 || p.Rate < 0.25 || p.Rate > 4 {
			return fmt.Errorf("%w: persona %q pitch and rate must be between 0.25 and 4", ErrInvalid, p.Match)
		}
	}
	return nil
}

// EngineConfig returns the engine factory configuration.
func (c Config) EngineConfig() engines.Config {
	g := c.GTTS
	if g.TempDir == "" {
		g.TempDir = filepath.Join(c.Cache.Dir, "tmp")
	}
	return engines.Config{Engine: c.Engine, Piper: c.Piper, GTTS: g}
}

// CacheConfig returns the cache manager configuration.
func (c Config) CacheConfig() cache.Config {
	cc := cache.DefaultConfig(filepath.Join(c.Cache.Dir, "audio"))
	cc.MemoryCapacity = int64(c.Cache.MemorySize) << 20
	cc.DiskCapacity = int64(c.Cache.MaxSize) << 20
	cc.CompressionLevel = c.Cache.CompressionLevel
	cc.TTL = c.Cache.TTL
	return cc
}

// PlayerConfig returns the audio player configuration.
func (c Config) PlayerConfig() audio.PlayerConfig {
	pc := audio.DefaultPlayerConfig()
	pc.Volume = c.Player.Volume
	if c.Player.BufferSize > 0 {
		pc.BufferSize = c.Player.BufferSize
	}
	if c.Player.SampleRate > 0 {
		pc.SampleRate = c.Player.SampleRate
	}
	return pc
}

// AssignerOptions returns the voice assignment options.
func (c Config) AssignerOptions() []voice.Option {
	opts := []voice.Option{voice.WithLanguage(c.Language)}
	if len(c.Personas) > 0 {
		opts = append(opts, voice.WithPersonas(c.Personas))
	}
	if len(c.FemaleNames) > 0 {
		opts = append(opts, voice.WithFemaleNames(c.FemaleNames))
	}
	return opts
}

// DefaultCacheDir is the per-user cache directory.
func DefaultCacheDir() (string, error) {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return dir, nil
}

func knownEngine(name string) bool {
	if name == "google" {
		return true
	}
	for _, n := range engines.Names {
		if name == n {
			return true
		}
	}
	return false
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("unable to expand %q: %w", path, err)
	}
	return p, nil
}
