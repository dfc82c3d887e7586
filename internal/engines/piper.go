package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/audio"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
)

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	Binary string
	// Model is the .onnx voice model.
	Model string
	// ModelConfig defaults to the model path with ".json" appended.
	ModelConfig string
	Timeout     time.Duration
}

// Piper synthesizes offline with a Piper voice model. A fresh process runs
// per request with stdin filled in before start.
type Piper struct {
	binary      string
	model       string
	modelConfig string
	timeout     time.Duration

	format audio.Format
	voices []voice.Voice
}

// piperModelConfig is the subset of a model's JSON config we read.
type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Dataset      string         `json:"dataset"`
	SpeakerIDMap map[string]int `json:"speaker_id_map"`
}

// NewPiper creates a Piper engine. The model must exist.
func NewPiper(config PiperConfig) (*Piper, error) {
	if config.Model == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(config.Model); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if config.Binary == "" {
		config.Binary = "piper"
	}
	if config.ModelConfig == "" {
		config.ModelConfig = config.Model + ".json"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	p := &Piper{
		binary:      config.Binary,
		model:       config.Model,
		modelConfig: config.ModelConfig,
		timeout:     config.Timeout,
		format:      audio.Format{SampleRate: 22050, Channels: 1},
	}

	mc, err := readPiperModelConfig(config.ModelConfig)
	if err != nil {
		log.Warn("Could not read piper model config, using defaults", "path", config.ModelConfig, "err", err)
	}
	p.applyModelConfig(mc)

	return p, nil
}

func readPiperModelConfig(path string) (piperModelConfig, error) {
	var mc piperModelConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return mc, err
	}
	if err := json.Unmarshal(b, &mc); err != nil {
		return mc, fmt.Errorf("invalid model config: %w", err)
	}
	return mc, nil
}

func (p *Piper) applyModelConfig(mc piperModelConfig) {
	if mc.Audio.SampleRate > 0 {
		p.format.SampleRate = mc.Audio.SampleRate
	}

	lang := strings.ReplaceAll(mc.Language.Code, "_", "-")
	name := mc.Dataset
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(p.model), filepath.Ext(p.model))
	}

	if len(mc.SpeakerIDMap) == 0 {
		p.voices = []voice.Voice{{Name: name, Language: lang}}
		return
	}

	for speaker, id := range mc.SpeakerIDMap {
		p.voices = append(p.voices, voice.Voice{
			ID:       strconv.Itoa(id),
			Name:     fmt.Sprintf("%s %s", name, speaker),
			Language: lang,
		})
	}
	sort.Slice(p.voices, func(i, j int) bool {
		a, _ := strconv.Atoi(p.voices[i].ID)
		b, _ := strconv.Atoi(p.voices[j].ID)
		return a < b
	})
}

func (p *Piper) Name() string { return "piper" }

func (p *Piper) Format() audio.Format { return p.format }

func (p *Piper) Voices() []voice.Voice { return p.voices }

// args builds the command line for a request.
func (p *Piper) args(req Request) []string {
	speed := req.Speed
	if speed <= 0 {
		speed = 1
	}
	args := []string{
		"--model", p.model,
		"--config", p.modelConfig,
		"--output-raw",
		// length scale is the inverse of speed
		"--length-scale", fmt.Sprintf("%.2f", 1/speed),
	}
	if req.Voice != "" {
		args = append(args, "--speaker", req.Voice)
	}
	return args
}

// Synthesize runs piper and returns raw PCM.
func (p *Piper) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	pcm, err := run(ctx, p.timeout, req.Text, p.binary, p.args(req)...)
	if err != nil {
		return nil, err
	}
	if err := p.format.Validate(pcm); err != nil {
		// drop a trailing odd byte
		pcm = pcm[:len(pcm)-len(pcm)%p.format.BytesPerFrame()]
	}
	return pcm, nil
}

// Validate checks the binary and model are present.
func (p *Piper) Validate() error {
	if err := lookPath(p.binary, "Install piper from https://github.com/rhasspy/piper"); err != nil {
		return err
	}
	if _, err := os.Stat(p.model); err != nil {
		return fmt.Errorf("model file not accessible: %w", err)
	}
	return nil
}

var _ Engine = (*Piper)(nil)
