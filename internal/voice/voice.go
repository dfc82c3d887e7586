// Package voice maps speaker labels to synthetic voice profiles.
package voice

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Voice is a synthetic voice offered by an engine.
type Voice struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Language string `json:"language" yaml:"language"`
}

// Profile describes how a speaker should sound. A nil Voice means the
// engine's default voice; Pitch and Rate still apply.
type Profile struct {
	Voice   *Voice  `json:"voice,omitempty" yaml:"voice,omitempty"`
	Pitch   float64 `json:"pitch" yaml:"pitch"`
	Rate    float64 `json:"rate" yaml:"rate"`
	Persona string  `json:"persona,omitempty" yaml:"persona,omitempty"`
	Female  bool    `json:"female" yaml:"female"`
}

// VoiceID returns the voice identifier or an empty string for the default.
func (p Profile) VoiceID() string {
	if p.Voice == nil {
		return ""
	}
	return p.Voice.ID
}

func (p Profile) String() string {
	v := "default"
	if p.Voice != nil {
		v = p.Voice.Name
	}
	return fmt.Sprintf("%s pitch=%.2f rate=%.2f", v, p.Pitch, p.Rate)
}

// Assigner maps a speaker label to a profile. Implementations must return
// the same profile for the same label for the lifetime of the assigner.
type Assigner interface {
	Profile(speaker string) Profile
}

// Persona is a recurring speaker with a fixed characterization. A speaker
// matches when its label contains Match, ignoring case.
type Persona struct {
	Match  string  `mapstructure:"match" yaml:"match"`
	Female bool    `mapstructure:"female" yaml:"female"`
	Pitch  float64 `mapstructure:"pitch" yaml:"pitch"`
	Rate   float64 `mapstructure:"rate" yaml:"rate"`
}

// DefaultPersonas are the tribunal members.
var DefaultPersonas = []Persona{
	{Match: "castillo", Pitch: 0.6, Rate: 1.05},
	{Match: "varela", Pitch: 0.9, Rate: 1.15},
	{Match: "rossi", Female: true, Pitch: 1.2, Rate: 1.2},
}

// FemaleNames are substrings of voice names that are typically female.
var FemaleNames = []string{
	"helena", "laura", "sabina", "monica", "paulina", "lucia", "google español", "zira",
}

const (
	// DefaultLanguage is the language prefix voices are filtered by.
	DefaultLanguage = "es"

	// UnknownRate is the speaking rate for speakers without a persona.
	UnknownRate = 1.1
)

var fold = cases.Fold()

// PersonaAssigner assigns profiles from a persona table, falling back to a
// name hash for unknown speakers.
type PersonaAssigner struct {
	personas    []Persona
	femaleNames []string
	language    string

	male   []Voice
	female []Voice

	mu       sync.Mutex
	profiles map[string]Profile
}

// Option configures a PersonaAssigner.
type Option func(*PersonaAssigner)

// WithLanguage restricts candidate voices to a language prefix.
func WithLanguage(lang string) Option {
	return func(a *PersonaAssigner) {
		a.language = lang
	}
}

// WithPersonas replaces the persona table.
func WithPersonas(personas []Persona) Option {
	return func(a *PersonaAssigner) {
		a.personas = personas
	}
}

// WithFemaleNames replaces the female voice name list.
func WithFemaleNames(names []string) Option {
	return func(a *PersonaAssigner) {
		a.femaleNames = names
	}
}

// NewPersonaAssigner splits voices into male and female pools and returns
// an assigner over them.
func NewPersonaAssigner(voices []Voice, opts ...Option) *PersonaAssigner {
	a := &PersonaAssigner{
		personas:    DefaultPersonas,
		femaleNames: FemaleNames,
		language:    DefaultLanguage,
		profiles:    make(map[string]Profile),
	}
	for _, opt := range opts {
		opt(a)
	}

	lang := fold.String(a.language)
	for _, v := range voices {
		if !strings.HasPrefix(fold.String(v.Language), lang) {
			continue
		}
		if a.isFemale(v.Name) {
			a.female = append(a.female, v)
		} else {
			a.male = append(a.male, v)
		}
	}

	return a
}

// Pools returns the male and female candidate voices.
func (a *PersonaAssigner) Pools() (male, female []Voice) {
	return a.male, a.female
}

// Profile returns the profile for a speaker. Results are memoized.
func (a *PersonaAssigner) Profile(speaker string) Profile {
	key := fold.String(strings.TrimSpace(speaker))

	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.profiles[key]; ok {
		return p
	}

	p := a.resolve(key)
	a.profiles[key] = p
	return p
}

func (a *PersonaAssigner) resolve(name string) Profile {
	for _, persona := range a.personas {
		if persona.Match == "" || !strings.Contains(name, fold.String(persona.Match)) {
			continue
		}
		return Profile{
			Voice:   a.pick(persona.Female, 0),
			Pitch:   persona.Pitch,
			Rate:    persona.Rate,
			Persona: persona.Match,
			Female:  persona.Female,
		}
	}

	h := NameHash(name)
	female := a.isFemale(name)
	return Profile{
		Voice:  a.pick(female, h),
		Pitch:  UnknownPitch(h),
		Rate:   UnknownRate,
		Female: female,
	}
}

// pick selects a voice from the requested pool, then from the other pool,
// and returns nil when neither has a voice in the target language.
func (a *PersonaAssigner) pick(female bool, h int) *Voice {
	pool, other := a.male, a.female
	if female {
		pool, other = a.female, a.male
	}
	if len(pool) == 0 {
		pool = other
	}
	if len(pool) == 0 {
		return nil
	}
	v := pool[h%len(pool)]
	return &v
}

func (a *PersonaAssigner) isFemale(name string) bool {
	name = fold.String(name)
	for _, f := range a.femaleNames {
		if strings.Contains(name, fold.String(f)) {
			return true
		}
	}
	return false
}

// NameHash is the additive code point sum of a name.
func NameHash(name string) int {
	h := 0
	for _, r := range name {
		h += int(r)
	}
	return h
}

// UnknownPitch maps a name hash into [0.8, 1.3] in steps of 0.1.
func UnknownPitch(h int) float64 {
	return float64(8+h%6) / 10
}

var _ Assigner = (*PersonaAssigner)(nil)
