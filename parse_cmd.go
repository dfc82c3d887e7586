package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/engines"
	"github.com/dgnsrekt/tribunal-tts/internal/source"
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	parseFormat   string
	parseSpeakers bool
)

var parseCmd = &cobra.Command{
	Use:     "parse [SOURCE]",
	Short:   "Print the segments of a transcript",
	Long:    paragraph(fmt.Sprintf("\n%s a transcript into speaker segments and show the voice each speaker gets.", keyword("Parse"))),
	Example: paragraph("tribunal parse debate.md\ntribunal parse debate.md --format yaml\ntribunal parse debate.md --speakers"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg, err := sourceArg(args)
		if err != nil {
			return err
		}
		src, err := source.Load(cmd.Context(), arg)
		if err != nil {
			return err //nolint:wrapcheck
		}

		var voices []voice.Voice
		if engine, err := engines.New(cfg.EngineConfig()); err != nil {
			log.Warn("No engine voices, profiles use the engine default", "err", err)
		} else {
			voices = engine.Voices()
		}
		assigner := voice.NewPersonaAssigner(voices, cfg.AssignerOptions()...)

		segments := transcript.Parse(src.Text)
		if parseSpeakers {
			return writeCast(cmd.OutOrStdout(), castRows(segments, assigner), parseFormat)
		}
		return writeRows(cmd.OutOrStdout(), parsedRows(segments, assigner), parseFormat)
	},
}

// parsedRow is a segment with the profile its speaker is assigned.
type parsedRow struct {
	Index   int     `json:"index" yaml:"index"`
	Speaker string  `json:"speaker" yaml:"speaker"`
	Content string  `json:"content" yaml:"content"`
	Voice   string  `json:"voice,omitempty" yaml:"voice,omitempty"`
	Persona string  `json:"persona,omitempty" yaml:"persona,omitempty"`
	Pitch   float64 `json:"pitch" yaml:"pitch"`
	Rate    float64 `json:"rate" yaml:"rate"`
	Silent  bool    `json:"silent,omitempty" yaml:"silent,omitempty"`
}

func parsedRows(segments []transcript.Segment, assigner voice.Assigner) []parsedRow {
	rows := make([]parsedRow, len(segments))
	for i, seg := range segments {
		p := assigner.Profile(seg.Speaker)
		rows[i] = parsedRow{
			Index:   i,
			Speaker: seg.Speaker,
			Content: seg.Content,
			Voice:   p.VoiceID(),
			Persona: p.Persona,
			Pitch:   p.Pitch,
			Rate:    p.Rate,
			Silent:  seg.Speakable() == "",
		}
	}
	return rows
}

// castRow is one distinct speaker and the profile it is assigned.
type castRow struct {
	Speaker  string  `json:"speaker" yaml:"speaker"`
	Voice    string  `json:"voice,omitempty" yaml:"voice,omitempty"`
	Persona  string  `json:"persona,omitempty" yaml:"persona,omitempty"`
	Pitch    float64 `json:"pitch" yaml:"pitch"`
	Rate     float64 `json:"rate" yaml:"rate"`
	Segments int     `json:"segments" yaml:"segments"`
}

func castRows(segments []transcript.Segment, assigner voice.Assigner) []castRow {
	counts := make(map[string]int)
	for _, seg := range segments {
		counts[seg.Speaker]++
	}

	speakers := transcript.Speakers(segments)
	rows := make([]castRow, len(speakers))
	for i, name := range speakers {
		p := assigner.Profile(name)
		rows[i] = castRow{
			Speaker:  name,
			Voice:    p.VoiceID(),
			Persona:  p.Persona,
			Pitch:    p.Pitch,
			Rate:     p.Rate,
			Segments: counts[name],
		}
	}
	return rows
}

func writeRows(w io.Writer, rows []parsedRow, format string) error {
	if format == "table" || format == "" {
		return writeTable(w, rows)
	}
	return encode(w, rows, format)
}

func writeCast(w io.Writer, rows []castRow, format string) error {
	if format == "table" || format == "" {
		return writeCastTable(w, rows)
	}
	return encode(w, rows, format)
}

func encode(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v) //nolint:wrapcheck
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("unable to encode yaml: %w", err)
		}
		return enc.Close() //nolint:wrapcheck
	default:
		return fmt.Errorf("unknown format %q (valid: table, json, yaml)", format)
	}
}

const contentWidth = 48

func writeTable(w io.Writer, rows []parsedRow) error {
	speakerWidth, voiceWidth := len("SPEAKER"), len("VOICE")
	for _, r := range rows {
		speakerWidth = max(speakerWidth, runewidth.StringWidth(r.Speaker))
		voiceWidth = max(voiceWidth, runewidth.StringWidth(voiceLabel(r)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%3s  %s  %s  %5s  %5s  %s\n", "#",
		runewidth.FillRight("SPEAKER", speakerWidth),
		runewidth.FillRight("VOICE", voiceWidth),
		"PITCH", "RATE", "TEXT")
	for _, r := range rows {
		text := strings.Join(strings.Fields(r.Content), " ")
		if r.Silent {
			text = "(silent)"
		}
		fmt.Fprintf(&b, "%3d  %s  %s  %5.2f  %5.2f  %s\n", r.Index,
			runewidth.FillRight(r.Speaker, speakerWidth),
			runewidth.FillRight(voiceLabel(r), voiceWidth),
			r.Pitch, r.Rate,
			runewidth.Truncate(text, contentWidth, "…"))
	}

	_, err := io.WriteString(w, b.String())
	return err //nolint:wrapcheck
}

func writeCastTable(w io.Writer, rows []castRow) error {
	speakerWidth, voiceWidth := len("SPEAKER"), len("VOICE")
	for _, r := range rows {
		speakerWidth = max(speakerWidth, runewidth.StringWidth(r.Speaker))
		voiceWidth = max(voiceWidth, runewidth.StringWidth(voiceID(r.Voice)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %5s  %5s  %8s  %s\n",
		runewidth.FillRight("SPEAKER", speakerWidth),
		runewidth.FillRight("VOICE", voiceWidth),
		"PITCH", "RATE", "SEGMENTS", "PERSONA")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s  %s  %5.2f  %5.2f  %8d  %s\n",
			runewidth.FillRight(r.Speaker, speakerWidth),
			runewidth.FillRight(voiceID(r.Voice), voiceWidth),
			r.Pitch, r.Rate, r.Segments, r.Persona)
	}

	_, err := io.WriteString(w, b.String())
	return err //nolint:wrapcheck
}

func voiceLabel(r parsedRow) string {
	return voiceID(r.Voice)
}

func voiceID(id string) string {
	if id == "" {
		return "default"
	}
	return id
}

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "table", "output format (table, json, yaml)")
	parseCmd.Flags().BoolVar(&parseSpeakers, "speakers", false, "list each speaker once with its voice")
}
