package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
	"github.com/muesli/reflow/truncate"
)

// renderSegments lays the transcript out one segment per line, marking and
// highlighting the current one.
func renderSegments(snap speech.Snapshot, width int) string {
	if len(snap.Segments) == 0 {
		return emptySegmentStyle.Render("  nothing loaded")
	}

	current := -1
	if snap.State != speech.StateIdle {
		current = snap.Index
	}

	lines := make([]string, len(snap.Segments))
	for i, seg := range snap.Segments {
		lines[i] = segmentLine(seg, i == current, snap.State, width)
	}
	return strings.Join(lines, "\n")
}

func segmentLine(seg transcript.Segment, current bool, state speech.State, width int) string {
	marker := "  "
	if current {
		marker = "▶ "
		if state == speech.StatePaused {
			marker = "⏸ "
		}
	}

	speaker := speakerStyle(seg.Speaker).Render(seg.Speaker)
	text := strings.Join(strings.Fields(seg.Speakable()), " ")
	if text == "" {
		text = emptySegmentStyle.Render("(silent)")
	}

	line := marker + speaker + ": " + text
	if width > 0 {
		line = truncate.StringWithTail(line, uint(width), ellipsis) //nolint:gosec
	}
	if current {
		line = highlightStyle.Render(line)
	}
	return line
}

func speakerStyle(speaker string) lipgloss.Style {
	c := speakerPalette[voice.NameHash(strings.ToLower(speaker))%len(speakerPalette)]
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}
