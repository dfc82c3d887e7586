package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
	"github.com/muesli/reflow/truncate"
)

// StatusDisplay summarizes playback for the status bar.
type StatusDisplay struct {
	state   speech.State
	current int
	total   int
	speaker string
}

// NewStatusDisplay creates an idle status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{current: -1}
}

// Update copies the playback state from a snapshot.
func (s *StatusDisplay) Update(snap speech.Snapshot) {
	s.state = snap.State
	s.total = len(snap.Segments)
	s.current = -1
	s.speaker = ""
	if snap.State == speech.StateIdle {
		return
	}
	if seg, ok := snap.Current(); ok {
		s.current = snap.Index
		s.speaker = seg.Speaker
	}
}

// CompactStatus returns the icon, position and speaker.
func (s *StatusDisplay) CompactStatus(width int) string {
	icon, color := s.icon()
	status := lipgloss.NewStyle().Foreground(color).Render(icon)

	if s.current >= 0 && s.total > 0 {
		counter := lipgloss.NewStyle().Foreground(gray).Render(fmt.Sprintf(" %d/%d", s.current+1, s.total))
		status += counter
	}
	if s.speaker != "" && width > 0 {
		status += " " + truncate.StringWithTail(s.speaker, uint(width), ellipsis) //nolint:gosec
	}
	return status
}

// ProgressBar returns a bar of the given width filled up to the current
// segment.
func (s *StatusDisplay) ProgressBar(width int) string {
	if s.total <= 0 || width < 10 {
		return ""
	}

	filled := 0
	if s.current >= 0 {
		filled = (s.current + 1) * width / s.total
	}
	if filled > width {
		filled = width
	}

	_, color := s.icon()
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("#333333")).Render(strings.Repeat("░", width-filled))
}

func (s *StatusDisplay) icon() (string, lipgloss.Color) {
	switch s.state {
	case speech.StatePlaying:
		return "▶", lipgloss.Color("#00FF00")
	case speech.StatePaused:
		return "⏸", lipgloss.Color("#FFFF00")
	default:
		return "■", lipgloss.Color("#888888")
	}
}

// IsActive reports whether a transcript is playing or paused.
func (s *StatusDisplay) IsActive() bool {
	return s.state != speech.StateIdle
}

// Reset returns the display to idle.
func (s *StatusDisplay) Reset() {
	s.state = speech.StateIdle
	s.current = -1
	s.total = 0
	s.speaker = ""
}
