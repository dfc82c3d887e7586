package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	fuchsia   = lipgloss.Color("#EE6FF8")
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#FFF7B3", Dark: "#3C3A1E"}).
			Bold(true)

	emptySegmentStyle = lipgloss.NewStyle().
				Foreground(gray).
				Italic(true)

	// speakers get a stable color from this palette by name
	speakerPalette = []lipgloss.Color{
		lipgloss.Color("#F25D94"),
		lipgloss.Color("#6EC1FF"),
		lipgloss.Color("#A3E36B"),
		lipgloss.Color("#FFB347"),
		lipgloss.Color("#C792EA"),
		lipgloss.Color("#4FD6BE"),
	}
)

func logoView() string {
	return logoStyle.Render(" Tribunal ")
}
