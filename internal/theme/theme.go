package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue  = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorRed   = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray  = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
)

// HeaderStyle is used for the title line above a result.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// LabelStyle aligns the field names of a result.
var LabelStyle = lipgloss.NewStyle().
	Bold(true).
	Width(8)

// CodeStyle makes a found code stand out.
var CodeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// LinkStyle renders a found link.
var LinkStyle = lipgloss.NewStyle().
	Underline(true).
	Foreground(ColorBlue)

// DimmedStyle is for placeholders and "nothing found" notes.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Faint(true)

// ErrorStyle is for check failures printed next to a result.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)
