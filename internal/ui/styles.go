package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette: a cyan accent on grays, with red and yellow reserved
// for problems.
const (
	ColorAccent   = "44"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles are the lipgloss styles the import and status views draw with.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style

	// Frame boxes the live view; Summary boxes the final report.
	Frame   lipgloss.Style
	Summary lipgloss.Style
}

func fg(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }

// DefaultStyles is the colored theme.
func DefaultStyles() Styles {
	s := Styles{
		Header:    fg(ColorAccent).Bold(true),
		Success:   fg(ColorAccent),
		Warning:   fg(ColorYellow),
		Error:     fg(ColorRed),
		Dim:       fg(ColorDarkGray),
		Active:    fg(ColorAccent).Bold(true),
		Sparkline: fg(ColorAccent),
		Speed:     fg(ColorGray),
		Label:     fg(ColorGray),
	}
	s.Frame = frame(0, 1).BorderForeground(lipgloss.Color(ColorDarkGray))
	s.Summary = frame(1, 2).BorderForeground(lipgloss.Color(ColorAccent))
	return s
}

// NoColorStyles keeps the layout and drops every color and attribute.
func NoColorStyles() Styles {
	p := lipgloss.NewStyle()
	return Styles{
		Header: p, Success: p, Warning: p, Error: p, Dim: p,
		Active: p, Sparkline: p, Speed: p, Label: p,
		Frame:   frame(0, 1),
		Summary: frame(1, 2),
	}
}

func frame(vertical, horizontal int) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(vertical, horizontal)
}

func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
