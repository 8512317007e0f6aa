package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles builds styles bound to renderer. Plain styles carry no
// attributes so piped text never contains escape codes.
func NewStyles(renderer *lipgloss.Renderer, plain bool) *Styles {
	s := renderer.NewStyle
	if plain {
		return &Styles{
			Header1: s(), Header2: s(), Bold: s(), Muted: s(),
			Success: s(), Warning: s(), Error: s(), Info: s(),
		}
	}
	return &Styles{
		Header1: s().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2: s().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:    s().Bold(true),
		Muted:   s().Foreground(lipgloss.Color("8")),
		Success: s().Foreground(lipgloss.Color("10")),
		Warning: s().Foreground(lipgloss.Color("11")),
		Error:   s().Foreground(lipgloss.Color("9")).Bold(true),
		Info:    s().Foreground(lipgloss.Color("12")),
	}
}
