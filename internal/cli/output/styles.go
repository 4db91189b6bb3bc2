package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the text-mode styles.
type Styles struct {
	Header1  lipgloss.Style
	Header2  lipgloss.Style
	Alias    lipgloss.Style
	FilePath lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so that color
// output follows that renderer's profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Alias:    r.NewStyle().Foreground(lipgloss.Color("13")),
		FilePath: r.NewStyle().Foreground(lipgloss.Color("6")),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:     r.NewStyle().Bold(true),
		Success:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:     r.NewStyle().Foreground(lipgloss.Color("12")),
	}
}
