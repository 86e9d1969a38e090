package terminal

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// themeColors maps genre themes to ANSI 256 colors
var themeColors = map[string]lipgloss.Color{
	"cyan":   lipgloss.Color("51"),
	"amber":  lipgloss.Color("214"),
	"red":    lipgloss.Color("196"),
	"violet": lipgloss.Color("141"),
}

const defaultAccent = lipgloss.Color("205")

type styles struct {
	renderer *lipgloss.Renderer
	banner   lipgloss.Style
	title    lipgloss.Style
	meta     lipgloss.Style
	option   lipgloss.Style
	prompt   lipgloss.Style
	errorMsg lipgloss.Style
	ending   lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	s := &styles{renderer: r}
	s.banner = r.NewStyle().Bold(true).Foreground(defaultAccent)
	s.meta = r.NewStyle().Foreground(lipgloss.Color("240"))
	s.prompt = r.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	s.errorMsg = r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	s.apply("")
	return s
}

// apply switches the accent color to the genre theme
func (s *styles) apply(theme string) {
	accent, ok := themeColors[theme]
	if !ok {
		accent = defaultAccent
	}
	s.title = s.renderer.NewStyle().Bold(true).Foreground(accent)
	s.option = s.renderer.NewStyle().Foreground(accent)
	s.ending = s.renderer.NewStyle().Bold(true).Foreground(accent).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 2)
}
