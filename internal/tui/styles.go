package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))

	panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	header = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#ffffff")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("#444466"))
)

// Row is one label and value of a summary panel.
type Row struct {
	Label string
	Value string
}

// Summary renders rows as an aligned key/value panel.
func Summary(title string, rows []Row) string {
	w := 0
	for _, r := range rows {
		w = max(w, len(r.Label))
	}

	var b strings.Builder
	b.WriteString(header.Render(title) + "\n")
	for _, r := range rows {
		b.WriteString(dim.Render(fmt.Sprintf("%-*s", w+2, r.Label)) + cyan.Render(r.Value) + "\n")
	}
	return panel.Render(strings.TrimRight(b.String(), "\n"))
}

func bar(frac float64, width int) string {
	frac = min(max(frac, 0), 1)
	filled := int(frac * float64(width))
	return green.Render(strings.Repeat("█", filled)) + dimmer.Render(strings.Repeat("░", width-filled))
}
