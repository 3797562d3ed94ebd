package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33")) // Blue

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Gray
			Width(14)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160")) // Red

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")) // Green

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Orange

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginLeft(2)
)

// field renders one aligned "label value" line.
func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// exitStyle colours an exit status by outcome.
func exitStyle(code int) lipgloss.Style {
	if code == 0 {
		return okStyle
	}

	return errorStyle
}
