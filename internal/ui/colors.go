package ui

import "github.com/charmbracelet/lipgloss"

// colors names the terminal palette. Values are hex strings or ANSI indexes.
type colors struct {
	accent  string
	success string
	failure string
	caution string
	muted   string
}

var tidalColors = colors{
	accent:  "#33FFEE",
	success: "#04B575",
	failure: "#FF5F5F",
	caution: "#FFA500",
	muted:   "#626262",
}

var styles = newTheme(tidalColors)

type theme struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
	code  lipgloss.Style
}

func newTheme(c colors) theme {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}

	return theme{
		title: fg(c.accent).Bold(true).MarginBottom(1),
		ok:    fg(c.success).Bold(true),
		err:   fg(c.failure).Bold(true),
		warn:  fg(c.caution),
		dim:   fg(c.muted).Italic(true),
		code: fg(c.accent).Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c.accent)).
			Padding(0, 2),
	}
}
