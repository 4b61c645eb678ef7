package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mgomes/mdedit/internal/layout"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141"))

	linkStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("39"))

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	strongStyle = lipgloss.NewStyle().Bold(true)

	emphasisStyle = lipgloss.NewStyle().Italic(true)

	plainStyle = lipgloss.NewStyle()

	highlightStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("58")).
			Foreground(lipgloss.Color("230"))

	currentHighlightStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("214")).
				Foreground(lipgloss.Color("16")).
				Bold(true)

	cursorStyle = lipgloss.NewStyle().Reverse(true)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	outlineBorder = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	optionOn = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("86"))

	optionOff = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// Colors used when the terminal's own palette is preferred.
var (
	themeHighlightStyle = lipgloss.NewStyle().Reverse(true)

	themeCurrentHighlightStyle = lipgloss.NewStyle().Reverse(true).Bold(true).Underline(true)
)

func textStyle(s layout.Style) lipgloss.Style {
	switch s {
	case layout.StyleHeading:
		return headingStyle
	case layout.StyleStrong:
		return strongStyle
	case layout.StyleEmphasis:
		return emphasisStyle
	case layout.StyleCode:
		return codeStyle
	case layout.StyleLink:
		return linkStyle
	default:
		return plainStyle
	}
}
