package observer

import "github.com/charmbracelet/lipgloss"

var (
	salmonPink  = lipgloss.Color("#FFB3BA") // primary accent
	mintGreen   = lipgloss.Color("#A8E6CF") // success
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB")
	amber       = lipgloss.Color("#FCD34D")
	softRed     = lipgloss.Color("#F87171")
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(brightWhite).Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(salmonPink)
	successStyle = lipgloss.NewStyle().Foreground(mintGreen).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(salmonPink)
	warnStyle    = lipgloss.NewStyle().Foreground(amber)
	errorStyle   = lipgloss.NewStyle().Foreground(softRed).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedGray)
	priceStyle   = lipgloss.NewStyle().Foreground(mintGreen)
)
