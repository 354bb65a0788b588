package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	focusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	buyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	sellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))

	priceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	noticeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("3"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("238"))

	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "PENDING":
		return pendingStyle
	case "COMPLETED":
		return completedStyle
	default:
		return cancelledStyle
	}
}

func sideStyle(side string) lipgloss.Style {
	if side == "BUY" {
		return buyStyle
	}
	return sellStyle
}
