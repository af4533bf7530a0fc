package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/flac2opus/convert"
)

// Styling functions using lipgloss
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Bold(true).
			Padding(0, 2).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	ProcessingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// Progress bar gradients: the overall bar runs from the processing blue to
// the success green, a single job uses the processing colors only
const (
	overallGradientFrom = "#00afff"
	overallGradientTo   = "#00ff00"
	jobGradientFrom     = "#0087ff"
	jobGradientTo       = "#00afff"
)

func overallBar() progress.Model {
	return progress.New(progress.WithGradient(overallGradientFrom, overallGradientTo))
}

func jobBar(width int) progress.Model {
	return progress.New(progress.WithGradient(jobGradientFrom, jobGradientTo), progress.WithWidth(width))
}

// StatusStyle is the style a job in the given state is rendered with
func StatusStyle(s convert.Status) lipgloss.Style {
	switch s {
	case convert.StatusCompleted:
		return SuccessStyle
	case convert.StatusSkipped:
		return InfoStyle
	case convert.StatusCancelled:
		return WarnStyle
	case convert.StatusFailed:
		return ErrorStyle
	case convert.StatusConverting:
		return ProcessingStyle
	}
	return MutedStyle
}

// StatusIcon is the marker shown in front of a job in the given state
func StatusIcon(s convert.Status) string {
	switch s {
	case convert.StatusCompleted:
		return "✓"
	case convert.StatusSkipped:
		return "⏭️ "
	case convert.StatusCancelled:
		return "⏹"
	case convert.StatusFailed:
		return "❌"
	case convert.StatusConverting:
		return "🔄"
	}
	return "•"
}

// StatusLabel describes a job state in words. Failures carry their message.
func StatusLabel(s convert.Status, message string) string {
	text := "pending"
	switch s {
	case convert.StatusCompleted:
		text = "converted"
	case convert.StatusSkipped:
		text = "output exists"
	case convert.StatusCancelled:
		text = "cancelled"
	case convert.StatusFailed:
		text = message
	case convert.StatusConverting:
		text = "Processing..."
	}
	return fmt.Sprintf("%s %s", StatusIcon(s), text)
}

// RenderStatus is StatusLabel in the state's style
func RenderStatus(s convert.Status, message string) string {
	return StatusStyle(s).Render(StatusLabel(s, message))
}
