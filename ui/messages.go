package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/flac2opus/convert"
)

// ConvertEventMsg carries one controller event into the TUI
type ConvertEventMsg struct {
	Event convert.Event
}

// eventsClosedMsg is sent when the event channel is closed
type eventsClosedMsg struct{}

// controlSentMsg marks the end of a command sent to the controller
type controlSentMsg struct{}

// WaitForEvent reads the next controller event from events
func WaitForEvent(events <-chan convert.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return ConvertEventMsg{Event: ev}
	}
}
