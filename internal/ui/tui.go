// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user input from the TUI to the player
type Controls struct {
	Volume chan VolumeChangeMsg
	Shake  chan ShakeMsg
	Quit   chan QuitMsg
}

// VolumeChangeMsg sets the local output volume
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// ShakeMsg is a keyboard stand-in for device motion energy
type ShakeMsg struct {
	Energy float64
}

// QuitMsg asks the player to exit
type QuitMsg struct{}

// NewControls creates the input channels
func NewControls() *Controls {
	return &Controls{
		Volume: make(chan VolumeChangeMsg, 10),
		Shake:  make(chan ShakeMsg, 10),
		Quit:   make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls) Model {
	return Model{
		volume:   100,
		index:    -1,
		controls: ctrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
