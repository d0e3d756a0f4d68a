// ABOUTME: Visual feedback collaborator for player modules
// ABOUTME: Blink colors, active-source tracking and grain beats, with a log-only fallback
package ui

import (
	"log"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Color is an RGB triple
type Color [3]uint8

// Feedback colors
var (
	ColorIRReceived = Color{0, 100, 0}
	ColorIRMissing  = Color{160, 0, 0}
	ColorTooLate    = Color{250, 0, 0}
)

// Feedback shows the player what its node is doing
type Feedback interface {
	// Blink flashes a color once
	Blink(c Color)
	// Enable counts one more sounding source
	Enable()
	// Disable counts one source fewer
	Disable()
	// Beat marks a texture grain that sounds after delay
	Beat(delay time.Duration, index int, energy float64)
}

// LogFeedback writes feedback to the log. Beats are only logged in debug mode.
type LogFeedback struct {
	Debug  bool
	active atomic.Int64
}

func (f *LogFeedback) Blink(c Color) {
	log.Printf("Blink rgb(%d,%d,%d)", c[0], c[1], c[2])
}

func (f *LogFeedback) Enable() {
	f.active.Add(1)
}

func (f *LogFeedback) Disable() {
	if f.active.Add(-1) < 0 {
		f.active.Store(0)
	}
}

func (f *LogFeedback) Beat(delay time.Duration, index int, energy float64) {
	if f.Debug {
		log.Printf("[DEBUG] Beat in %v: segment=%d energy=%.2f", delay, index, energy)
	}
}

// Active returns the number of sounding sources
func (f *LogFeedback) Active() int {
	return int(f.active.Load())
}

// ProgramFeedback forwards feedback to a running TUI
type ProgramFeedback struct {
	Program *tea.Program
}

func (f ProgramFeedback) Blink(c Color) {
	f.Program.Send(BlinkMsg{Color: c})
}

func (f ProgramFeedback) Enable() {
	f.Program.Send(ActiveMsg{Delta: 1})
}

func (f ProgramFeedback) Disable() {
	f.Program.Send(ActiveMsg{Delta: -1})
}

func (f ProgramFeedback) Beat(delay time.Duration, index int, energy float64) {
	f.Program.Send(BeatMsg{Delay: delay, Index: index, Energy: energy})
}

// BlinkMsg flashes the status indicator
type BlinkMsg struct {
	Color Color
}

// ActiveMsg changes the sounding source count
type ActiveMsg struct {
	Delta int
}

// BeatMsg reports a texture grain
type BeatMsg struct {
	Delay  time.Duration
	Index  int
	Energy float64
}
