// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Defines node state, feedback display and key handling
package ui

import (
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/nu-go/pkg/sync"
)

// blinkDuration is how long a blink stays lit
const blinkDuration = 300 * time.Millisecond

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string
	index      int
	x, y       float64

	// Sync
	syncOffset  int64
	syncRTT     int64
	syncQuality sync.Quality

	// Modules
	grainEnabled bool
	irs          int

	// Feedback
	active     int
	blink      Color
	blinkUntil time.Time
	beatIndex  int
	intensity  float64

	// Playback
	volume int
	muted  bool

	// Stats
	grains int64
	missed int64

	// Debug
	showDebug bool

	controls *Controls
	now      func() time.Time

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case BlinkMsg:
		m.blink = msg.Color
		m.blinkUntil = m.clock().Add(blinkDuration)
		return m, tea.Tick(blinkDuration, func(time.Time) tea.Msg { return redrawMsg{} })
	case ActiveMsg:
		m.active += msg.Delta
		if m.active < 0 {
			m.active = 0
		}
	case BeatMsg:
		m.beatIndex = msg.Index
		m.intensity = math.Min(1, 10*msg.Energy)
		m.grains++
	case redrawMsg:
	}

	return m, nil
}

type redrawMsg struct{}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderNode()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection and sync status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	syncIcon := "✗"
	syncText := "Lost"
	switch m.syncQuality {
	case sync.QualityGood:
		syncIcon = "✓"
		syncText = fmt.Sprintf("Synced (offset: %+.1fms, rtt: %.1fms)",
			float64(m.syncOffset)/1000.0, float64(m.syncRTT)/1000.0)
	case sync.QualityDegraded:
		syncIcon = "⚠"
		syncText = "Degraded"
	}

	return fmt.Sprintf(`┌─ Nu Player ──────────────────────────────────────────┐
│ Status: %-45s │
│ Sync:   %s %-42s │
├──────────────────────────────────────────────────────┤
`, connStatus, syncIcon, syncText)
}

// renderNode renders position and feedback
func (m Model) renderNode() string {
	if !m.connected {
		return "│ Waiting for server                                   │\n"
	}

	indicator := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("●")
	if m.clock().Before(m.blinkUntil) {
		hex := fmt.Sprintf("#%02x%02x%02x", m.blink[0], m.blink[1], m.blink[2])
		indicator = lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true).Render("●")
	} else if m.active > 0 {
		indicator = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Render("●")
	}

	grain := "off"
	if m.grainEnabled {
		grain = "on"
	}

	s := fmt.Sprintf("│ Player #%-3d at (%6.2f, %6.2f)%-23s │\n", m.index, m.x, m.y, "")
	s += fmt.Sprintf("│ %s  Sources: %-3d Grain: %-4s IRs: %-19d │\n", indicator, m.active, grain, m.irs)
	s += fmt.Sprintf("│ Energy: [%s] segment %-19d │\n", renderBar(int(m.intensity*100), 100, 10), m.beatIndex)
	return s
}

// renderControls renders volume
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n",
		volumeBar, m.volume, muteIcon, "")
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Grains: %d  Missed: %d%-18s │
│                                                      │
`, m.grains, m.missed, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  space:Shake  d:Debug  q:Quit    │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Clock Offset: %+dμs                              │
│   Beat intensity: %.2f                             │
`, m.syncOffset, m.intensity)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(100, m.volume+5)
		m.sendVolume()
	case "down":
		m.volume = max(0, m.volume-5)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case " ", "space":
		if m.controls != nil {
			select {
			case m.controls.Shake <- ShakeMsg{Energy: 1}:
			default:
			}
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) sendVolume() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Volume <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m Model) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Index != nil {
		m.index = *msg.Index
		m.x = msg.X
		m.y = msg.Y
	}
	if msg.SyncOffset != 0 || msg.SyncRTT != 0 {
		m.syncOffset = msg.SyncOffset
		m.syncRTT = msg.SyncRTT
		m.syncQuality = msg.SyncQuality
	}
	if msg.GrainEnabled != nil {
		m.grainEnabled = *msg.GrainEnabled
	}
	if msg.IRs != 0 {
		m.irs = msg.IRs
	}
	if msg.Missed != 0 {
		m.missed = msg.Missed
	}
}

// StatusMsg updates TUI state; zero fields are left unchanged
type StatusMsg struct {
	Connected    *bool
	ServerName   string
	Index        *int
	X, Y         float64
	SyncOffset   int64
	SyncRTT      int64
	SyncQuality  sync.Quality
	GrainEnabled *bool
	IRs          int
	Missed       int64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}
