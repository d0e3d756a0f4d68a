// ABOUTME: Server TUI showing the shared clock, controllers and the player floor plan
// ABOUTME: Real-time server status display using bubbletea
package server

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Floor plan size in terminal cells
const (
	floorWidth  = 48
	floorHeight = 12
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	listStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	floorStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{}

	mu      sync.Mutex
	stopped bool
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name        string
	Port        int
	Clock       float64
	Players     []PlayerInfo
	Controllers int
}

// PlayerInfo holds player information for display
type PlayerInfo struct {
	Name   string
	Index  int
	Placed bool
	X, Y   float64
}

type tuiModel struct {
	status    ServerStatus
	clockAt   time.Time // when status.Clock was read
	startTime time.Time
	now       time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		m.clockAt = time.Now()
		m.now = m.clockAt
	}

	return m, nil
}

// sharedClock extrapolates the last reported clock to the last tick
func (m tuiModel) sharedClock() float64 {
	if m.clockAt.IsZero() || m.now.Before(m.clockAt) {
		return m.status.Clock
	}
	return m.status.Clock + m.now.Sub(m.clockAt).Seconds()
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Nu Server"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	field("Server", fmt.Sprintf("%s on port %d", m.status.Name, m.status.Port))
	field("Uptime", m.now.Sub(m.startTime).Round(time.Second).String())
	field("Shared clock", fmt.Sprintf("%.1fs", m.sharedClock()))
	field("Controllers", fmt.Sprintf("%d", m.status.Controllers))
	b.WriteString("\n")

	b.WriteString(listStyle.Render(fmt.Sprintf("Players (%d)", len(m.status.Players))))
	b.WriteString("\n")
	b.WriteString(renderPlayers(m.status.Players))
	b.WriteString("\n")

	if plan := renderFloor(m.status.Players, floorWidth, floorHeight); plan != "" {
		b.WriteString(floorStyle.Render(plan))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to quit"))
	return b.String()
}

func renderPlayers(players []PlayerInfo) string {
	if len(players) == 0 {
		return valueStyle.Render("  No players connected") + "\n"
	}

	var b strings.Builder
	for _, p := range players {
		pos := "unplaced"
		if p.Placed {
			pos = fmt.Sprintf("%.2f, %.2f", p.X, p.Y)
		}
		fmt.Fprintf(&b, "  #%-3d %-24s %s\n", p.Index, p.Name, valueStyle.Render("("+pos+")"))
	}
	return b.String()
}

// renderFloor draws placed players on a width x height grid scaled to their
// bounding box. Each player is marked with the last digit of its index.
func renderFloor(players []PlayerInfo, width, height int) string {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	placed := 0
	for _, p := range players {
		if !p.Placed {
			continue
		}
		placed++
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if placed == 0 {
		return ""
	}

	cell := func(v, lo, hi float64, n int) int {
		if hi == lo {
			return n / 2
		}
		return int(math.Round((v - lo) / (hi - lo) * float64(n-1)))
	}

	grid := make([][]byte, height)
	for row := range grid {
		grid[row] = []byte(strings.Repeat(".", width))
	}
	for _, p := range players {
		if !p.Placed {
			continue
		}
		col := cell(p.X, minX, maxX, width)
		// y grows upwards on the floor plan
		row := height - 1 - cell(p.Y, minY, maxY, height)
		grid[row][col] = byte('0' + p.Index%10)
	}

	lines := make([]string, height)
	for i, row := range grid {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(serverName string, port int) error {
	now := time.Now()
	m := tuiModel{
		status:    ServerStatus{Name: serverName, Port: port},
		startTime: now,
		now:       now,
		quitChan:  t.quitChan,
	}

	program := tea.NewProgram(m, tea.WithAltScreen())
	t.mu.Lock()
	t.program = program
	t.mu.Unlock()

	go func() {
		for status := range t.updates {
			program.Send(statusMsg(status))
		}
	}()

	_, err := program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI; later updates are dropped
func (t *ServerTUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
