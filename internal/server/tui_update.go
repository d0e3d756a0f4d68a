// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send player and clock state to the TUI
package server

// status snapshots what the TUI shows
func (s *Server) status() ServerStatus {
	s.clientsMu.RLock()
	players := make([]PlayerInfo, 0, len(s.players))
	for _, index := range sortedIndices(s.players) {
		players = append(players, PlayerInfo{Name: s.players[index].Name, Index: index})
	}
	controllers := len(s.controllers)
	s.clientsMu.RUnlock()

	for i := range players {
		if pos, ok := s.registry.Get(players[i].Index); ok {
			players[i].Placed = true
			players[i].X = pos.X
			players[i].Y = pos.Y
		}
	}

	return ServerStatus{
		Name:        s.config.Name,
		Port:        s.config.Port,
		Clock:       s.clock.Now(),
		Players:     players,
		Controllers: controllers,
	}
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.status())
}
