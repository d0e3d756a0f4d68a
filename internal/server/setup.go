// ABOUTME: Installation setup file
// ABOUTME: Receiver coordinates by player index and initial module params
package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
)

// Setup describes an installation
type Setup struct {
	// Coordinates holds the [x, y] position of each player index
	Coordinates [][2]float64 `json:"coordinates"`
	// Params overrides module defaults: module name -> param name -> value
	Params map[string]map[string]interface{} `json:"params"`
}

// LoadSetup reads a setup JSON file
func LoadSetup(path string) (*Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read setup: %w", err)
	}

	var s Setup
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse setup %s: %w", path, err)
	}
	return &s, nil
}

// Coordinate returns the configured position of player index
func (s *Setup) Coordinate(index int) (propagation.Point, bool) {
	if s == nil || index < 0 || index >= len(s.Coordinates) {
		return propagation.Point{}, false
	}
	c := s.Coordinates[index]
	return propagation.Point{X: c[0], Y: c[1]}, true
}

// Receivers lists every configured coordinate as a receiver
func (s *Setup) Receivers() []propagation.Receiver {
	if s == nil {
		return nil
	}
	out := make([]propagation.Receiver, 0, len(s.Coordinates))
	for i, c := range s.Coordinates {
		out = append(out, propagation.Receiver{ID: i, Pos: propagation.Point{X: c[0], Y: c[1]}})
	}
	return out
}
