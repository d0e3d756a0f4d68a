// ABOUTME: Point-source propagation model
// ABOUTME: Turns a timed emission path into per-receiver delay/gain tap lists
package propagation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinSpeed is the smallest propagation speed magnitude; slower speeds are
// clamped to it with their sign kept
const MinSpeed = 0.1

// Point is a position on the installation floor plan
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PathPoint is one emission of the moving source
type PathPoint struct {
	Time float64
	Pos  Point
}

// Receiver is a listening node
type Receiver struct {
	ID  int
	Pos Point
}

// Tap is one arrival at a receiver
type Tap struct {
	Delay float64
	Gain  float64
}

// TapList is the sparse impulse response of one receiver for one path
type TapList struct {
	Taps []Tap
	// Duration is the largest delay
	Duration float64
	// MinTime is the offset already subtracted from every delay
	MinTime float64
}

// Params controls propagation
type Params struct {
	Speed          float64
	Gain           float64
	MinAudibleGain float64
}

// DefaultParams returns unit speed, 0.9 gain per distance unit and a 0.01 floor
func DefaultParams() Params {
	return Params{
		Speed:          1.0,
		Gain:           0.9,
		MinAudibleGain: 0.01,
	}
}

// EffectiveSpeed returns the speed with its magnitude clamped to MinSpeed
func (p Params) EffectiveSpeed() float64 {
	if math.Abs(p.Speed) >= MinSpeed {
		return p.Speed
	}
	if p.Speed < 0 {
		return -MinSpeed
	}
	return MinSpeed
}

// Compute builds the tap list of every receiver. Each path point contributes
// a tap at t + dist/speed with gain^dist when that gain is audible. The
// earliest arrival across all receivers (never later than zero) is subtracted
// from every delay and reported as MinTime.
func Compute(path []PathPoint, receivers []Receiver, p Params) map[int]TapList {
	speed := p.EffectiveSpeed()

	raw := make(map[int][]Tap, len(receivers))
	minTime := 0.0

	for _, r := range receivers {
		rx := []float64{r.Pos.X, r.Pos.Y}
		taps := make([]Tap, 0, len(path))
		for _, pt := range path {
			dist := floats.Distance(rx, []float64{pt.Pos.X, pt.Pos.Y}, 2)
			gain := math.Pow(p.Gain, dist)
			if gain < p.MinAudibleGain {
				continue
			}
			t := pt.Time + dist/speed
			taps = append(taps, Tap{Delay: t, Gain: gain})
			minTime = math.Min(minTime, t)
		}
		raw[r.ID] = taps
	}

	out := make(map[int]TapList, len(raw))
	for id, taps := range raw {
		tl := TapList{Taps: taps, MinTime: minTime}
		for i := range tl.Taps {
			tl.Taps[i].Delay -= minTime
			tl.Duration = math.Max(tl.Duration, tl.Taps[i].Delay)
		}
		out[id] = tl
	}
	return out
}

// ParsePath reads flat [t0 x0 y0 t1 x1 y1 ...] triples
func ParsePath(values []float64) ([]PathPoint, error) {
	if len(values)%3 != 0 {
		return nil, fmt.Errorf("path needs (time, x, y) triples, got %d values", len(values))
	}
	path := make([]PathPoint, 0, len(values)/3)
	for i := 0; i < len(values); i += 3 {
		path = append(path, PathPoint{
			Time: values[i],
			Pos:  Point{X: values[i+1], Y: values[i+2]},
		})
	}
	return path, nil
}

// MaxGain returns the loudest tap gain, or 0 for an empty list
func (tl TapList) MaxGain() float64 {
	if len(tl.Taps) == 0 {
		return 0
	}
	gains := make([]float64, len(tl.Taps))
	for i, t := range tl.Taps {
		gains[i] = t.Gain
	}
	return floats.Max(gains)
}
