// ABOUTME: Grain engine parameters
// ABOUTME: Timing, envelope and randomization settings with their defaults
package grain

import (
	"fmt"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// EnergyMode selects how energy is mapped to decibels
type EnergyMode int

const (
	// EnergyAmplitude treats energy as an amplitude ratio (20·log10)
	EnergyAmplitude EnergyMode = iota
	// EnergyPower treats energy as a power ratio (10·log10)
	EnergyPower
)

// EngineParams holds grain timing and envelope settings. Every *Abs value is in
// seconds; every *Rel value is a factor of the segment (or grain) duration.
type EngineParams struct {
	PeriodAbs   float64
	PeriodRel   float64
	DurationAbs float64
	DurationRel float64
	OffsetAbs   float64
	OffsetRel   float64
	AttackAbs   float64
	AttackRel   float64
	ReleaseAbs  float64
	ReleaseRel  float64

	// ResamplingVar is the maximum random pitch deviation in cents
	ResamplingVar float64
	// RandomVar is the selection jitter in index positions
	RandomVar  int
	EnergyMode EnergyMode
}

// DefaultParams returns the stock engine configuration
func DefaultParams() EngineParams {
	return EngineParams{
		PeriodAbs:     0.150,
		PeriodRel:     0,
		DurationAbs:   0,
		DurationRel:   1,
		OffsetAbs:     0.005,
		OffsetRel:     0,
		AttackAbs:     0.005,
		AttackRel:     0,
		ReleaseAbs:    0.005,
		ReleaseRel:    0,
		ResamplingVar: 200,
		RandomVar:     1,
		EnergyMode:    EnergyAmplitude,
	}
}

// Set assigns a parameter by its control name
func (p *EngineParams) Set(name string, value float64) error {
	switch name {
	case "periodAbs":
		p.PeriodAbs = value
	case "periodRel":
		p.PeriodRel = value
	case "durationAbs":
		p.DurationAbs = value
	case "durationRel":
		p.DurationRel = value
	case "offsetAbs":
		p.OffsetAbs = value
	case "offsetRel":
		p.OffsetRel = value
	case "attackAbs":
		p.AttackAbs = value
	case "attackRel":
		p.AttackRel = value
	case "releaseAbs":
		p.ReleaseAbs = value
	case "releaseRel":
		p.ReleaseRel = value
	case "resamplingVar":
		p.ResamplingVar = value
	case "randomVar":
		p.RandomVar = int(value)
	case "energyMode":
		p.EnergyMode = EnergyMode(value)
	default:
		return fmt.Errorf("unknown engine parameter: %s", name)
	}
	return nil
}

// GrainDuration returns how long a grain of seg lasts
func (p EngineParams) GrainDuration(seg Segment) float64 {
	d := p.DurationAbs + p.DurationRel*seg.Duration
	if d < 0 {
		return 0
	}
	return d
}

// Period returns the delay before the next tick
func (p EngineParams) Period(grainDuration float64) float64 {
	return p.PeriodAbs + p.PeriodRel*grainDuration
}

// Envelope returns the pre-roll offset and the attack/release times for a grain
func (p EngineParams) Envelope(grainDuration float64) (offset, attack, release float64) {
	offset = p.OffsetAbs + p.OffsetRel*grainDuration
	attack = p.AttackAbs + p.AttackRel*grainDuration
	release = p.ReleaseAbs + p.ReleaseRel*grainDuration
	return offset, attack, release
}

// TargetLogPower maps energy onto the loudness scale whose top is maxLogPower
func (p EngineParams) TargetLogPower(energy, maxLogPower float64) float64 {
	if p.EnergyMode == EnergyPower {
		return audio.PowerToDecibel(energy) + maxLogPower
	}
	return audio.LinearToDecibel(energy) + maxLogPower
}
