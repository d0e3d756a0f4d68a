// ABOUTME: Granular texture module
// ABOUTME: Drives a grain engine from mixed remote and local energy and plays its grains
package app

import (
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/Resonate-Protocol/nu-go/internal/metrics"
	"github.com/Resonate-Protocol/nu-go/internal/ui"
	"github.com/Resonate-Protocol/nu-go/pkg/audio/output"
	"github.com/Resonate-Protocol/nu-go/pkg/grain"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
)

const (
	// energyInterval is how often remote and local energy are mixed
	energyInterval = 100 * time.Millisecond
	// localDecay fades keyboard shake energy on every mix
	localDecay = 0.8
	// grainLookahead delays grains past their tick
	grainLookahead = 50 * time.Millisecond
)

var grainTable = control.Table{
	Params:   []string{"gain", "audioFileId", "enable", "override", "energy", "randomVar", "engineParams"},
	Commands: []string{"reset", "touch"},
}

// GrainModule plays the granular texture. All methods run on the player
// timeline.
type GrainModule struct {
	assets   *Assets
	sink     output.Sink
	sched    grain.Scheduler
	feedback ui.Feedback
	metrics  *metrics.Metrics
	rng      *rand.Rand

	gain         float64
	audioFileID  int
	override     float64
	energy       float64
	localEnergy  float64
	engineParams grain.EngineParams

	asset         *Asset
	engine        *grain.Engine
	enabled       bool
	pendingEnable bool
	cancelMix     func()
}

// NewGrainModule creates the module with its stock parameters
func NewGrainModule(assets *Assets, sink output.Sink, sched grain.Scheduler, fb ui.Feedback, m *metrics.Metrics, rng *rand.Rand) *GrainModule {
	return &GrainModule{
		assets:       assets,
		sink:         sink,
		sched:        sched,
		feedback:     fb,
		metrics:      m,
		rng:          rng,
		gain:         1,
		override:     1,
		engineParams: grain.DefaultParams(),
	}
}

func (g *GrainModule) Name() string         { return protocol.ModuleGrain }
func (g *GrainModule) Table() control.Table { return grainTable }

// Handle applies a param or runs a command
func (g *GrainModule) Handle(r control.Resolution) error {
	switch r := r.(type) {
	case control.Param:
		return g.setParam(r)
	case control.Command:
		switch r.Name {
		case "reset":
			return g.reset()
		case "touch":
			i, err := r.Args.Int(0)
			if err != nil {
				return fmt.Errorf("touch: %w", err)
			}
			if g.engine != nil {
				g.engine.Touch(i)
			}
		}
	}
	return nil
}

func (g *GrainModule) setParam(p control.Param) error {
	if p.Name == "engineParams" {
		pair, ok := p.Value.([]interface{})
		if !ok || len(pair) != 2 {
			return fmt.Errorf("engineParams needs a name and a value, got %v", p.Value)
		}
		args := control.Args(pair)
		name, _ := args.String(0)
		v, err := args.Float(1)
		if err != nil {
			return fmt.Errorf("engineParams %s: %w", name, err)
		}
		// applied on the next reset
		return g.engineParams.Set(name, v)
	}

	v, err := control.ToFloat(p.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}

	switch p.Name {
	case "gain":
		g.gain = v
	case "override":
		g.override = v
	case "energy":
		g.energy = v
	case "randomVar":
		g.engineParams.RandomVar = int(v)
		if g.engine != nil {
			params := g.engine.Params()
			params.RandomVar = int(v)
			g.engine.Configure(params)
		}
	case "audioFileId":
		return g.setAsset(int(v))
	case "enable":
		return g.Enable(v != 0)
	}
	return nil
}

// setAsset swaps the segmented asset the engine draws from
func (g *GrainModule) setAsset(id int) error {
	g.audioFileID = id
	g.asset = nil

	if !g.assets.Loaded() {
		return nil
	}

	asset, err := g.assets.Get(id)
	if err != nil {
		g.stop()
		g.engine = nil
		return err
	}
	g.asset = asset

	if g.engine == nil {
		if err := g.newEngine(); err != nil {
			return err
		}
	} else if err := g.engine.SetSegments(asset.Segments); err != nil {
		return err
	}

	if g.pendingEnable {
		g.pendingEnable = false
		return g.Enable(true)
	}
	return nil
}

// AssetsLoaded resolves the pending asset once loading finishes
func (g *GrainModule) AssetsLoaded() error {
	return g.setAsset(g.audioFileID)
}

func (g *GrainModule) newEngine() error {
	engine, err := grain.NewEngine(grain.Config{
		Params:    g.engineParams,
		Segments:  g.asset.Segments,
		Scheduler: g.sched,
		Emitter:   grain.EmitterFunc(g.emit),
		OnBeat:    g.feedback.Beat,
		Lookahead: grainLookahead,
		Rand:      rand.New(rand.NewPCG(g.rng.Uint64(), g.rng.Uint64())),
	})
	if err != nil {
		g.engine = nil
		return err
	}
	g.engine = engine
	return nil
}

// Enable starts or stops the texture. Enabling before the asset is ready is
// remembered and honoured once it is.
func (g *GrainModule) Enable(on bool) error {
	if on && g.engine == nil {
		g.pendingEnable = true
		return nil
	}
	if !on {
		g.pendingEnable = false
		g.stop()
		return nil
	}
	if g.enabled {
		return nil
	}

	g.cancelMix = g.sched.Schedule(g.mixEnergy)
	g.engine.Start()
	g.feedback.Enable()
	g.enabled = true
	log.Printf("Grain texture enabled on asset %d", g.audioFileID)
	return nil
}

func (g *GrainModule) stop() {
	if !g.enabled {
		return
	}
	g.engine.Stop()
	if g.cancelMix != nil {
		g.cancelMix()
		g.cancelMix = nil
	}
	g.feedback.Disable()
	g.enabled = false
}

// reset rebuilds the engine with the current params, restarting it if it ran
func (g *GrainModule) reset() error {
	wasRunning := g.enabled
	g.stop()
	g.engine = nil

	if g.asset == nil {
		if wasRunning {
			g.pendingEnable = true
		}
		return nil
	}
	if err := g.newEngine(); err != nil {
		return err
	}
	if wasRunning {
		return g.Enable(true)
	}
	return nil
}

// Shake feeds local energy, as device motion would
func (g *GrainModule) Shake(energy float64) {
	if energy > g.localEnergy {
		g.localEnergy = energy
	}
}

// mixEnergy blends remote and local energy into the engine
func (g *GrainModule) mixEnergy(time.Time) time.Duration {
	mixed := g.override*g.energy + (1-g.override)*g.localEnergy
	g.localEnergy *= localDecay
	if g.engine != nil {
		g.engine.SetEnergy(mixed)
	}
	return energyInterval
}

func (g *GrainModule) emit(ev grain.Event) {
	if g.asset == nil {
		return
	}
	buf := grain.Render(g.asset.Buffer, ev)
	g.sink.Play(buf, ev.Gain*g.gain, ev.At)

	mode := "texture"
	if ev.Touch {
		mode = "touch"
	}
	g.metrics.Grain(mode)
}

// Enabled reports whether the texture is playing
func (g *GrainModule) Enabled() bool {
	return g.enabled
}

// Close stops the engine
func (g *GrainModule) Close() {
	g.stop()
}
