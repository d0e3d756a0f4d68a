// ABOUTME: Propagation path module
// ABOUTME: Caches per-path impulse responses and plays rendered paths at a shared rendezvous
package app

import (
	"fmt"
	"log"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Resonate-Protocol/nu-go/internal/metrics"
	"github.com/Resonate-Protocol/nu-go/internal/ui"
	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/render"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
)

// IRCacheSize bounds how many path IRs a player keeps
const IRCacheSize = 64

var pathTable = control.Table{
	Params: []string{
		"masterGain", "propagationSpeed", "propagationGain", "propagationRxMinGain",
		"audioFileId", "perc", "loop", "accSlope", "timeBound",
	},
	Commands: []string{"startPath", "reset"},
}

// PathModule renders a path through this player's IR and starts it at the
// rendezvous time
type PathModule struct {
	assets   *Assets
	sched    *rendezvous.Scheduler
	feedback ui.Feedback
	metrics  *metrics.Metrics
	irs      *lru.Cache

	audioFileID int
	params      render.Params
}

// NewPathModule creates the module around a rendezvous scheduler
func NewPathModule(assets *Assets, sched *rendezvous.Scheduler, fb ui.Feedback, m *metrics.Metrics) (*PathModule, error) {
	irs, err := lru.New(IRCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create IR cache: %w", err)
	}

	p := &PathModule{
		assets:   assets,
		sched:    sched,
		feedback: fb,
		metrics:  m,
		irs:      irs,
		params:   render.DefaultParams(),
	}
	sched.OnComplete = func(*rendezvous.Playback) {
		fb.Disable()
	}
	return p, nil
}

func (p *PathModule) Name() string         { return protocol.ModulePath }
func (p *PathModule) Table() control.Table { return pathTable }

// Handle applies a param or runs a command
func (p *PathModule) Handle(r control.Resolution) error {
	switch r := r.(type) {
	case control.Param:
		return p.setParam(r)
	case control.Command:
		switch r.Name {
		case "startPath":
			id, err := r.Args.Int(0)
			if err != nil {
				return fmt.Errorf("startPath: %w", err)
			}
			at, err := r.Args.Float(1)
			if err != nil {
				return fmt.Errorf("startPath: %w", err)
			}
			return p.StartPath(id, at)
		case "reset":
			p.Reset()
		}
	}
	return nil
}

func (p *PathModule) setParam(param control.Param) error {
	v, err := control.ToFloat(param.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", param.Name, err)
	}

	switch param.Name {
	case "masterGain":
		p.params.MasterGain = v
	case "audioFileId":
		p.audioFileID = int(v)
	case "perc":
		p.params.Perc = v
	case "loop":
		p.params.Loop = v != 0
	case "accSlope":
		p.params.Slope = v
	case "timeBound":
		p.params.StartFraction = v
	}
	// propagation params only matter on the server
	return nil
}

// SetIR stores the impulse response of a path
func (p *PathModule) SetIR(ir protocol.IR) {
	taps := ir.TapList()
	p.irs.Add(ir.PathID, taps)
	p.metrics.Taps(len(taps.Taps))
	p.feedback.Blink(ui.ColorIRReceived)
}

// StartPath renders path id and schedules it at shared time at
func (p *PathModule) StartPath(id int, at float64) error {
	asset, err := p.assets.Get(p.audioFileID)
	if err != nil {
		return err
	}

	v, ok := p.irs.Get(id)
	if !ok {
		p.feedback.Blink(ui.ColorIRMissing)
		return fmt.Errorf("%w: path %d", ErrUnresolvedTapList, id)
	}

	res := render.Render(asset.Buffer, v.(propagation.TapList), p.params)
	if _, err := p.sched.Schedule(at, res.Buffer, res.Gain); err != nil {
		p.feedback.Blink(ui.ColorTooLate)
		p.metrics.Rendezvous("missed")
		return err
	}

	p.metrics.Rendezvous("scheduled")
	p.feedback.Enable()
	return nil
}

// Reset stops every path that is sounding
func (p *PathModule) Reset() {
	n := p.sched.Reset()
	for i := 0; i < n; i++ {
		p.feedback.Disable()
	}
	if n > 0 {
		log.Printf("Stopped %d path playbacks", n)
	}
}

// IRs returns how many path IRs are cached
func (p *PathModule) IRs() int {
	return p.irs.Len()
}
