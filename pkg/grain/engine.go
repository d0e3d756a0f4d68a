// ABOUTME: Periodic dual-mode grain trigger
// ABOUTME: Emits touch grains and energy-selected texture grains on every tick
package grain

import (
	"log"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/nu-go/pkg/audio"
)

// minPeriod keeps a zero or negative period from spinning the scheduler
const minPeriod = time.Millisecond

// Event is one grain ready to be rendered
type Event struct {
	Segment Segment
	Gain    float64
	At      time.Time
	Cents   float64
	Params  EngineParams
	Touch   bool
}

// Emitter receives grains from the engine
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(Event)

// Emit calls f(ev)
func (f EmitterFunc) Emit(ev Event) { f(ev) }

// BeatFunc observes every texture grain: time until it sounds, its 1-based
// segment index and the energy that chose it
type BeatFunc func(delay time.Duration, index int, energy float64)

// Scheduler calls fn repeatedly, waiting the returned period between calls,
// until cancel is invoked
type Scheduler interface {
	Schedule(fn func(now time.Time) time.Duration) (cancel func())
}

// Config configures an Engine
type Config struct {
	Params    EngineParams
	Segments  []Segment
	Scheduler Scheduler
	Emitter   Emitter
	OnBeat    BeatFunc

	// Lookahead delays each grain past its tick so playback absorbs scheduling jitter
	Lookahead time.Duration
	Rand      *rand.Rand
}

type state struct {
	params   EngineParams
	segments []Segment
	index    *LoudnessIndex
}

// Engine is the granular trigger loop. Params and segments live in an
// immutable state that is swapped whole; a tick always sees one consistent state.
type Engine struct {
	sched     Scheduler
	emit      Emitter
	onBeat    BeatFunc
	lookahead time.Duration

	state  atomic.Pointer[state]
	energy atomic.Uint64
	touch  atomic.Int64

	mu     sync.Mutex
	rng    *rand.Rand
	cancel func()
	ticks  atomic.Int64
}

// NewEngine builds an engine over segments. It fails with ErrDegenerateIndex
// when there are none.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	e := &Engine{
		sched:     cfg.Scheduler,
		emit:      cfg.Emitter,
		onBeat:    cfg.OnBeat,
		lookahead: cfg.Lookahead,
		rng:       cfg.Rand,
	}
	e.energy.Store(math.Float64bits(-1))
	e.touch.Store(-1)

	st, err := e.newState(cfg.Params, cfg.Segments)
	if err != nil {
		return nil, err
	}
	e.state.Store(st)

	return e, nil
}

func (e *Engine) newState(params EngineParams, segments []Segment) (*state, error) {
	segs := Renumber(append([]Segment(nil), segments...))

	e.mu.Lock()
	child := rand.New(rand.NewPCG(e.rng.Uint64(), e.rng.Uint64()))
	e.mu.Unlock()

	index, err := NewLoudnessIndex(segs, child)
	if err != nil {
		return nil, err
	}
	return &state{params: params, segments: segs, index: index}, nil
}

// Configure swaps in new parameters, keeping the current segments
func (e *Engine) Configure(params EngineParams) {
	old := e.state.Load()
	e.state.Store(&state{params: params, segments: old.segments, index: old.index})
}

// SetSegments swaps in a new segment set
func (e *Engine) SetSegments(segments []Segment) error {
	st, err := e.newState(e.state.Load().params, segments)
	if err != nil {
		return err
	}
	e.state.Store(st)
	return nil
}

// Params returns the active parameters
func (e *Engine) Params() EngineParams {
	return e.state.Load().params
}

// SetEnergy sets the control energy; a negative value selects random texture
func (e *Engine) SetEnergy(energy float64) {
	e.energy.Store(math.Float64bits(energy))
}

// Energy returns the control energy
func (e *Engine) Energy() float64 {
	return math.Float64frombits(e.energy.Load())
}

// Touch queues a one-shot grain of the given 1-based segment index
func (e *Engine) Touch(index int) {
	e.touch.Store(int64(max(0, index-1)))
}

// Start begins ticking; calling it on a running engine does nothing
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}
	e.cancel = e.sched.Schedule(e.tick)
}

// Stop halts ticking; a tick already running completes
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether the engine is ticking
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// tick fires the pending touch grain, then one texture grain, and returns the
// period until the next tick
func (e *Engine) tick(now time.Time) time.Duration {
	st := e.state.Load()
	at := now.Add(e.lookahead)

	if t := e.touch.Swap(-1); t >= 0 && int(t) < len(st.segments) {
		e.emit.Emit(Event{
			Segment: st.segments[t],
			Gain:    1,
			At:      at,
			Cents:   e.cents(st),
			Params:  st.params,
			Touch:   true,
		})
	}

	energy := e.Energy()
	var target float64
	if energy >= 0 {
		target = st.params.TargetLogPower(energy, st.index.MaxLogPower())
	} else {
		energy = 1
		target = st.index.uniform(st.index.MinLogPower()-3, st.index.MaxLogPower()+3)
	}

	chosen := st.index.Select(target, st.params.RandomVar)
	seg := st.segments[chosen]
	level, _ := st.index.LogPowerOf(chosen)
	gain := audio.DecibelToLinear(target - level)

	if e.onBeat != nil {
		e.onBeat(e.lookahead, chosen+1, energy)
	}

	if gain > 0 && !math.IsInf(gain, 0) {
		e.emit.Emit(Event{
			Segment: seg,
			Gain:    gain,
			At:      at,
			Cents:   e.cents(st),
			Params:  st.params,
		})
	}

	if n := e.ticks.Add(1); n <= 3 {
		log.Printf("Grain tick #%d: target=%.1fdB segment=%d gain=%.3f", n, target, chosen, gain)
	}

	period := time.Duration(st.params.Period(st.params.GrainDuration(seg)) * float64(time.Second))
	if period < minPeriod {
		period = minPeriod
	}
	return period
}

func (e *Engine) cents(st *state) float64 {
	v := st.params.ResamplingVar
	if v <= 0 {
		return 0
	}
	return st.index.uniform(-v, v)
}
