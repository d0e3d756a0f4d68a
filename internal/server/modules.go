// ABOUTME: Server side of the Nu modules
// ABOUTME: Stores shared params, computes path IRs and issues rendezvous commands
package server

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/nu-go/internal/metrics"
	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
)

// RendezvousLead is how far ahead of now a path is started
const RendezvousLead = 2.0

// Hub delivers messages to connected clients
type Hub interface {
	// Broadcast sends msg to every client of role; an empty role means everyone
	Broadcast(role string, msg protocol.Message)
	// Send sends msg to the client of role with the given index
	Send(role string, index int, msg protocol.Message) error
	// SendBinary sends a binary frame to player index
	SendBinary(index int, frame []byte) error
}

type param struct {
	name  string
	value interface{}
}

// paramSet keeps param values in declaration order
type paramSet struct {
	names  []string
	values map[string]interface{}
}

func newParamSet(defaults ...param) *paramSet {
	ps := &paramSet{values: make(map[string]interface{}, len(defaults))}
	for _, p := range defaults {
		ps.names = append(ps.names, p.name)
		ps.values[p.name] = p.value
	}
	return ps
}

func (ps *paramSet) float(name string) float64 {
	f, err := control.ToFloat(ps.values[name])
	if err != nil {
		return 0
	}
	return f
}

var (
	mainTable = control.Table{Commands: []string{"updateRequest"}}

	pathServerTable = control.Table{
		Params: []string{
			"masterGain", "propagationSpeed", "propagationGain", "propagationRxMinGain",
			"audioFileId", "perc", "loop", "accSlope", "timeBound",
		},
		Commands: []string{"setPath", "startPath", "reset"},
	}

	grainServerTable = control.Table{
		Params:   []string{"gain", "audioFileId", "enable", "override", "energy", "randomVar", "engineParams"},
		Commands: []string{"reset", "touch"},
	}

	groupsServerTable = control.Table{
		Commands: []string{"onOff", "volume", "localVolume", "linkPlayerToGroup", "loop"},
	}
)

// Coordinator runs the server half of every module
type Coordinator struct {
	hub      Hub
	clock    rendezvous.SharedClock
	registry *Registry
	metrics  *metrics.Metrics

	mu           sync.Mutex
	path         *paramSet
	grain        *paramSet
	engineParams *paramSet
}

// NewCoordinator creates the modules with their defaults, overridden by setup
func NewCoordinator(hub Hub, clock rendezvous.SharedClock, registry *Registry, m *metrics.Metrics, setup *Setup) *Coordinator {
	c := &Coordinator{
		hub:      hub,
		clock:    clock,
		registry: registry,
		metrics:  m,
		path: newParamSet(
			param{"masterGain", 1.0},
			param{"propagationSpeed", 1.0},
			param{"propagationGain", 0.9},
			param{"propagationRxMinGain", 0.01},
			param{"audioFileId", 0.0},
			param{"perc", 1.0},
			param{"loop", true},
			param{"accSlope", 0.0},
			param{"timeBound", 0.0},
		),
		grain: newParamSet(
			param{"gain", 1.0},
			param{"audioFileId", 0.0},
			param{"enable", 0.0},
			param{"override", 1.0},
			param{"energy", 0.0},
			param{"randomVar", 1.0},
		),
		engineParams: newParamSet(),
	}

	if setup != nil {
		for module, values := range setup.Params {
			for name, v := range values {
				args := append(control.Args{name}, flatten(v)...)
				if err := c.Handle(protocol.Control{Module: module, Args: args}); err != nil {
					log.Printf("Ignoring setup param %s.%s: %v", module, name, err)
				}
			}
		}
	}
	return c
}

// Handle runs one control message addressed to the server
func (c *Coordinator) Handle(ctrl protocol.Control) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch ctrl.Module {
	case protocol.ModuleMain:
		err = c.handleMain(ctrl.Args)
	case protocol.ModulePath:
		err = c.handlePath(ctrl.Args)
	case protocol.ModuleGrain:
		err = c.handleGrain(ctrl.Args)
	case protocol.ModuleGroups:
		if _, err = control.Resolve(groupsServerTable, ctrl.Args); err == nil {
			c.broadcast(ctrl.Module, ctrl.Args)
		}
	default:
		err = fmt.Errorf("%w: module %q", control.ErrUnknownName, ctrl.Module)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", ctrl.Module, err)
	}
	return nil
}

func (c *Coordinator) handleMain(args control.Args) error {
	if _, err := control.Resolve(mainTable, args); err != nil {
		return err
	}
	// updateRequest is the only command
	c.hub.Broadcast(protocol.RoleController, protocol.Message{
		Type:    protocol.TypePositions,
		Payload: c.registry.Positions(),
	})
	return nil
}

func (c *Coordinator) handlePath(args control.Args) error {
	res, err := control.Resolve(pathServerTable, args)
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case control.Param:
		c.path.values[r.Name] = r.Value
		c.broadcast(protocol.ModulePath, args)
	case control.Command:
		switch r.Name {
		case "setPath":
			return c.setPath(r.Args)
		case "startPath":
			id, err := r.Args.Int(0)
			if err != nil {
				return fmt.Errorf("startPath: %w", err)
			}
			at := c.clock.Now() + RendezvousLead
			c.broadcast(protocol.ModulePath, control.Args{"startPath", id, at})
			log.Printf("Path %d starts at shared time %.3f", id, at)
		case "reset":
			c.broadcast(protocol.ModulePath, control.Args{"reset"})
		}
	}
	return nil
}

// setPath computes the IR of every placed player and sends each its own
func (c *Coordinator) setPath(args control.Args) error {
	values, err := args.Floats(0)
	if err != nil {
		return fmt.Errorf("setPath: %w", err)
	}
	if len(values) == 0 {
		return fmt.Errorf("setPath: missing path id")
	}
	pathID := int(values[0])

	path, err := propagation.ParsePath(values[1:])
	if err != nil {
		return fmt.Errorf("setPath: %w", err)
	}

	receivers := c.registry.Snapshot()
	irs := propagation.Compute(path, receivers, propagation.Params{
		Speed:          c.path.float("propagationSpeed"),
		Gain:           c.path.float("propagationGain"),
		MinAudibleGain: c.path.float("propagationRxMinGain"),
	})
	c.metrics.SetReceivers(len(receivers))

	for _, rx := range receivers {
		tl := irs[rx.ID]
		c.metrics.Taps(len(tl.Taps))
		if err := c.hub.SendBinary(rx.ID, protocol.EncodeIR(protocol.NewIR(pathID, tl))); err != nil {
			log.Printf("Failed to send IR of path %d to player %d: %v", pathID, rx.ID, err)
		}
	}

	log.Printf("Path %d: %d points, IRs sent to %d players", pathID, len(path), len(receivers))
	return nil
}

func (c *Coordinator) handleGrain(args control.Args) error {
	res, err := control.Resolve(grainServerTable, args)
	if err != nil {
		return err
	}

	if p, ok := res.(control.Param); ok {
		if p.Name == "engineParams" {
			pair, ok := p.Value.([]interface{})
			if !ok || len(pair) != 2 {
				return fmt.Errorf("engineParams needs a name and a value, got %v", p.Value)
			}
			name, _ := control.Args(pair).String(0)
			if _, seen := c.engineParams.values[name]; !seen {
				c.engineParams.names = append(c.engineParams.names, name)
			}
			c.engineParams.values[name] = pair[1]
		} else {
			c.grain.values[p.Name] = p.Value
		}
	}

	c.broadcast(protocol.ModuleGrain, args)
	return nil
}

// EnterPlayer replays the current params to a new player, then resets its
// grain engine so they take effect
func (c *Coordinator) EnterPlayer(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var msgs []protocol.Control
	for _, name := range c.path.names {
		msgs = append(msgs, controlMsg(protocol.ModulePath, append(control.Args{name}, flatten(c.path.values[name])...)))
	}
	for _, name := range c.grain.names {
		msgs = append(msgs, controlMsg(protocol.ModuleGrain, append(control.Args{name}, flatten(c.grain.values[name])...)))
	}
	for _, name := range c.engineParams.names {
		msgs = append(msgs, controlMsg(protocol.ModuleGrain, control.Args{"engineParams", name, c.engineParams.values[name]}))
	}
	msgs = append(msgs, controlMsg(protocol.ModuleGrain, control.Args{"reset"}))

	for _, m := range msgs {
		if err := c.hub.Send(protocol.RolePlayer, index, protocol.Message{Type: protocol.TypeControl, Payload: m}); err != nil {
			log.Printf("Failed to initialize player %d: %v", index, err)
			return
		}
	}
}

// Forward broadcasts a control message to every player unchanged
func (c *Coordinator) Forward(ctrl protocol.Control) {
	c.hub.Broadcast(protocol.RolePlayer, protocol.Message{Type: protocol.TypeControl, Payload: ctrl})
}

func (c *Coordinator) broadcast(module string, args control.Args) {
	c.Forward(controlMsg(module, args))
}

func controlMsg(module string, args control.Args) protocol.Control {
	return protocol.Control{Module: module, Args: []interface{}(args)}
}

// flatten expands a multi-value param into its values
func flatten(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}
