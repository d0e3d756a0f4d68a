// ABOUTME: Player groups module
// ABOUTME: Runs one shared-time looping source per group with group, link and local gains
package app

import (
	"fmt"

	"github.com/Resonate-Protocol/nu-go/internal/ui"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
)

// AllPlayers addresses a groups message to every player
const AllPlayers = -1

var groupsTable = control.Table{
	Commands: []string{"onOff", "volume", "localVolume", "linkPlayerToGroup", "loop"},
}

// group is keyed by the id of the asset it plays
type group struct {
	gain     float64
	link     float64
	loop     bool
	playback *rendezvous.Playback
}

// GroupsModule plays assets in sync across groups of players. Messages carry
// the addressed player index first.
type GroupsModule struct {
	assets   *Assets
	sched    *rendezvous.Scheduler
	feedback ui.Feedback

	index     int
	localGain float64
	groups    map[int]*group
}

// NewGroupsModule creates the module around its own rendezvous scheduler
func NewGroupsModule(assets *Assets, sched *rendezvous.Scheduler, fb ui.Feedback) *GroupsModule {
	return &GroupsModule{
		assets:    assets,
		sched:     sched,
		feedback:  fb,
		index:     AllPlayers,
		localGain: 1,
		groups:    make(map[int]*group),
	}
}

func (g *GroupsModule) Name() string         { return protocol.ModuleGroups }
func (g *GroupsModule) Table() control.Table { return groupsTable }

// SetIndex sets the player index messages are filtered on
func (g *GroupsModule) SetIndex(index int) {
	g.index = index
}

// Handle runs a groups command addressed to this player
func (g *GroupsModule) Handle(r control.Resolution) error {
	cmd, ok := r.(control.Command)
	if !ok {
		return nil
	}

	player, err := cmd.Args.Int(0)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if player != g.index && player != AllPlayers {
		return nil
	}

	if cmd.Name == "localVolume" {
		v, err := cmd.Args.Float(1)
		if err != nil {
			return fmt.Errorf("localVolume: %w", err)
		}
		g.SetLocalVolume(v)
		return nil
	}

	id, err := cmd.Args.Int(1)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	v, err := cmd.Args.Float(2)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}

	grp := g.group(id)
	switch cmd.Name {
	case "onOff":
		if v == 0 {
			g.stop(grp)
			return nil
		}
		return g.start(id, grp, v)
	case "volume":
		grp.gain = v
		g.applyGain(grp)
	case "linkPlayerToGroup":
		grp.link = v
		g.applyGain(grp)
	case "loop":
		// takes effect on the next start
		grp.loop = v != 0
	}
	return nil
}

func (g *GroupsModule) group(id int) *group {
	grp, ok := g.groups[id]
	if !ok {
		grp = &group{gain: 0, link: 1}
		g.groups[id] = grp
	}
	return grp
}

// start plays the group's asset as if it began at shared time at
func (g *GroupsModule) start(id int, grp *group, at float64) error {
	asset, err := g.assets.Get(id)
	if err != nil {
		return err
	}

	g.stop(grp)
	grp.playback = g.sched.Join(at, asset.Buffer, g.gainOf(grp), grp.loop)
	g.feedback.Enable()
	return nil
}

func (g *GroupsModule) stop(grp *group) {
	if grp.playback == nil {
		return
	}
	g.sched.Stop(grp.playback)
	grp.playback = nil
	g.feedback.Disable()
}

// SetLocalVolume scales every group on this player
func (g *GroupsModule) SetLocalVolume(v float64) {
	g.localGain = v
	for _, grp := range g.groups {
		g.applyGain(grp)
	}
}

func (g *GroupsModule) gainOf(grp *group) float64 {
	return grp.gain * grp.link * g.localGain
}

func (g *GroupsModule) applyGain(grp *group) {
	if grp.playback != nil {
		grp.playback.Voice.SetGain(g.gainOf(grp))
	}
}

// Playing returns how many groups are sounding
func (g *GroupsModule) Playing() int {
	n := 0
	for _, grp := range g.groups {
		if grp.playback != nil {
			n++
		}
	}
	return n
}

// Close stops every group
func (g *GroupsModule) Close() {
	for _, grp := range g.groups {
		g.stop(grp)
	}
}
