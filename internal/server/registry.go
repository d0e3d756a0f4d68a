// ABOUTME: Receiver position registry
// ABOUTME: Keeps connected player positions ordered by index for snapshots
package server

import (
	"sync"

	"github.com/google/btree"

	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
)

const registryDegree = 8

func receiverLess(a, b propagation.Receiver) bool {
	return a.ID < b.ID
}

// Registry holds the position of every placed player
type Registry struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[propagation.Receiver]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tree: btree.NewG(registryDegree, receiverLess)}
}

// Set places player index at pos
func (r *Registry) Set(index int, pos propagation.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree.ReplaceOrInsert(propagation.Receiver{ID: index, Pos: pos})
}

// Remove forgets player index
func (r *Registry) Remove(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree.Delete(propagation.Receiver{ID: index})
}

// Get returns the position of player index
func (r *Registry) Get(index int) (propagation.Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rx, ok := r.tree.Get(propagation.Receiver{ID: index})
	return rx.Pos, ok
}

// Len returns the number of placed players
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Len()
}

// Snapshot copies every receiver in index order
func (r *Registry) Snapshot() []propagation.Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]propagation.Receiver, 0, r.tree.Len())
	r.tree.Ascend(func(rx propagation.Receiver) bool {
		out = append(out, rx)
		return true
	})
	return out
}

// Positions returns the snapshot as a wire message
func (r *Registry) Positions() protocol.Positions {
	snap := r.Snapshot()
	players := make([]protocol.PlayerPosition, 0, len(snap))
	for _, rx := range snap {
		players = append(players, protocol.PlayerPosition{Index: rx.ID, X: rx.Pos.X, Y: rx.Pos.Y})
	}
	return protocol.Positions{Players: players}
}
