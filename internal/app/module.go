// ABOUTME: Player module routing
// ABOUTME: Resolves control messages against each module's static table and classifies failures
package app

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/nu-go/internal/metrics"
	"github.com/Resonate-Protocol/nu-go/pkg/grain"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	"github.com/Resonate-Protocol/nu-go/pkg/rendezvous"
)

// ErrUnresolvedTapList is returned when a path starts before its IR arrived
var ErrUnresolvedTapList = errors.New("unresolved tap list")

// Module is one player feature driven by control messages
type Module interface {
	Name() string
	Table() control.Table
	Handle(r control.Resolution) error
}

// Dispatch resolves args against m's table and hands the result to m
func Dispatch(m Module, args control.Args) error {
	res, err := control.Resolve(m.Table(), args)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name(), err)
	}
	if err := m.Handle(res); err != nil {
		return fmt.Errorf("%s: %w", m.Name(), err)
	}
	return nil
}

// errorKind maps an error to its metrics kind
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingAsset):
		return metrics.KindMissingAsset
	case errors.Is(err, ErrUnresolvedTapList):
		return metrics.KindUnresolvedIR
	case errors.Is(err, rendezvous.ErrMissed):
		return metrics.KindRendezvousMissed
	case errors.Is(err, grain.ErrDegenerateIndex):
		return metrics.KindDegenerateIndex
	case errors.Is(err, control.ErrUnknownName):
		return metrics.KindUnknownControl
	}
	return metrics.KindBadMessage
}
