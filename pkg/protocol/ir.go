// ABOUTME: Binary impulse-response frame codec
// ABOUTME: Encodes tap lists as a tag byte followed by little-endian float32 values
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
)

// MessageTypeIR tags binary frames carrying an impulse response
const MessageTypeIR = 8

// ErrShortFrame is returned for frames too small to hold an IR header
var ErrShortFrame = errors.New("binary frame too short")

// IRTap is one (delay, gain) pair
type IRTap struct {
	Time float64
	Gain float64
}

// IR is the payload [pathId, minTime, t0, g0, t1, g1, ...]
type IR struct {
	PathID  int
	MinTime float64
	Taps    []IRTap
}

// EncodeIR serializes ir as a binary frame
func EncodeIR(ir IR) []byte {
	values := make([]float32, 0, 2+2*len(ir.Taps))
	values = append(values, float32(ir.PathID), float32(ir.MinTime))
	for _, tap := range ir.Taps {
		values = append(values, float32(tap.Time), float32(tap.Gain))
	}

	frame := make([]byte, 1+4*len(values))
	frame[0] = MessageTypeIR
	for i, v := range values {
		binary.LittleEndian.PutUint32(frame[1+4*i:], math.Float32bits(v))
	}
	return frame
}

// DecodeIR parses a binary frame. A frame with no taps decodes to a single
// (0, 0) placeholder so the receiver still renders a silent buffer.
func DecodeIR(frame []byte) (IR, error) {
	if len(frame) < 1+8 {
		return IR{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if frame[0] != MessageTypeIR {
		return IR{}, fmt.Errorf("unexpected binary message type %d", frame[0])
	}

	body := frame[1:]
	if len(body)%4 != 0 {
		return IR{}, fmt.Errorf("IR payload not float32 aligned: %d bytes", len(body))
	}

	values := make([]float64, len(body)/4)
	for i := range values {
		values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:])))
	}

	ir := IR{
		PathID:  int(values[0]),
		MinTime: values[1],
	}
	rest := values[2:]
	for i := 0; i+1 < len(rest); i += 2 {
		ir.Taps = append(ir.Taps, IRTap{Time: rest[i], Gain: rest[i+1]})
	}
	if len(ir.Taps) == 0 {
		ir.Taps = []IRTap{{Time: 0, Gain: 0}}
	}
	return ir, nil
}

// NewIR builds the IR of one receiver from its tap list
func NewIR(pathID int, tl propagation.TapList) IR {
	ir := IR{PathID: pathID, MinTime: tl.MinTime, Taps: make([]IRTap, 0, len(tl.Taps))}
	for _, tap := range tl.Taps {
		ir.Taps = append(ir.Taps, IRTap{Time: tap.Delay, Gain: tap.Gain})
	}
	return ir
}

// TapList converts the IR back into a tap list. Delays arrive with the
// path's minimum time already removed.
func (ir IR) TapList() propagation.TapList {
	tl := propagation.TapList{
		Taps:    make([]propagation.Tap, 0, len(ir.Taps)),
		MinTime: ir.MinTime,
	}
	for _, tap := range ir.Taps {
		tl.Taps = append(tl.Taps, propagation.Tap{Delay: tap.Time, Gain: tap.Gain})
		if tap.Time > tl.Duration {
			tl.Duration = tap.Time
		}
	}
	return tl
}
