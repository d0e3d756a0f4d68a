// ABOUTME: Nu wire protocol package
// ABOUTME: Defines protocol messages and the binary IR frame
// Package protocol implements the Nu wire protocol.
//
// Text frames carry a JSON envelope {type, payload}. Binary frames start with
// a one-byte tag; MessageTypeIR frames hold an impulse response as
// little-endian float32 values.
//
// Example:
//
//	frame := protocol.EncodeIR(protocol.IR{PathID: 1, Taps: taps})
//	ir, err := protocol.DecodeIR(frame)
package protocol
