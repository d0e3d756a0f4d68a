// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the mono Buffer type, decibel helpers and sample conversions
// Package audio provides the buffer type shared by the decoder, the grain
// engine, the tap renderer and the playback sink.
//
//   - Buffer: mono float32 PCM with its sample rate
//   - LinearToDecibel / PowerToDecibel / DecibelToLinear: level conversions
//   - SampleToInt16 / SampleFromInt16 / SampleFromInt: integer PCM bridges
//
// Example:
//
//	buf := audio.NewBuffer(48000, 48000) // one second of silence
//	gain := audio.DecibelToLinear(-6)    // ~0.501
package audio
