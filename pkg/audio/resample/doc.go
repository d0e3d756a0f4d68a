// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between sample rates and applies pitch offsets
// Package resample provides sample rate conversion and pitch shifting for mono buffers.
//
// Example:
//
//	buf = resample.Buffer(buf, 48000)
//	grain = resample.Cents(grain, 200) // one tone up, shorter
package resample
