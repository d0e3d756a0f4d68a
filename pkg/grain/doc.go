// ABOUTME: Granular engine package documentation
// ABOUTME: Loudness-indexed grain selection driven by an energy signal
// Package grain implements loudness-driven granular playback.
//
// Segments of an audio asset are indexed by log-power. On every tick the
// Engine turns a continuous energy signal into a target loudness, picks the
// closest segment (with bounded random jitter) and emits a gain-compensated
// grain. A one-shot touch grain can be queued in between.
//
// The Engine owns no clock: it is driven by a Scheduler that calls back with
// the local time and waits for the period the callback returns.
package grain
