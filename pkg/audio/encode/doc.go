// ABOUTME: Audio encoder package
// ABOUTME: Float buffers to PCM bytes for playback and WAV files for offline renders
// Package encode converts mono float buffers into the integer formats consumed
// by the playback sink (PCM16) and the offline renderer (WAV).
package encode
