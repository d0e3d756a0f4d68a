// ABOUTME: Audio decoder package for asset loading
// ABOUTME: Provides whole-file decoders for MP3, FLAC and WAV
// Package decode turns encoded audio assets into mono audio.Buffer values.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), WAV (go-audio/wav).
// Multichannel sources are averaged down to one channel.
//
// Example:
//
//	buf, err := decode.File("assets/rain.flac")
package decode
