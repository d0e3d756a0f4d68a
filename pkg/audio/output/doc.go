// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Sink interface with oto and silent implementations
// Package output plays mono buffers at precise local instants.
//
// Each Play call returns a Voice that can be re-gained or stopped while it
// sounds. Oto mixes concurrent voices in software; Null records requests for
// headless nodes.
//
// Example:
//
//	sink, err := output.NewOto(48000, 2)
//	v := sink.Play(buf, 0.8, time.Now().Add(time.Second))
//	defer v.Stop()
package output
