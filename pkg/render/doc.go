// ABOUTME: Render package documentation
// ABOUTME: Tap convolution used by players and the offline render tool
// Package render turns a propagation.TapList and an audio asset into the
// buffer a receiver plays.
package render
