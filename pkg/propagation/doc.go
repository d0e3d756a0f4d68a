// ABOUTME: Propagation package documentation
// ABOUTME: Describes the tap model shared by the server and the offline renderer
// Package propagation models a sound moving along a timed path and reaching
// spatially distributed receivers. The result for each receiver is a sparse
// TapList that the render package convolves with an audio asset.
package propagation
