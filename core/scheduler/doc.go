// Package scheduler drives the control pipeline at the configured sample
// frequency and runs the fast monitoring tick in between. A single goroutine
// owns both, so pipeline state never interleaves mid-mutation; the
// optimization cadence is enforced inside the controller itself.
package scheduler
