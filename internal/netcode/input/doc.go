// Package input collects the local participant's input once per frame.
//
// A Collector reads a Source without blocking, keeps the last known value
// of any tracker that is momentarily unavailable and quantizes poses to the
// fixed-point PlayerInput layout. Cast requests are edge-triggered: each is
// delivered on exactly one collected input.
package input
