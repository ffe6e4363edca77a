// Package session builds a rollback session from a SessionDescriptor and
// runs it frame by frame.
//
// Build validates the descriptor, binds the per-frame UDP transport and
// creates the scheduler. Each Tick drains the network, collects local
// input, advances the scheduler and sends every peer the inputs it has not
// acknowledged yet together with the newest checksum checkpoint. There is
// no retransmission: redundancy and prediction absorb packet loss.
package session
