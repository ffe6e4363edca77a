// Package state is the deterministic state store the rollback scheduler
// drives.
//
// A Store aggregates Collections, each owning one piece of simulation state
// with its own typed capture, into an opaque composite Snapshot keyed by
// collection id. Systems registered on the store run in registration order
// on every Advance. Given the same snapshot and the same inputs, Advance
// produces the same state on every peer; systems must read time and
// randomness only from the AdvanceContext.
package state
