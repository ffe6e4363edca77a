// Package world is a small deterministic duel arena used by the peer
// process and by determinism tests.
//
// Players follow their tracked poses, cast projectile spells on the cast
// flag, take damage on hits (with critical hits rolled from the frame PRNG)
// and regenerate mana. All state lives in rollback collections, so the
// world can be snapshotted, restored and replayed.
package world
