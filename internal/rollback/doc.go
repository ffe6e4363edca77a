// Package rollback implements the rollback scheduler.
//
// Each frame the scheduler takes the local participants' inputs, predicts
// any remote input that has not arrived by holding that participant's last
// confirmed input, saves a snapshot and advances the Game. When a real
// remote input later disagrees with its prediction, the scheduler restores
// the snapshot of the first wrong frame and replays every frame up to the
// present with the corrected inputs, in the same tick.
//
// A frame moves through Pending (not yet simulated), Predicted (simulated
// with at least one predicted input), Confirmed (every input real and the
// frame simulated with them) and Discarded (confirmed and older than the
// prediction window, its snapshot released).
//
// The scheduler is not safe for concurrent use; it is owned by the
// simulation goroutine.
package rollback
