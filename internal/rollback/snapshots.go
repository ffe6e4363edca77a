package rollback

import (
	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/rollback/state"
)

type savedFrame struct {
	frame    domain.Frame
	snap     state.Snapshot
	checksum uint64
}

// snapshotRing retains the snapshot taken at the start of each frame inside
// the prediction window. An entry is only overwritten after it has been
// released.
type snapshotRing struct {
	entries []savedFrame
}

func newSnapshotRing(size int) *snapshotRing {
	r := &snapshotRing{entries: make([]savedFrame, size)}
	for i := range r.entries {
		r.entries[i].frame = domain.NullFrame
	}
	return r
}

func (r *snapshotRing) index(f domain.Frame) int {
	return int(uint32(f) % uint32(len(r.entries)))
}

// save stores the snapshot for f. It reports false if the slot still holds
// a retained snapshot of another frame.
func (r *snapshotRing) save(f domain.Frame, snap state.Snapshot, checksum uint64) bool {
	e := &r.entries[r.index(f)]
	if e.frame != domain.NullFrame && e.frame != f {
		return false
	}
	*e = savedFrame{frame: f, snap: snap, checksum: checksum}
	return true
}

func (r *snapshotRing) at(f domain.Frame) (savedFrame, bool) {
	e := r.entries[r.index(f)]
	if e.frame != f {
		return savedFrame{}, false
	}
	return e, true
}

// release drops every retained snapshot for frames up to and including
// through, and returns how many were dropped.
func (r *snapshotRing) release(through domain.Frame) int {
	n := 0
	for i := range r.entries {
		e := &r.entries[i]
		if e.frame != domain.NullFrame && e.frame <= through {
			*e = savedFrame{frame: domain.NullFrame}
			n++
		}
	}
	return n
}

func (r *snapshotRing) retained() int {
	n := 0
	for _, e := range r.entries {
		if e.frame != domain.NullFrame {
			n++
		}
	}
	return n
}
