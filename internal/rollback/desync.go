package rollback

import (
	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// checkpointsKept bounds how many local checkpoints wait for remote reports.
const checkpointsKept = 16

// ChecksumReport is the checksum of the state after a confirmed frame.
type ChecksumReport struct {
	Frame    domain.Frame
	Checksum uint64
}

// desyncDetector compares confirmed-state checksums at fixed frame
// intervals. Reports may arrive before or after the local peer confirms the
// frame.
type desyncDetector struct {
	interval int

	local   map[domain.Frame]uint64
	pending map[domain.Frame]map[domain.Handle]uint64
	newest  domain.Frame
	latest  ChecksumReport
	has     bool
}

func newDesyncDetector(interval int) *desyncDetector {
	return &desyncDetector{
		interval: interval,
		local:    make(map[domain.Frame]uint64),
		pending:  make(map[domain.Frame]map[domain.Handle]uint64),
		newest:   domain.NullFrame,
	}
}

func (d *desyncDetector) enabled() bool {
	return d.interval > 0
}

func (d *desyncDetector) isCheckpoint(f domain.Frame) bool {
	return d.enabled() && int(f)%d.interval == 0
}

// confirm records the local checksum for a confirmed checkpoint frame and
// checks any remote reports that were waiting for it.
func (d *desyncDetector) confirm(f domain.Frame, checksum uint64) error {
	if !d.isCheckpoint(f) {
		return nil
	}
	d.local[f] = checksum
	d.newest = f
	d.latest = ChecksumReport{Frame: f, Checksum: checksum}
	d.has = true

	var err error
	for h, remote := range d.pending[f] {
		if remote != checksum && err == nil {
			err = desyncError(h, f, checksum, remote)
		}
	}
	delete(d.pending, f)
	d.prune()
	return err
}

// remote handles a checksum report from handle h.
func (d *desyncDetector) remote(h domain.Handle, f domain.Frame, checksum uint64) error {
	if !d.isCheckpoint(f) {
		return nil
	}
	if local, ok := d.local[f]; ok {
		if local != checksum {
			return desyncError(h, f, local, checksum)
		}
		return nil
	}
	if f <= d.newest {
		// Older than every checkpoint still kept.
		return nil
	}
	if len(d.pending) >= checkpointsKept {
		return nil
	}
	byHandle, ok := d.pending[f]
	if !ok {
		byHandle = make(map[domain.Handle]uint64)
		d.pending[f] = byHandle
	}
	byHandle[h] = checksum
	return nil
}

func (d *desyncDetector) prune() {
	oldest := d.newest - domain.Frame(checkpointsKept*d.interval)
	for f := range d.local {
		if f <= oldest {
			delete(d.local, f)
		}
	}
}

// report returns the newest local checkpoint for sending to peers.
func (d *desyncDetector) report() (ChecksumReport, bool) {
	return d.latest, d.has
}

func desyncError(h domain.Handle, f domain.Frame, local, remote uint64) error {
	return domain.ErrDesync.WithDetailsf("frame %d: local checksum %016x, handle %d reported %016x", f, local, h, remote)
}
