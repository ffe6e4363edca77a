package main

import (
	"log/slog"
	"sync"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/peer/config"
	"github.com/yndnr/goudanet-go/internal/rollback"
	"github.com/yndnr/goudanet-go/internal/storage/journal"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// recorder writes confirmed frames to the session journal. A nil recorder
// drops frames.
type recorder struct {
	w      *journal.Writer
	dir    string
	retain int
	log    *slog.Logger

	once sync.Once
}

func openRecorder(cfg *config.PeerConfig, desc domain.SessionDescriptor, metrics *metric.Registry, log *slog.Logger) (*recorder, error) {
	jc := cfg.JournalConfig(metrics)
	jc.Logger = log
	w, err := journal.NewWriter(jc, journal.HeaderFor(desc))
	if err != nil {
		return nil, err
	}
	log.Info("recording journal", "path", w.Path())
	return &recorder{w: w, dir: cfg.Journal.Dir, retain: cfg.Journal.Retain, log: log}, nil
}

// Append records f. After the first failure the recorder stops and the
// session keeps running.
func (r *recorder) Append(f rollback.ConfirmedFrame) {
	if r == nil || r.w == nil {
		return
	}
	if err := r.w.Append(journal.Frame{Frame: f.Frame, Inputs: f.Inputs, Checksum: f.Checksum}); err != nil {
		r.once.Do(func() {
			r.log.Error("journal append failed, recording stopped", "error", err, "frame", f.Frame)
		})
		r.w.Close()
		r.w = nil
	}
}

// Close seals the journal and prunes old ones.
func (r *recorder) Close() {
	if r.w != nil {
		if err := r.w.Close(); err != nil {
			r.log.Error("journal close failed", "error", err)
		} else {
			r.log.Info("journal sealed", "path", r.w.Path(), "frames", r.w.Frames())
		}
	}
	removed, err := journal.Prune(r.dir, r.retain)
	if err != nil {
		r.log.Warn("journal prune failed", "error", err)
	}
	if len(removed) > 0 {
		r.log.Debug("journals pruned", "count", len(removed))
	}
}
