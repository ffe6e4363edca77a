package discovery

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAnnounceInterval is how often a participant repeats its handshake.
const DefaultAnnounceInterval = 500 * time.Millisecond

// pollBuffer bounds announcements received but not yet polled.
const pollBuffer = 64

// Source announces this participant and reports the others.
type Source interface {
	// Announce sends one handshake.
	Announce(participantID uint64, tcpPort uint16) error

	// Poll returns the next received announcement without blocking.
	Poll() (Announcement, bool)

	Close() error
}

// AnnounceLoop announces on src at the given interval until ctx is done.
// Send failures are logged to log and the loop keeps going; later
// announcements cover a lost one. A nil log means slog.Default().
func AnnounceLoop(ctx context.Context, log *slog.Logger, src Source, interval time.Duration, participantID uint64, tcpPort uint16) error {
	if interval <= 0 {
		interval = DefaultAnnounceInterval
	}
	if log == nil {
		log = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := src.Announce(participantID, tcpPort); err != nil {
			log.Debug("announce failed",
				"error", err,
				"participant_id", participantID,
			)
		}
	}
}

// offer delivers a to ch without blocking. It reports false when ch is full.
func offer(ch chan Announcement, a Announcement) bool {
	select {
	case ch <- a:
		return true
	default:
		return false
	}
}

// poll receives from ch without blocking.
func poll(ch chan Announcement) (Announcement, bool) {
	select {
	case a, ok := <-ch:
		return a, ok
	default:
		return Announcement{}, false
	}
}
