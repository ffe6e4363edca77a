package journal

import (
	"errors"
	"fmt"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/rollback"
)

// ErrReplayMismatch is returned when a replayed frame produces a different
// checksum than the one recorded.
var ErrReplayMismatch = errors.New("journal: replay checksum mismatch")

// GameFactory creates a fresh game for the session described by h.
type GameFactory func(h Header) (rollback.Game, error)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	// Frames is the number of frames replayed.
	Frames int

	// Mismatch is the first frame whose checksum differed, or NullFrame.
	Mismatch domain.Frame
	Want     uint64
	Got      uint64
}

// Replay re-simulates the recorded frames on a fresh game and compares each
// checksum with the recorded one. It stops at the first mismatch.
func Replay(h Header, frames []Frame, newGame GameFactory) (ReplayResult, error) {
	res := ReplayResult{Mismatch: domain.NullFrame}
	game, err := newGame(h)
	if err != nil {
		return res, fmt.Errorf("journal: create game: %w", err)
	}

	for i, f := range frames {
		if f.Frame != domain.Frame(i) {
			return res, fmt.Errorf("%w: frame %d at position %d", ErrCorruptedEntry, f.Frame, i)
		}
		if len(f.Inputs) != h.Handles {
			return res, fmt.Errorf("%w: frame %d has %d inputs for %d handles", ErrCorruptedEntry, f.Frame, len(f.Inputs), h.Handles)
		}
		if err := game.Advance(f.Frame, f.Inputs); err != nil {
			return res, fmt.Errorf("journal: advance frame %d: %w", f.Frame, err)
		}
		res.Frames++
		if got := game.Checksum(); got != f.Checksum {
			res.Mismatch, res.Want, res.Got = f.Frame, f.Checksum, got
			return res, fmt.Errorf("%w: frame %d: recorded %016x, replayed %016x", ErrReplayMismatch, f.Frame, f.Checksum, got)
		}
	}
	return res, nil
}

// ReplayFile opens the journal at path and replays it.
func ReplayFile(path string, newGame GameFactory) (Header, ReplayResult, error) {
	r, err := Open(path)
	if err != nil {
		return Header{}, ReplayResult{Mismatch: domain.NullFrame}, err
	}
	defer r.Close()

	frames, err := r.ReadAll()
	if err != nil {
		return r.Header(), ReplayResult{Mismatch: domain.NullFrame}, err
	}
	res, err := Replay(r.Header(), frames, newGame)
	return r.Header(), res, err
}
