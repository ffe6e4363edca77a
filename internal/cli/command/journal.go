package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/rollback"
	"github.com/yndnr/goudanet-go/internal/sim/world"
	"github.com/yndnr/goudanet-go/internal/storage/journal"
)

// exitMismatch is the exit code of a replay that diverged.
const exitMismatch = 2

// ReplayCommand re-simulates journals and compares checksums.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Verify journals by re-simulating every confirmed frame",
		ArgsUsage: "FILE|SESSION_ID...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Journal directory for session id arguments",
				Value: ".",
			},
		},
		Action: replay,
	}
}

// JournalCommand returns the journal subcommand group.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Journal directory management",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the journals in a directory",
				ArgsUsage: "DIR",
				Action:    journalList,
			},
			{
				Name:      "prune",
				Usage:     "Remove all but the newest journals",
				ArgsUsage: "DIR",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of journals to keep",
						Value: journal.DefaultRetainCount,
					},
				},
				Action: journalPrune,
			},
		},
	}
}

// newWorld is the game factory for journals recorded by goudanet-peer.
func newWorld(h journal.Header) (rollback.Game, error) {
	return world.New(h.Seed, h.Handles)
}

type replayRow struct {
	File      string `yaml:"file" json:"file"`
	SessionID string `yaml:"session_id" json:"session_id"`
	Handles   int    `yaml:"handles" json:"handles"`
	Frames    int    `yaml:"frames" json:"frames"`
	Result    string `yaml:"result" json:"result"`
	Mismatch  string `yaml:"mismatch,omitempty" json:"mismatch,omitempty" table:"wide"`
}

func replay(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("replay: FILE is required", 1)
	}

	var rows []replayRow
	failed := 0
	for _, arg := range c.Args().Slice() {
		path := journalPath(arg, c.String("dir"))
		h, res, err := journal.ReplayFile(path, newWorld)
		row := replayRow{File: path, SessionID: h.SessionID, Handles: h.Handles, Frames: res.Frames, Result: "ok"}
		switch {
		case err == nil:
		case errors.Is(err, journal.ErrReplayMismatch):
			row.Result = "mismatch"
			row.Mismatch = fmt.Sprintf("frame %d: recorded %016x, replayed %016x", res.Mismatch, res.Want, res.Got)
			failed++
		default:
			row.Result = "error: " + err.Error()
			failed++
		}
		rows = append(rows, row)
	}

	if err := render(c, rows); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("replay: %d of %d journals failed", failed, len(rows)), exitMismatch)
	}
	return nil
}

type journalRow struct {
	SessionID string    `yaml:"session_id" json:"session_id"`
	Created   time.Time `yaml:"created" json:"created"`
	Size      int64     `yaml:"size" json:"size"`
	Path      string    `yaml:"path" json:"path" table:"wide"`
}

func journalList(c *cli.Context) error {
	dir, err := dirArg(c)
	if err != nil {
		return err
	}
	infos, err := journal.List(dir)
	if err != nil {
		return err
	}
	rows := make([]journalRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, journalRow{
			SessionID: info.SessionID,
			Created:   info.Created.UTC(),
			Size:      info.Size,
			Path:      info.Path,
		})
	}
	return render(c, rows)
}

func journalPrune(c *cli.Context) error {
	dir, err := dirArg(c)
	if err != nil {
		return err
	}
	keep := c.Int("keep")
	if keep < 1 {
		return cli.Exit("journal prune: --keep must be at least 1", 1)
	}
	removed, err := journal.Prune(dir, keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d journals\n", len(removed))
	return nil
}

func dirArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(c.Command.FullName()+": exactly one DIR argument is required", 1)
	}
	return c.Args().First(), nil
}

// journalPath resolves a replay argument: a session id names a journal in
// dir, anything else is a path.
func journalPath(arg, dir string) string {
	if domain.IsValidSessionID(arg) {
		return filepath.Join(dir, journal.FileName(arg))
	}
	return arg
}
