package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// DefaultRetainCount is the default number of journals kept by Prune.
const DefaultRetainCount = 20

// Info describes a journal file in a directory.
type Info struct {
	Path      string
	SessionID string
	Created   time.Time
	Size      int64
}

// List returns the journals in dir, oldest first. The creation time comes
// from the ULID in the session id.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: read dir: %w", err)
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExtension) {
			continue
		}
		sid := strings.TrimSuffix(e.Name(), FileExtension)
		id, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(sid, domain.SessionIDPrefix)))
		if err != nil || !strings.HasPrefix(sid, domain.SessionIDPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Path:      filepath.Join(dir, e.Name()),
			SessionID: sid,
			Created:   ulid.Time(id.Time()),
			Size:      fi.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// Prune removes all but the newest keep journals in dir and returns the
// removed paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		keep = DefaultRetainCount
	}
	infos, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}

	var removed []string
	for _, info := range infos[:len(infos)-keep] {
		if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("journal: remove %s: %w", info.Path, err)
		}
		removed = append(removed, info.Path)
	}
	return removed, nil
}
