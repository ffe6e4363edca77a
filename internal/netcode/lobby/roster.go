package lobby

import (
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// sessionPrefix marks the roster entry carrying the host's session id. It
// always comes first.
const sessionPrefix = "session="

// sessionEntry returns the roster entry announcing session id.
func sessionEntry(id string) string {
	return sessionPrefix + id
}

// splitSession separates the leading session entry of a roster from the
// participant entries.
func splitSession(entries []string) (string, []string, error) {
	if len(entries) == 0 || !strings.HasPrefix(entries[0], sessionPrefix) {
		return "", nil, domain.ErrInvalidRoster.WithDetails("roster without session id")
	}
	id := strings.TrimPrefix(entries[0], sessionPrefix)
	if !domain.IsValidSessionID(id) {
		return "", nil, domain.ErrInvalidRoster.WithDetailsf("session id %q", id)
	}
	return id, entries[1:], nil
}

// Entry is one roster line: another participant's handle and transport
// address.
type Entry struct {
	Handle domain.Handle
	Addr   netip.AddrPort
}

// String returns the wire form "<handle>@<ip:port>".
func (e Entry) String() string {
	return strconv.Itoa(int(e.Handle)) + "@" + e.Addr.String()
}

// ParseEntry parses the String form.
func ParseEntry(s string) (Entry, error) {
	hs, addr, ok := strings.Cut(s, "@")
	if !ok {
		return Entry{}, domain.ErrInvalidRoster.WithDetailsf("entry %q has no handle", s)
	}
	h, err := strconv.ParseUint(hs, 10, 8)
	if err != nil {
		return Entry{}, domain.ErrInvalidRoster.WithDetailsf("entry %q", s).WithCause(err)
	}
	ap, err := domain.ParseAddr(addr)
	if err != nil {
		return Entry{}, domain.ErrInvalidAddress.WithDetailsf("roster entry %q", s).WithCause(err)
	}
	return Entry{Handle: domain.Handle(h), Addr: ap}, nil
}

// Participants turns the roster a participant received into its full
// participant list. The roster lists every other participant, so its own
// handle is the single one missing from [0, len(entries)].
func Participants(entries []string) ([]domain.Participant, domain.Handle, error) {
	n := len(entries) + 1
	if n > domain.MaxParticipants {
		return nil, 0, domain.ErrInvalidRoster.WithDetailsf("%d participants", n)
	}
	ps := make([]domain.Participant, 0, n)
	seen := make([]bool, n)
	for _, s := range entries {
		e, err := ParseEntry(s)
		if err != nil {
			return nil, 0, err
		}
		if int(e.Handle) >= n {
			return nil, 0, domain.ErrInvalidRoster.WithDetailsf("handle %d outside [0, %d)", e.Handle, n)
		}
		if seen[e.Handle] {
			return nil, 0, domain.ErrInvalidRoster.WithDetailsf("handle %d listed twice", e.Handle)
		}
		seen[e.Handle] = true
		ps = append(ps, domain.RemotePlayer(e.Handle, e.Addr.String()))
	}

	self := domain.Handle(slices.Index(seen, false))
	ps = append(ps, domain.LocalPlayer(self))
	slices.SortFunc(ps, func(a, b domain.Participant) int {
		return int(a.Handle) - int(b.Handle)
	})
	return ps, self, nil
}
