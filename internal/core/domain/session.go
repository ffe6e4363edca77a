package domain

import (
	"crypto/rand"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session constraints.
const (
	// MaxParticipants bounds the number of handles in one session.
	MaxParticipants = 8

	// DefaultTickRate is the simulation rate in frames per second.
	DefaultTickRate = 60

	// DefaultMaxPrediction is the default prediction window in frames.
	DefaultMaxPrediction = 8

	// MaxPredictionLimit bounds the configurable prediction window.
	MaxPredictionLimit = 32

	// MaxInputDelay bounds the configurable local input delay.
	MaxInputDelay = 16

	// DefaultChecksumInterval is the default desync checkpoint spacing.
	DefaultChecksumInterval = 30

	// SessionIDPrefix is the prefix for session IDs.
	SessionIDPrefix = "gnss-"
)

// Handle identifies a participant within a session. Handles are assigned in
// join order starting at 0 (the host) and never change during a session.
type Handle uint8

// Frame is the index of one simulation step.
type Frame int32

// NullFrame marks the absence of a frame.
const NullFrame Frame = -1

// PlayerType tells whether a participant produces input on this process.
type PlayerType uint8

const (
	// Local participants are driven by this process.
	Local PlayerType = iota
	// Remote participants are driven by a peer over the network.
	Remote
)

// String implements fmt.Stringer.
func (t PlayerType) String() string {
	switch t {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("PlayerType(%d)", uint8(t))
	}
}

// Participant is one entry of a SessionDescriptor.
type Participant struct {
	Handle Handle
	Type   PlayerType
	// Addr is the per-frame transport address "ip:port" of a Remote
	// participant. Empty for Local participants.
	Addr string
}

// LocalPlayer returns a Local participant with the given handle.
func LocalPlayer(h Handle) Participant {
	return Participant{Handle: h, Type: Local}
}

// RemotePlayer returns a Remote participant reachable at addr.
func RemotePlayer(h Handle, addr string) Participant {
	return Participant{Handle: h, Type: Remote, Addr: addr}
}

// SessionDescriptor is the static input to session construction.
type SessionDescriptor struct {
	// ID names the session in logs and journals.
	ID string

	// Participants in handle order.
	Participants []Participant

	// LocalPort is the UDP port of the per-frame transport.
	LocalPort uint16

	// TickRate is the fixed simulation rate in frames per second.
	TickRate int

	// MaxPrediction is the number of unconfirmed frames the scheduler may
	// run ahead of the slowest participant.
	MaxPrediction int

	// InputDelay postpones local input by this many frames.
	InputDelay int

	// ChecksumInterval is the desync checkpoint spacing in frames; 0 disables.
	ChecksumInterval int

	// Seed initializes the deterministic world. Every participant of a
	// session must use the same value.
	Seed uint64
}

// NewDescriptor builds a descriptor whose handles follow list order, so the
// first participant is handle 0. Handles set on the inputs are overwritten.
func NewDescriptor(localPort uint16, tickRate int, participants ...Participant) SessionDescriptor {
	ps := make([]Participant, len(participants))
	for i, p := range participants {
		p.Handle = Handle(i)
		ps[i] = p
	}
	return SessionDescriptor{
		ID:               NewSessionID(),
		Participants:     ps,
		LocalPort:        localPort,
		TickRate:         tickRate,
		MaxPrediction:    DefaultMaxPrediction,
		ChecksumInterval: DefaultChecksumInterval,
	}
}

// Validate checks the structural rules of the descriptor: a non-empty list,
// unique handles covering [0, N), at least one Local participant, parseable
// remote addresses and in-range timing settings.
func (d SessionDescriptor) Validate() error {
	n := len(d.Participants)
	if n == 0 {
		return ErrEmptyParticipants
	}
	if n > MaxParticipants {
		return ErrHandleRange.WithDetailsf("%d participants, at most %d", n, MaxParticipants)
	}

	seen := make([]bool, n)
	locals := 0
	for _, p := range d.Participants {
		if int(p.Handle) >= n {
			return ErrHandleRange.WithDetailsf("handle %d outside [0, %d)", p.Handle, n)
		}
		if seen[p.Handle] {
			return ErrDuplicateHandle.WithDetailsf("handle %d", p.Handle)
		}
		seen[p.Handle] = true

		switch p.Type {
		case Local:
			locals++
		case Remote:
			if _, err := ParseAddr(p.Addr); err != nil {
				return ErrInvalidAddress.WithDetailsf("handle %d: %q", p.Handle, p.Addr).WithCause(err)
			}
		default:
			return ErrInvalidSessionConfig.WithDetailsf("handle %d: unknown player type %d", p.Handle, p.Type)
		}
	}
	if locals == 0 {
		return ErrNoLocalParticipant
	}

	if d.TickRate <= 0 {
		return ErrInvalidSessionConfig.WithDetailsf("tick rate %d", d.TickRate)
	}
	if d.MaxPrediction < 0 || d.MaxPrediction > MaxPredictionLimit {
		return ErrInvalidSessionConfig.WithDetailsf("max prediction %d outside [0, %d]", d.MaxPrediction, MaxPredictionLimit)
	}
	if d.InputDelay < 0 || d.InputDelay > MaxInputDelay {
		return ErrInvalidSessionConfig.WithDetailsf("input delay %d outside [0, %d]", d.InputDelay, MaxInputDelay)
	}
	if d.ChecksumInterval < 0 {
		return ErrInvalidSessionConfig.WithDetailsf("checksum interval %d", d.ChecksumInterval)
	}
	return nil
}

// LocalHandles returns the handles of Local participants in ascending order.
func (d SessionDescriptor) LocalHandles() []Handle {
	var hs []Handle
	for _, p := range d.Participants {
		if p.Type == Local {
			hs = append(hs, p.Handle)
		}
	}
	slices.Sort(hs)
	return hs
}

// FrameDuration returns the wall-clock length of one frame.
func (d SessionDescriptor) FrameDuration() time.Duration {
	if d.TickRate <= 0 {
		return time.Second / DefaultTickRate
	}
	return time.Second / time.Duration(d.TickRate)
}

// ParseAddr parses an "ip:port" transport address without name resolution.
// IPv4-mapped IPv6 addresses are unmapped so they compare equal to the
// addresses reported by the socket layer.
func ParseAddr(s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return netip.AddrPort{}, err
	}
	if ap.Port() == 0 {
		return netip.AddrPort{}, fmt.Errorf("address %q: port 0", s)
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// NewSessionID generates a new session ID.
// Format: gnss-{ulid_lowercase}, 31 characters total.
func NewSessionID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return SessionIDPrefix + strings.ToLower(id.String())
}

// IsValidSessionID reports whether id has the gnss-{ulid} form.
func IsValidSessionID(id string) bool {
	if !strings.HasPrefix(id, SessionIDPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(strings.TrimPrefix(id, SessionIDPrefix)))
	return err == nil
}
