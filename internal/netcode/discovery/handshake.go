package discovery

import (
	"net/netip"
	"strconv"
	"strings"
)

// Magic tags every discovery message.
const Magic = "GOUDA"

// Handshake is the content of an announcement: the TCP port the sender
// accepts session connections on and its participant id (0 means none).
type Handshake struct {
	Port          uint16
	ParticipantID uint64
}

// Encode returns the wire form "GOUDA:<port>:<participant_id>".
func Encode(h Handshake) string {
	var b strings.Builder
	b.Grow(len(Magic) + 2 + 5 + 20)
	b.WriteString(Magic)
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(uint64(h.Port), 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(h.ParticipantID, 10))
	return b.String()
}

// Decode parses a discovery message. It reports false for anything that is
// not exactly three colon-separated fields with the magic tag and base-10
// numbers.
func Decode(s string) (Handshake, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != Magic {
		return Handshake{}, false
	}
	port, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return Handshake{}, false
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Handshake{}, false
	}
	return Handshake{Port: uint16(port), ParticipantID: id}, true
}

// Announcement is a decoded handshake and the address it came from.
type Announcement struct {
	From netip.Addr
	Handshake
}

// AddrPort returns the address to open a session connection to.
func (a Announcement) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.From, a.Port)
}
