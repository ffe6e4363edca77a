package connect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformedMetadata is returned for metadata that does not start with a
// numeric token or is not UTF-8.
var ErrMalformedMetadata = errors.New("connect: malformed session metadata")

// Metadata is the setup message exchanged over a session connection: an
// opaque numeric token followed by NUL-separated entries.
type Metadata struct {
	Token   uint64
	Entries []string
}

// MarshalText encodes "<token>\x00<entry>\x00<entry>...". Entries must not
// contain NUL.
func (m Metadata) MarshalText() ([]byte, error) {
	b := strconv.AppendUint(nil, m.Token, 10)
	for _, e := range m.Entries {
		if strings.IndexByte(e, 0) >= 0 {
			return nil, fmt.Errorf("%w: entry %q contains NUL", ErrMalformedMetadata, e)
		}
		b = append(b, 0)
		b = append(b, e...)
	}
	return b, nil
}

// UnmarshalText decodes the MarshalText form.
func (m *Metadata) UnmarshalText(b []byte) error {
	if !utf8.Valid(b) {
		return fmt.Errorf("%w: not UTF-8", ErrMalformedMetadata)
	}
	parts := strings.Split(string(b), "\x00")
	token, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: token %q", ErrMalformedMetadata, parts[0])
	}
	m.Token = token
	m.Entries = nil
	if len(parts) > 1 {
		m.Entries = parts[1:]
	}
	return nil
}

// SendMetadata encodes m and sends it on c.
func SendMetadata(c *Conn, m Metadata) error {
	b, err := m.MarshalText()
	if err != nil {
		return err
	}
	return c.Send(b)
}
