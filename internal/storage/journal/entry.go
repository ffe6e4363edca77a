package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// File format constants.
const (
	FileExtension   = ".gnj"
	MagicBytes      = "GNJRNL\x00\x01"
	MagicBytesSize  = 8
	ChecksumSize    = 32
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750

	// headerSize is length (4) + crc (4).
	headerSize = 8

	// framePrefixSize is frame (4) + checksum (8) + input count (1).
	framePrefixSize = 13
)

var (
	ErrCorruptedEntry   = errors.New("journal: corrupted entry")
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")
	ErrInvalidEntryType = errors.New("journal: invalid entry type")
	ErrInvalidMagic     = errors.New("journal: invalid magic bytes")
	ErrMissingHeader    = errors.New("journal: missing session header")
)

// EntryType tags each record.
type EntryType uint8

const (
	EntryTypeUnspecified EntryType = iota
	EntryTypeHeader
	EntryTypeFrame
)

// Header describes the session a journal belongs to. It is the first entry
// of every journal.
type Header struct {
	SessionID        string    `json:"sid"`
	Seed             uint64    `json:"seed"`
	Handles          int       `json:"handles"`
	TickRate         int       `json:"tick_rate"`
	ChecksumInterval int       `json:"checksum_interval,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// HeaderFor returns the journal header of a session descriptor.
func HeaderFor(d domain.SessionDescriptor) Header {
	return Header{
		SessionID:        d.ID,
		Seed:             d.Seed,
		Handles:          len(d.Participants),
		TickRate:         d.TickRate,
		ChecksumInterval: d.ChecksumInterval,
		CreatedAt:        time.Now().UTC(),
	}
}

// Frame is one confirmed frame: the inputs of every handle and the state
// checksum after the frame.
type Frame struct {
	Frame    domain.Frame
	Inputs   []domain.PlayerInput
	Checksum uint64
}

// encodeFrame builds [length][crc32][type][payload]. length covers
// crc + type + payload; crc covers type + payload; both big endian.
func encodeFrame(t EntryType, payload []byte) []byte {
	out := make([]byte, headerSize, headerSize+1+len(payload))
	out = append(out, byte(t))
	out = append(out, payload...)
	binary.BigEndian.PutUint32(out[0:4], uint32(4+1+len(payload)))
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(out[headerSize:]))
	return out
}

// decodeFrame checks a [crc32][type][payload] frame.
func decodeFrame(frame []byte) (EntryType, []byte, error) {
	if len(frame) < 5 {
		return 0, nil, ErrCorruptedEntry
	}
	if crc32.ChecksumIEEE(frame[4:]) != binary.BigEndian.Uint32(frame[:4]) {
		return 0, nil, ErrChecksumMismatch
	}
	t := EntryType(frame[4])
	switch t {
	case EntryTypeHeader, EntryTypeFrame:
	default:
		return 0, nil, fmt.Errorf("%w: %d", ErrInvalidEntryType, t)
	}
	return t, frame[5:], nil
}

func encodeHeader(h Header) ([]byte, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal header: %w", err)
	}
	return encodeFrame(EntryTypeHeader, payload), nil
}

func decodeHeader(payload []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(payload, &h); err != nil {
		return Header{}, fmt.Errorf("journal: unmarshal header: %w", err)
	}
	return h, nil
}

func encodeConfirmed(f Frame) ([]byte, error) {
	if len(f.Inputs) > domain.MaxParticipants {
		return nil, fmt.Errorf("journal: %d inputs in frame %d", len(f.Inputs), f.Frame)
	}
	payload := make([]byte, 0, framePrefixSize+len(f.Inputs)*domain.InputSize)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(f.Frame))
	payload = binary.LittleEndian.AppendUint64(payload, f.Checksum)
	payload = append(payload, byte(len(f.Inputs)))
	var err error
	for _, in := range f.Inputs {
		if payload, err = in.AppendBinary(payload); err != nil {
			return nil, err
		}
	}
	return encodeFrame(EntryTypeFrame, payload), nil
}

func decodeConfirmed(payload []byte) (Frame, error) {
	if len(payload) < framePrefixSize {
		return Frame{}, ErrCorruptedEntry
	}
	n := int(payload[12])
	if len(payload) != framePrefixSize+n*domain.InputSize {
		return Frame{}, fmt.Errorf("%w: %d bytes for %d inputs", ErrCorruptedEntry, len(payload), n)
	}
	f := Frame{
		Frame:    domain.Frame(int32(binary.LittleEndian.Uint32(payload[0:]))),
		Checksum: binary.LittleEndian.Uint64(payload[4:]),
		Inputs:   make([]domain.PlayerInput, n),
	}
	for i := range f.Inputs {
		o := framePrefixSize + i*domain.InputSize
		if err := f.Inputs[i].UnmarshalBinary(payload[o : o+domain.InputSize]); err != nil {
			return Frame{}, err
		}
	}
	return f, nil
}
