package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// Wire format constants. Every packet starts with 'G' 'N' <version> <kind>.
const (
	Version = 1

	KindInput    byte = 1
	KindChecksum byte = 2

	// MaxInputsPerPacket keeps an input packet under a typical MTU.
	MaxInputsPerPacket = 20

	headerSize         = 4
	inputHeaderSize    = headerSize + 10
	checksumPacketSize = headerSize + 14

	// MaxPacketSize is the largest packet this codec produces.
	MaxPacketSize = inputHeaderSize + MaxInputsPerPacket*domain.InputSize
)

var (
	ErrShortPacket   = errors.New("transport: packet too short")
	ErrBadMagic      = errors.New("transport: bad packet magic")
	ErrVersion       = errors.New("transport: unsupported protocol version")
	ErrUnknownKind   = errors.New("transport: unknown packet kind")
	ErrTooManyInputs = errors.New("transport: too many inputs in packet")
)

// InputPacket carries consecutive inputs of one handle starting at Start,
// and the newest frame the sender has received from the destination.
type InputPacket struct {
	Handle domain.Handle
	Start  domain.Frame
	Ack    domain.Frame
	Inputs []domain.PlayerInput
}

// ChecksumPacket reports the sender's checksum after a confirmed frame.
type ChecksumPacket struct {
	Handle   domain.Handle
	Frame    domain.Frame
	Checksum uint64
}

func appendHeader(b []byte, kind byte) []byte {
	return append(b, 'G', 'N', Version, kind)
}

// AppendBinary appends the encoded packet to b.
func (p InputPacket) AppendBinary(b []byte) ([]byte, error) {
	if len(p.Inputs) > MaxInputsPerPacket {
		return b, fmt.Errorf("%w: %d", ErrTooManyInputs, len(p.Inputs))
	}
	b = appendHeader(b, KindInput)
	b = append(b, byte(p.Handle), byte(len(p.Inputs)))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.Start))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.Ack))
	var err error
	for _, in := range p.Inputs {
		if b, err = in.AppendBinary(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

// AppendBinary appends the encoded packet to b.
func (p ChecksumPacket) AppendBinary(b []byte) ([]byte, error) {
	b = appendHeader(b, KindChecksum)
	b = append(b, byte(p.Handle), 0)
	b = binary.LittleEndian.AppendUint32(b, uint32(p.Frame))
	b = binary.LittleEndian.AppendUint64(b, p.Checksum)
	return b, nil
}

// Kind validates the packet header and returns the packet kind.
func Kind(b []byte) (byte, error) {
	if len(b) < headerSize {
		return 0, ErrShortPacket
	}
	if b[0] != 'G' || b[1] != 'N' {
		return 0, ErrBadMagic
	}
	if b[2] != Version {
		return 0, fmt.Errorf("%w: %d", ErrVersion, b[2])
	}
	switch b[3] {
	case KindInput, KindChecksum:
		return b[3], nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, b[3])
	}
}

// DecodeInput decodes an input packet.
func DecodeInput(b []byte) (InputPacket, error) {
	kind, err := Kind(b)
	if err != nil {
		return InputPacket{}, err
	}
	if kind != KindInput {
		return InputPacket{}, fmt.Errorf("%w: %d is not an input packet", ErrUnknownKind, kind)
	}
	if len(b) < inputHeaderSize {
		return InputPacket{}, ErrShortPacket
	}
	n := int(b[5])
	if n > MaxInputsPerPacket {
		return InputPacket{}, fmt.Errorf("%w: %d", ErrTooManyInputs, n)
	}
	if len(b) != inputHeaderSize+n*domain.InputSize {
		return InputPacket{}, fmt.Errorf("%w: %d bytes for %d inputs", ErrShortPacket, len(b), n)
	}

	p := InputPacket{
		Handle: domain.Handle(b[4]),
		Start:  domain.Frame(int32(binary.LittleEndian.Uint32(b[6:]))),
		Ack:    domain.Frame(int32(binary.LittleEndian.Uint32(b[10:]))),
		Inputs: make([]domain.PlayerInput, n),
	}
	for i := range p.Inputs {
		o := inputHeaderSize + i*domain.InputSize
		if err := p.Inputs[i].UnmarshalBinary(b[o : o+domain.InputSize]); err != nil {
			return InputPacket{}, err
		}
	}
	return p, nil
}

// DecodeChecksum decodes a checksum packet.
func DecodeChecksum(b []byte) (ChecksumPacket, error) {
	kind, err := Kind(b)
	if err != nil {
		return ChecksumPacket{}, err
	}
	if kind != KindChecksum {
		return ChecksumPacket{}, fmt.Errorf("%w: %d is not a checksum packet", ErrUnknownKind, kind)
	}
	if len(b) != checksumPacketSize {
		return ChecksumPacket{}, ErrShortPacket
	}
	return ChecksumPacket{
		Handle:   domain.Handle(b[4]),
		Frame:    domain.Frame(int32(binary.LittleEndian.Uint32(b[6:]))),
		Checksum: binary.LittleEndian.Uint64(b[10:]),
	}, nil
}
