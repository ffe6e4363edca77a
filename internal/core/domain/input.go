package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Fixed-point scales used by PlayerInput.
const (
	// PositionScale converts metres to the int32 millimetre representation.
	PositionScale = 1000

	// OrientationScale converts unit quaternion components to Q14.
	OrientationScale = 1 << 14
)

// Input flags.
const (
	// FlagCast requests a cast of the selected spell on this frame.
	FlagCast uint8 = 1 << 0
)

// InputSize is the encoded size of a PlayerInput in bytes.
const InputSize = 3*poseSize + 2

const (
	vec3Size = 3 * 4
	quatSize = 4 * 2
	poseSize = vec3Size + quatSize
)

// ErrInputSize is returned when decoding a record of the wrong length.
var ErrInputSize = errors.New("domain: player input record has wrong size")

// Vec3 is a position in millimetres.
type Vec3 struct {
	X, Y, Z int32
}

// Quat is an orientation quaternion with Q14 components.
type Quat struct {
	X, Y, Z, W int16
}

// Pose is the position and orientation of one tracked point.
type Pose struct {
	Position    Vec3
	Orientation Quat
}

// PlayerInput is everything one participant contributes to one frame.
//
// The layout is fixed and every field is an integer, so == compares two
// inputs bit for bit and decoded inputs compare equal to their source. The
// zero value is the neutral "no input" record used before any real input
// has been seen.
type PlayerInput struct {
	Head      Pose
	LeftHand  Pose
	RightHand Pose

	// Spell is the selected spell; 0 means none.
	Spell uint8

	// Flags carries FlagCast and future edge-triggered bits.
	Flags uint8
}

// Casting reports whether the input requests a cast.
func (in PlayerInput) Casting() bool {
	return in.Flags&FlagCast != 0 && in.Spell != 0
}

// AppendBinary appends the little-endian encoding of in to b.
func (in PlayerInput) AppendBinary(b []byte) ([]byte, error) {
	for _, p := range [...]Pose{in.Head, in.LeftHand, in.RightHand} {
		b = binary.LittleEndian.AppendUint32(b, uint32(p.Position.X))
		b = binary.LittleEndian.AppendUint32(b, uint32(p.Position.Y))
		b = binary.LittleEndian.AppendUint32(b, uint32(p.Position.Z))
		b = binary.LittleEndian.AppendUint16(b, uint16(p.Orientation.X))
		b = binary.LittleEndian.AppendUint16(b, uint16(p.Orientation.Y))
		b = binary.LittleEndian.AppendUint16(b, uint16(p.Orientation.Z))
		b = binary.LittleEndian.AppendUint16(b, uint16(p.Orientation.W))
	}
	return append(b, in.Spell, in.Flags), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (in PlayerInput) MarshalBinary() ([]byte, error) {
	return in.AppendBinary(make([]byte, 0, InputSize))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The record must be
// exactly InputSize bytes.
func (in *PlayerInput) UnmarshalBinary(b []byte) error {
	if len(b) != InputSize {
		return fmt.Errorf("%w: got %d, want %d", ErrInputSize, len(b), InputSize)
	}
	poses := [3]*Pose{&in.Head, &in.LeftHand, &in.RightHand}
	for i, p := range poses {
		o := i * poseSize
		p.Position.X = int32(binary.LittleEndian.Uint32(b[o:]))
		p.Position.Y = int32(binary.LittleEndian.Uint32(b[o+4:]))
		p.Position.Z = int32(binary.LittleEndian.Uint32(b[o+8:]))
		p.Orientation.X = int16(binary.LittleEndian.Uint16(b[o+12:]))
		p.Orientation.Y = int16(binary.LittleEndian.Uint16(b[o+14:]))
		p.Orientation.Z = int16(binary.LittleEndian.Uint16(b[o+16:]))
		p.Orientation.W = int16(binary.LittleEndian.Uint16(b[o+18:]))
	}
	in.Spell = b[3*poseSize]
	in.Flags = b[3*poseSize+1]
	return nil
}

// FramedInput pairs an input with the frame it belongs to.
type FramedInput struct {
	Frame Frame
	Input PlayerInput
}
