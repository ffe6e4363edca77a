package domain

import (
	"errors"
	"testing"
)

func sampleInput() PlayerInput {
	return PlayerInput{
		Head:      Pose{Position: Vec3{X: 10, Y: 1700, Z: -25}, Orientation: Quat{W: OrientationScale}},
		LeftHand:  Pose{Position: Vec3{X: -300, Y: 1200, Z: 400}, Orientation: Quat{X: -5000, Y: 12, Z: 3, W: 15000}},
		RightHand: Pose{Position: Vec3{X: 310, Y: 1190, Z: -2147483648}, Orientation: Quat{X: 32767, Y: -32768}},
		Spell:     3,
		Flags:     FlagCast,
	}
}

func TestPlayerInput_BinaryRoundTrip(t *testing.T) {
	in := sampleInput()

	b, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(b) != InputSize {
		t.Fatalf("len(MarshalBinary()) = %d, want %d", len(b), InputSize)
	}

	var out PlayerInput
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if out != in {
		t.Errorf("UnmarshalBinary() = %+v, want %+v", out, in)
	}
}

func TestPlayerInput_EqualityIsBitwise(t *testing.T) {
	a := sampleInput()
	b := sampleInput()
	if a != b {
		t.Fatal("identical inputs compare unequal")
	}
	b.LeftHand.Orientation.Z++
	if a == b {
		t.Error("inputs differing in one orientation component compare equal")
	}
	if (PlayerInput{}) != (PlayerInput{}) {
		t.Error("zero inputs compare unequal")
	}
}

func TestPlayerInput_UnmarshalWrongSize(t *testing.T) {
	var in PlayerInput
	for _, n := range []int{0, InputSize - 1, InputSize + 1} {
		if err := in.UnmarshalBinary(make([]byte, n)); !errors.Is(err, ErrInputSize) {
			t.Errorf("UnmarshalBinary(%d bytes) = %v, want ErrInputSize", n, err)
		}
	}
}

func TestPlayerInput_Casting(t *testing.T) {
	tests := []struct {
		name string
		in   PlayerInput
		want bool
	}{
		{"flag and spell", PlayerInput{Spell: 1, Flags: FlagCast}, true},
		{"flag without spell", PlayerInput{Flags: FlagCast}, false},
		{"spell without flag", PlayerInput{Spell: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Casting(); got != tt.want {
				t.Errorf("Casting() = %v, want %v", got, tt.want)
			}
		})
	}
}
