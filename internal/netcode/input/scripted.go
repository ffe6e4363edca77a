package input

import (
	"math"
	"math/rand/v2"
)

// ScriptedSource is a synthetic tracker for headless peers and tests. The
// head sways on a circle, the hands follow, a spell is selected and cast
// at random intervals, and the trackers drop out now and then. The same
// seed always produces the same samples.
type ScriptedSource struct {
	rng   *rand.Rand
	frame int

	// DropoutRate is the probability of a tracker being unavailable in a
	// sample.
	DropoutRate float64

	// CastRate is the probability of a cast gesture in a sample.
	CastRate float64
}

// NewScriptedSource returns a script for the given seed.
func NewScriptedSource(seed uint64) *ScriptedSource {
	return &ScriptedSource{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		DropoutRate: 0.02,
		CastRate:    0.03,
	}
}

// Sample implements Source.
func (s *ScriptedSource) Sample() Sample {
	t := float64(s.frame) / 60
	s.frame++

	yaw := 0.5 * math.Sin(t)
	head := Reading{
		Position:    [3]float64{0.4 * math.Sin(t*0.7), 1.7, 0.4 * math.Cos(t*0.7)},
		Orientation: [4]float64{0, math.Sin(yaw / 2), 0, math.Cos(yaw / 2)},
		Valid:       s.rng.Float64() >= s.DropoutRate,
	}
	left := head
	left.Position = [3]float64{head.Position[0] - 0.3, 1.2 + 0.1*math.Sin(t*3), head.Position[2] + 0.2}
	left.Valid = s.rng.Float64() >= s.DropoutRate
	right := head
	right.Position = [3]float64{head.Position[0] + 0.3, 1.2 + 0.1*math.Cos(t*3), head.Position[2] + 0.2}
	right.Valid = s.rng.Float64() >= s.DropoutRate

	return Sample{
		Head:       head,
		LeftHand:   left,
		RightHand:  right,
		Spell:      uint8(1 + s.frame/240%3),
		SpellValid: true,
		Cast:       s.rng.Float64() < s.CastRate,
	}
}
