package input

import (
	"math"
	"sync/atomic"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

// Reading is one tracked pose in metres and a unit quaternion (x, y, z, w).
type Reading struct {
	Position    [3]float64
	Orientation [4]float64
	// Valid is false while the tracker is unavailable.
	Valid bool
}

// Sample is everything an input source reports for one frame.
type Sample struct {
	Head, LeftHand, RightHand Reading

	Spell      uint8
	SpellValid bool

	// Cast reports a one-shot cast gesture seen since the previous sample.
	Cast bool
}

// Source reads the external trackers. Sample must not block.
type Source interface {
	Sample() Sample
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Sample

func (f SourceFunc) Sample() Sample { return f() }

// Collector turns tracker samples into PlayerInput records. Readings that
// are unavailable keep their last known value.
type Collector struct {
	src  Source
	last domain.PlayerInput
	cast atomic.Bool
}

// NewCollector returns a collector reading from src.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

// RequestCast asks for a cast on the next collected input. It is safe to
// call from any goroutine; several requests before a Collect count once.
func (c *Collector) RequestCast() {
	c.cast.Store(true)
}

// Collect produces the input for one frame.
func (c *Collector) Collect() domain.PlayerInput {
	s := c.src.Sample()
	if s.Head.Valid {
		c.last.Head = Quantize(s.Head)
	}
	if s.LeftHand.Valid {
		c.last.LeftHand = Quantize(s.LeftHand)
	}
	if s.RightHand.Valid {
		c.last.RightHand = Quantize(s.RightHand)
	}
	if s.SpellValid {
		c.last.Spell = s.Spell
	}

	in := c.last
	in.Flags = 0
	// Swap clears the request so the cast is sent on one frame only.
	if c.cast.Swap(false) || s.Cast {
		in.Flags |= domain.FlagCast
	}
	return in
}

// Quantize converts a reading to fixed point: millimetres and Q14
// quaternion components, saturating at the type limits.
func Quantize(r Reading) domain.Pose {
	return domain.Pose{
		Position: domain.Vec3{
			X: fixed32(r.Position[0] * domain.PositionScale),
			Y: fixed32(r.Position[1] * domain.PositionScale),
			Z: fixed32(r.Position[2] * domain.PositionScale),
		},
		Orientation: domain.Quat{
			X: fixed16(r.Orientation[0] * domain.OrientationScale),
			Y: fixed16(r.Orientation[1] * domain.OrientationScale),
			Z: fixed16(r.Orientation[2] * domain.OrientationScale),
			W: fixed16(r.Orientation[3] * domain.OrientationScale),
		},
	}
}

func fixed32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(math.Round(v))
}

func fixed16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}
