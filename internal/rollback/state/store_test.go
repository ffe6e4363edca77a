package state

import (
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/yndnr/goudanet-go/internal/core/domain"
)

type counters struct {
	Sum   int64
	Ticks int64
}

// newCounterStore builds a store whose state depends on every input and on
// the frame PRNG.
func newCounterStore(t *testing.T) (*Store, *Value[counters], *Value[[]int32]) {
	t.Helper()
	s := NewStore(42)
	c := NewValue("counters", counters{}, nil, nil)
	hist := NewValue("history", []int32(nil), slices.Clone[[]int32], nil)
	if err := s.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(hist); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	s.AddSystem("sum_inputs", func(ctx *AdvanceContext) {
		c.Update(ctx, func(v counters) counters {
			for _, in := range ctx.Inputs {
				v.Sum += int64(in.Head.Position.X)
			}
			v.Ticks++
			return v
		})
	})
	s.AddSystem("roll", func(ctx *AdvanceContext) {
		hist.Update(ctx, func(h []int32) []int32 {
			return append(h, ctx.Rand().Int32N(1000))
		})
	})
	return s, c, hist
}

func inputsFor(f domain.Frame) []domain.PlayerInput {
	return []domain.PlayerInput{
		{Head: domain.Pose{Position: domain.Vec3{X: int32(f)}}},
		{Head: domain.Pose{Position: domain.Vec3{X: int32(f) * 3}}},
	}
}

func TestStore_SnapshotRestoreInverse(t *testing.T) {
	s, c, hist := newCounterStore(t)
	for f := domain.Frame(0); f < 10; f++ {
		if err := s.Advance(f, inputsFor(f)); err != nil {
			t.Fatalf("Advance(%d) error = %v", f, err)
		}
	}

	snap := s.Snapshot()
	before := s.Checksum()
	wantCounters := c.Get()
	wantHist := slices.Clone(hist.Get())

	for f := domain.Frame(10); f < 15; f++ {
		if err := s.Advance(f, inputsFor(f)); err != nil {
			t.Fatalf("Advance(%d) error = %v", f, err)
		}
	}
	if s.Checksum() == before {
		t.Fatal("Checksum() unchanged after advancing")
	}

	if err := s.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := s.Checksum(); got != before {
		t.Errorf("Checksum() after Restore = %x, want %x", got, before)
	}
	if c.Get() != wantCounters {
		t.Errorf("counters = %+v, want %+v", c.Get(), wantCounters)
	}
	if !slices.Equal(hist.Get(), wantHist) {
		t.Errorf("history = %v, want %v", hist.Get(), wantHist)
	}
	if s.NextFrame() != 10 {
		t.Errorf("NextFrame() = %d, want 10", s.NextFrame())
	}
}

func TestStore_ReplayIsDeterministic(t *testing.T) {
	s, _, _ := newCounterStore(t)
	snap := s.Snapshot()

	run := func() uint64 {
		for f := domain.Frame(0); f < 30; f++ {
			if err := s.Advance(f, inputsFor(f)); err != nil {
				t.Fatalf("Advance(%d) error = %v", f, err)
			}
		}
		return s.Checksum()
	}

	first := run()
	if err := s.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if second := run(); second != first {
		t.Errorf("replayed checksum = %x, want %x", second, first)
	}

	other, _, _ := newCounterStore(t)
	for f := domain.Frame(0); f < 30; f++ {
		other.Advance(f, inputsFor(f))
	}
	if got := other.Checksum(); got != first {
		t.Errorf("independent store checksum = %x, want %x", got, first)
	}
}

func TestStore_SnapshotReusable(t *testing.T) {
	s, _, hist := newCounterStore(t)
	s.Advance(0, inputsFor(0))
	snap := s.Snapshot()

	for i := 0; i < 3; i++ {
		s.Advance(1, inputsFor(1))
		s.Advance(2, inputsFor(2))
		if err := s.Restore(snap); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if n := len(hist.Get()); n != 1 {
			t.Fatalf("restore %d: len(history) = %d, want 1", i, n)
		}
	}
}

func TestStore_InputsChangeOutcome(t *testing.T) {
	a, _, _ := newCounterStore(t)
	b, _, _ := newCounterStore(t)

	a.Advance(0, inputsFor(0))
	b.Advance(0, inputsFor(1))

	if a.Checksum() == b.Checksum() {
		t.Error("different inputs produced identical checksums")
	}
}

func TestStore_SystemOrder(t *testing.T) {
	s := NewStore(0)
	var order []string
	for _, name := range []string{"apply_input", "move", "resolve"} {
		s.AddSystem(name, func(ctx *AdvanceContext) { order = append(order, name) })
	}
	s.Advance(0, nil)

	want := []string{"apply_input", "move", "resolve"}
	if !slices.Equal(order, want) {
		t.Errorf("run order = %v, want %v", order, want)
	}
	if !slices.Equal(s.Systems(), want) {
		t.Errorf("Systems() = %v, want %v", s.Systems(), want)
	}
}

func TestStore_Errors(t *testing.T) {
	s := NewStore(0)
	v := NewValue("a", int64(0), nil, nil)
	if err := s.Register(v); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(NewValue("a", int64(1), nil, nil)); !errors.Is(err, ErrDuplicateCollection) {
		t.Errorf("Register(duplicate) = %v, want ErrDuplicateCollection", err)
	}
	if err := s.Advance(3, nil); !errors.Is(err, ErrFrameOrder) {
		t.Errorf("Advance(3) on fresh store = %v, want ErrFrameOrder", err)
	}
	if err := s.Advance(0, nil); err != nil {
		t.Fatalf("Advance(0) error = %v", err)
	}
	if err := s.Register(NewValue("b", int64(0), nil, nil)); !errors.Is(err, ErrSealed) {
		t.Errorf("Register after Advance = %v, want ErrSealed", err)
	}
	if err := s.AddSystem("late", func(*AdvanceContext) {}); !errors.Is(err, ErrSealed) {
		t.Errorf("AddSystem after Advance = %v, want ErrSealed", err)
	}
	if err := s.Restore(Snapshot{}); !errors.Is(err, ErrSnapshotMismatch) {
		t.Errorf("Restore(zero) = %v, want ErrSnapshotMismatch", err)
	}
}

func TestValue_SetOutsideAdvancePanics(t *testing.T) {
	v := NewValue("a", int64(0), nil, nil)
	defer func() {
		if recover() == nil {
			t.Error("Set() outside Advance did not panic")
		}
	}()
	v.Set(nil, 1)
}

func TestValue_StaleContextPanics(t *testing.T) {
	s := NewStore(0)
	v := NewValue("a", int64(0), nil, nil)
	s.Register(v)
	var kept *AdvanceContext
	s.AddSystem("keep", func(ctx *AdvanceContext) { kept = ctx })
	s.Advance(0, nil)

	defer func() {
		if recover() == nil {
			t.Error("Set() with a finished context did not panic")
		}
	}()
	v.Set(kept, 5)
}

func TestNewValue_RequiresHashForVariableSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewValue(map) without hash did not panic")
		}
	}()
	NewValue("m", map[string]int{}, nil, nil)
}

func TestNewValue_CustomHash(t *testing.T) {
	v := NewValue("names", map[string]int{"a": 1}, nil, func(w io.Writer, m map[string]int) {
		io.WriteString(w, "fixed")
	})
	s := NewStore(0)
	if err := s.Register(v); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if s.Checksum() == 0 {
		t.Error("Checksum() = 0")
	}
}
