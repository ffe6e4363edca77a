package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/input"
	"github.com/yndnr/goudanet-go/internal/netcode/transport"
	"github.com/yndnr/goudanet-go/internal/rollback"
	"github.com/yndnr/goudanet-go/internal/rollback/state"
)

// newGame returns a store whose state depends on every input it sees. A
// non-zero bias makes two peers disagree.
func newGame(t *testing.T, bias int64) *state.Store {
	t.Helper()
	s := state.NewStore(11)
	acc := state.NewValue("acc", int64(0), nil, nil)
	if err := s.Register(acc); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	s.AddSystem("mix", func(ctx *state.AdvanceContext) {
		acc.Update(ctx, func(v int64) int64 {
			for _, in := range ctx.Inputs {
				v = v*31 + int64(in.Head.Position.X) + int64(in.Flags)
			}
			return v + bias + ctx.Rand().Int64N(7)
		})
	})
	return s
}

// freePort returns a UDP port that was free a moment ago.
func freePort(t *testing.T) uint16 {
	t.Helper()
	c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer c.Close()
	return uint16(c.LocalAddr().(*net.UDPAddr).Port)
}

func addr(port uint16) string {
	return (&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)}).String()
}

func TestBuild_Errors(t *testing.T) {
	bound, err := transport.Listen(0)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer bound.Close()

	tests := []struct {
		name string
		desc domain.SessionDescriptor
		want error
	}{
		{"empty", domain.NewDescriptor(0, 60), domain.ErrEmptyParticipants},
		{
			"no local",
			domain.NewDescriptor(0, 60, domain.RemotePlayer(0, "10.0.0.2:9000")),
			domain.ErrNoLocalParticipant,
		},
		{
			"bad address",
			domain.NewDescriptor(0, 60, domain.LocalPlayer(0), domain.RemotePlayer(0, "somewhere")),
			domain.ErrInvalidAddress,
		},
		{
			"port in use",
			domain.NewDescriptor(bound.LocalAddr().Port(), 60, domain.LocalPlayer(0), domain.RemotePlayer(0, "10.0.0.2:9000")),
			domain.ErrPortInUse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Build(tt.desc, newGame(t, 0))
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
			if s != nil {
				s.Close()
			}
		})
	}

	dup := domain.NewDescriptor(0, 60, domain.LocalPlayer(0), domain.LocalPlayer(1))
	dup.Participants[1].Handle = 0
	if _, err := Build(dup, newGame(t, 0)); !errors.Is(err, domain.ErrDuplicateHandle) {
		t.Errorf("Build() with duplicate handles error = %v, want ErrDuplicateHandle", err)
	}

	desc := domain.NewDescriptor(0, 60, domain.LocalPlayer(0), domain.RemotePlayer(0, "10.0.0.2:9000"))
	_, err = Build(desc, newGame(t, 0), WithInput(1, InputFunc(func() domain.PlayerInput { return domain.PlayerInput{} })))
	if !errors.Is(err, domain.ErrInvalidHandle) {
		t.Errorf("Build() with remote input provider error = %v, want ErrInvalidHandle", err)
	}
}

func TestBuild_Handles(t *testing.T) {
	desc := domain.NewDescriptor(0, 60, domain.LocalPlayer(0), domain.RemotePlayer(0, "10.0.0.2:9000"))
	s, err := Build(desc, newGame(t, 0))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer s.Close()

	if got := s.HandleCount(); got != 2 {
		t.Errorf("HandleCount() = %d, want 2", got)
	}
	if got := s.LocalHandles(); len(got) != 1 || got[0] != 0 {
		t.Errorf("LocalHandles() = %v, want [0]", got)
	}
	if got, ok := s.RemoteAddr(1); !ok || got.String() != "10.0.0.2:9000" {
		t.Errorf("RemoteAddr(1) = %v, %v, want 10.0.0.2:9000", got, ok)
	}
	if _, ok := s.RemoteAddr(0); ok {
		t.Error("RemoteAddr(0) found a local handle")
	}
	if err := s.Disconnect(0); !errors.Is(err, domain.ErrInvalidHandle) {
		t.Errorf("Disconnect(0) error = %v, want ErrInvalidHandle", err)
	}
}

func TestSession_StallsWithoutPeer(t *testing.T) {
	desc := domain.NewDescriptor(0, 60, domain.LocalPlayer(0), domain.RemotePlayer(0, "127.0.0.1:9"))
	desc.MaxPrediction = 3
	s, err := Build(desc, newGame(t, 0))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		if _, err := s.Tick(); err != nil {
			t.Fatalf("Tick() %d error = %v", i, err)
		}
	}
	if _, err := s.Tick(); !errors.Is(err, domain.ErrPredictionThreshold) {
		t.Fatalf("Tick() error = %v, want ErrPredictionThreshold", err)
	}
	if domain.IsFatal(domain.ErrPredictionThreshold) {
		t.Error("prediction stall reported as fatal")
	}
	if got := s.Status().CurrentFrame; got != 3 {
		t.Errorf("Status().CurrentFrame = %d, want 3", got)
	}

	if err := s.Disconnect(1); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if _, err := s.Tick(); err != nil {
		t.Errorf("Tick() after Disconnect error = %v", err)
	}

	s.Close()
	if _, err := s.Tick(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("Tick() after Close error = %v, want ErrSessionClosed", err)
	}
}

type pair struct {
	a, b         *Session
	confA, confB map[domain.Frame]uint64
}

func newPair(t *testing.T, biasB int64, delay int) *pair {
	t.Helper()
	pa, pb := freePort(t), freePort(t)
	p := &pair{confA: map[domain.Frame]uint64{}, confB: map[domain.Frame]uint64{}}

	da := domain.NewDescriptor(pa, 60, domain.LocalPlayer(0), domain.RemotePlayer(0, addr(pb)))
	db := domain.NewDescriptor(pb, 60, domain.RemotePlayer(0, addr(pa)), domain.LocalPlayer(0))
	da.ChecksumInterval, db.ChecksumInterval = 10, 10
	da.InputDelay, db.InputDelay = delay, delay

	var err error
	p.a, err = Build(da, newGame(t, 0),
		WithInput(0, input.NewCollector(input.NewScriptedSource(1))),
		WithOnConfirmed(func(c rollback.ConfirmedFrame) { p.confA[c.Frame] = c.Checksum }),
	)
	if err != nil {
		t.Fatalf("Build(a) error = %v", err)
	}
	t.Cleanup(func() { p.a.Close() })
	p.b, err = Build(db, newGame(t, biasB),
		WithInput(1, input.NewCollector(input.NewScriptedSource(2))),
		WithOnConfirmed(func(c rollback.ConfirmedFrame) { p.confB[c.Frame] = c.Checksum }),
	)
	if err != nil {
		t.Fatalf("Build(b) error = %v", err)
	}
	t.Cleanup(func() { p.b.Close() })
	return p
}

// run ticks both sessions until both confirmed frame target or one fails.
func (p *pair) run(t *testing.T, target domain.Frame) error {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range []*Session{p.a, p.b} {
			if _, err := s.Tick(); err != nil && !errors.Is(err, domain.ErrPredictionThreshold) {
				return err
			}
		}
		if p.a.Scheduler().ConfirmedFrame() >= target && p.b.Scheduler().ConfirmedFrame() >= target {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("confirmed frames %d, %d after deadline, want %d",
		p.a.Scheduler().ConfirmedFrame(), p.b.Scheduler().ConfirmedFrame(), target)
	return nil
}

func TestSession_LoopbackConverges(t *testing.T) {
	for _, delay := range []int{0, 2} {
		t.Run(fmt.Sprintf("delay=%d", delay), func(t *testing.T) {
			p := newPair(t, 0, delay)
			if err := p.run(t, 120); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			for f := domain.Frame(0); f <= 120; f++ {
				a, okA := p.confA[f]
				b, okB := p.confB[f]
				if !okA || !okB {
					t.Fatalf("frame %d confirmed on a=%v b=%v", f, okA, okB)
				}
				if a != b {
					t.Fatalf("frame %d: checksum %016x != %016x", f, a, b)
				}
			}
		})
	}
}

func TestSession_DesyncIsFatal(t *testing.T) {
	p := newPair(t, 1, 0)
	err := p.run(t, 200)
	if !errors.Is(err, domain.ErrDesync) {
		t.Fatalf("run() error = %v, want ErrDesync", err)
	}
	if !domain.IsFatal(err) {
		t.Error("desync not fatal")
	}
}

func TestSession_RunStopsOnCancel(t *testing.T) {
	desc := domain.NewDescriptor(0, 200, domain.LocalPlayer(0))
	s, err := Build(desc, newGame(t, 0))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.Scheduler().CurrentFrame() == 0 {
		t.Error("Run() never advanced")
	}
}
