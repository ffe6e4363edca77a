package session

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/transport"
	"github.com/yndnr/goudanet-go/internal/rollback"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// InputProvider produces the input of one local handle for one frame.
// *input.Collector implements it.
type InputProvider interface {
	Collect() domain.PlayerInput
}

// InputFunc adapts a function to InputProvider.
type InputFunc func() domain.PlayerInput

func (f InputFunc) Collect() domain.PlayerInput { return f() }

// Pacer blocks until the next frame boundary. *rate.Limiter implements it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records scheduler and transport metrics in m.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Session) { s.metrics = m }
}

// WithInput sets the input provider of local handle h. Local handles
// without a provider send neutral input.
func WithInput(h domain.Handle, p InputProvider) Option {
	return func(s *Session) { s.inputs[h] = p }
}

// WithOnConfirmed registers a hook called for every confirmed frame, in
// frame order, on the goroutine calling Tick.
func WithOnConfirmed(fn func(rollback.ConfirmedFrame)) Option {
	return func(s *Session) { s.onConfirmed = fn }
}

// WithPacer replaces the tick-rate limiter used by Run.
func WithPacer(p Pacer) Option {
	return func(s *Session) { s.pacer = p }
}

// peer is one remote process. Several handles may share an address.
type peer struct {
	addr    netip.AddrPort
	handles []domain.Handle

	// acked is the newest frame of our input the peer has received.
	acked domain.Frame
}

func (p *peer) owns(h domain.Handle) bool {
	for _, x := range p.handles {
		if x == h {
			return true
		}
	}
	return false
}

// Session runs a built session on the calling goroutine. Tick must not be
// called concurrently; Status is safe from any goroutine.
type Session struct {
	desc    domain.SessionDescriptor
	sched   *rollback.Scheduler
	sock    *transport.Socket
	logger  *slog.Logger
	metrics *metric.Registry
	pacer   Pacer

	inputs      map[domain.Handle]InputProvider
	onConfirmed func(rollback.ConfirmedFrame)

	locals []domain.Handle
	peers  []*peer
	byAddr map[netip.AddrPort]*peer
	remote map[domain.Handle]netip.AddrPort

	buf    []byte
	status atomic.Pointer[metric.Status]
	closed atomic.Bool
}

// Build validates desc, binds the per-frame transport on desc.LocalPort and
// prepares the scheduler around game. Every error it returns is fatal for
// the session.
func Build(desc domain.SessionDescriptor, game rollback.Game, opts ...Option) (*Session, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if game == nil {
		return nil, domain.ErrInvalidSessionConfig.WithDetails("no game")
	}

	s := &Session{
		desc:   desc,
		logger: slog.Default(),
		inputs: make(map[domain.Handle]InputProvider),
		locals: desc.LocalHandles(),
		byAddr: make(map[netip.AddrPort]*peer),
		remote: make(map[domain.Handle]netip.AddrPort),
		buf:    make([]byte, 0, transport.MaxPacketSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pacer == nil {
		s.pacer = rate.NewLimiter(rate.Every(desc.FrameDuration()), 1)
	}
	for h := range s.inputs {
		if !isLocal(s.locals, h) {
			return nil, domain.ErrInvalidHandle.WithDetailsf("input provider for non-local handle %d", h)
		}
	}

	for _, p := range desc.Participants {
		if p.Type != domain.Remote {
			continue
		}
		addr, err := domain.ParseAddr(p.Addr)
		if err != nil {
			return nil, domain.ErrInvalidAddress.WithDetailsf("handle %d: %q", p.Handle, p.Addr).WithCause(err)
		}
		s.remote[p.Handle] = addr
		pr, ok := s.byAddr[addr]
		if !ok {
			pr = &peer{addr: addr, acked: domain.NullFrame}
			s.byAddr[addr] = pr
			s.peers = append(s.peers, pr)
		}
		pr.handles = append(pr.handles, p.Handle)
	}

	cfg := rollback.ConfigFromDescriptor(desc)
	cfg.Logger = s.logger
	cfg.Metrics = s.metrics
	cfg.OnConfirmed = s.onConfirmed
	sched, err := rollback.New(game, cfg)
	if err != nil {
		return nil, err
	}
	s.sched = sched

	sock, err := transport.Listen(desc.LocalPort,
		transport.WithLogger(s.logger),
		transport.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	s.sock = sock
	s.publishStatus()

	s.logger.Info("session built",
		"session_id", desc.ID,
		"handles", len(desc.Participants),
		"local_handles", s.locals,
		"peers", len(s.peers),
		"udp_addr", sock.LocalAddr(),
	)
	return s, nil
}

func isLocal(locals []domain.Handle, h domain.Handle) bool {
	for _, l := range locals {
		if l == h {
			return true
		}
	}
	return false
}

// Descriptor returns the descriptor the session was built from.
func (s *Session) Descriptor() domain.SessionDescriptor { return s.desc }

// HandleCount returns the number of participants.
func (s *Session) HandleCount() int { return len(s.desc.Participants) }

// LocalHandles returns the local handles in ascending order.
func (s *Session) LocalHandles() []domain.Handle {
	return append([]domain.Handle(nil), s.locals...)
}

// RemoteAddr returns the transport address of remote handle h.
func (s *Session) RemoteAddr(h domain.Handle) (netip.AddrPort, bool) {
	addr, ok := s.remote[h]
	return addr, ok
}

// LocalAddr returns the bound transport address.
func (s *Session) LocalAddr() netip.AddrPort { return s.sock.LocalAddr() }

// Scheduler returns the scheduler for read-only queries.
func (s *Session) Scheduler() *rollback.Scheduler { return s.sched }

// Status returns the status published by the last Tick.
func (s *Session) Status() metric.Status {
	return *s.status.Load()
}

// Tick runs one frame boundary: it drains the network, collects local
// input, advances the scheduler and sends inputs, acks and checksums to
// every peer. A frame skipped at the prediction window returns
// ErrPredictionThreshold and is not fatal; any other error is.
func (s *Session) Tick() (rollback.StepResult, error) {
	if s.closed.Load() {
		return rollback.StepResult{}, domain.ErrSessionClosed
	}
	if err := s.sched.Err(); err != nil {
		return rollback.StepResult{}, err
	}

	s.sock.Drain(s.receive)
	if err := s.sched.Err(); err != nil {
		return rollback.StepResult{}, err
	}

	if !s.sched.CanAdvance() {
		s.metrics.IncStall()
		s.flush()
		return rollback.StepResult{}, domain.ErrPredictionThreshold.WithDetailsf(
			"frame %d, confirmed %d", s.sched.CurrentFrame(), s.sched.ConfirmedFrame())
	}

	for _, h := range s.locals {
		in := domain.PlayerInput{}
		if p := s.inputs[h]; p != nil {
			in = p.Collect()
		}
		if err := s.sched.AddLocalInput(h, in); err != nil {
			return rollback.StepResult{}, err
		}
	}

	res, err := s.sched.AdvanceFrame()
	if err != nil {
		return res, err
	}
	s.flush()
	s.publishStatus()
	return res, nil
}

// Run ticks at the session rate until ctx ends or a fatal error occurs.
// It returns nil once ctx is cancelled or its deadline passes.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The limiter refuses to wait past the deadline; the next tick
			// would not fit anyway.
			if _, ok := ctx.Deadline(); ok {
				<-ctx.Done()
				return nil
			}
			return err
		}
		if _, err := s.Tick(); err != nil && !errors.Is(err, domain.ErrPredictionThreshold) {
			return err
		}
	}
}

// Disconnect freezes remote handle h at its last input so the session can
// keep running without it.
func (s *Session) Disconnect(h domain.Handle) error {
	if _, ok := s.remote[h]; !ok {
		return domain.ErrInvalidHandle.WithDetailsf("handle %d is not remote", h)
	}
	return s.sched.Disconnect(h)
}

// Close releases the transport. It is safe to call more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("session closed",
		"session_id", s.desc.ID,
		"frame", s.sched.CurrentFrame(),
		"confirmed", s.sched.ConfirmedFrame(),
	)
	return s.sock.Close()
}

func (s *Session) publishStatus() {
	st := s.sched.Status()
	s.status.Store(&st)
}

func (s *Session) receive(d transport.Datagram) {
	pr, ok := s.byAddr[d.From]
	if !ok {
		s.metrics.IncDropped("unknown_peer")
		return
	}
	kind, err := transport.Kind(d.Data)
	if err != nil {
		s.metrics.IncDropped("malformed")
		return
	}

	switch kind {
	case transport.KindInput:
		pkt, err := transport.DecodeInput(d.Data)
		if err != nil {
			s.metrics.IncDropped("malformed")
			return
		}
		if !pr.owns(pkt.Handle) {
			s.metrics.IncDropped("foreign_handle")
			return
		}
		if pkt.Ack > pr.acked {
			pr.acked = pkt.Ack
		}
		for i, in := range pkt.Inputs {
			if _, err := s.sched.AddRemoteInput(pkt.Handle, pkt.Start+domain.Frame(i), in); err != nil {
				return
			}
		}

	case transport.KindChecksum:
		pkt, err := transport.DecodeChecksum(d.Data)
		if err != nil {
			s.metrics.IncDropped("malformed")
			return
		}
		if !pr.owns(pkt.Handle) {
			s.metrics.IncDropped("foreign_handle")
			return
		}
		// A mismatch is kept by the scheduler and surfaced by Tick.
		_ = s.sched.AddRemoteChecksum(pkt.Handle, pkt.Frame, pkt.Checksum)
	}
}

// flush sends every peer the local inputs it has not acknowledged and our
// newest checkpoint. Lost packets are covered by the next flush.
func (s *Session) flush() {
	report, hasReport := s.sched.LatestChecksum()
	for _, pr := range s.peers {
		ack := s.ackFor(pr)
		for _, h := range s.locals {
			pkt := transport.InputPacket{Handle: h, Start: pr.acked + 1, Ack: ack}
			framed := s.sched.LocalInputs(h, pr.acked+1, transport.MaxInputsPerPacket)
			if len(framed) > 0 {
				pkt.Start = framed[0].Frame
				pkt.Inputs = make([]domain.PlayerInput, len(framed))
				for i, fi := range framed {
					pkt.Inputs[i] = fi.Input
				}
			}
			s.send(pr, pkt)
		}
		if hasReport {
			s.send(pr, transport.ChecksumPacket{
				Handle:   s.locals[0],
				Frame:    report.Frame,
				Checksum: report.Checksum,
			})
		}
	}
}

// ackFor returns the newest frame received from every handle of pr.
func (s *Session) ackFor(pr *peer) domain.Frame {
	ack := domain.NullFrame
	for i, h := range pr.handles {
		if last := s.sched.LastReceived(h); i == 0 || last < ack {
			ack = last
		}
	}
	return ack
}

type appender interface {
	AppendBinary([]byte) ([]byte, error)
}

func (s *Session) send(pr *peer, p appender) {
	b, err := p.AppendBinary(s.buf[:0])
	if err != nil {
		s.logger.Warn("encode packet failed", "peer", pr.addr, "error", err)
		return
	}
	s.buf = b
	if err := s.sock.Send(pr.addr, b); err != nil {
		s.metrics.IncDropped("send_failed")
		s.logger.Debug("send failed", "peer", pr.addr, "error", err)
	}
}
