package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// Option configures an Establisher.
type Option func(*Establisher)

// WithCapacity refuses accepted connections once n distinct remote
// addresses are registered. Zero means no limit.
func WithCapacity(n int) Option {
	return func(e *Establisher) { e.capacity = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Establisher) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics reports the number of registered peers.
func WithMetrics(m *metric.Registry) Option {
	return func(e *Establisher) { e.metrics = m }
}

// Establisher opens and accepts session connections during setup and keeps
// them registered by remote address.
type Establisher struct {
	capacity int
	logger   *slog.Logger
	metrics  *metric.Registry

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	peers   map[netip.AddrPort]*Conn
	order   []*Conn
	changed chan struct{}
	closed  bool
}

// New returns an Establisher that is not listening.
func New(opts ...Option) *Establisher {
	e := &Establisher{
		logger:  slog.Default(),
		peers:   make(map[netip.AddrPort]*Conn),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Listen returns an Establisher accepting connections on addr.
func Listen(addr string, opts ...Option) (*Establisher, error) {
	e := New(opts...)
	if err := e.Listen(addr); err != nil {
		return nil, err
	}
	return e, nil
}

// Listen starts accepting connections on addr.
func (e *Establisher) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return domain.ErrPortInUse.WithDetailsf("tcp %s", addr).WithCause(err)
		}
		return fmt.Errorf("connect: listen %s: %w", addr, err)
	}
	e.ln = ln
	e.running.Store(true)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.acceptLoop()
	}()

	e.logger.Info("accepting session connections", "addr", e.Addr().String())
	return nil
}

// Addr returns the listen address, or the zero value when not listening.
func (e *Establisher) Addr() netip.AddrPort {
	if e.ln == nil {
		return netip.AddrPort{}
	}
	ta, ok := e.ln.Addr().(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	return ta.AddrPort()
}

// Dial connects to a discovered peer and registers the connection. An
// already registered connection to the same address is returned as is.
func (e *Establisher) Dial(ctx context.Context, to netip.AddrPort) (*Conn, error) {
	to = netip.AddrPortFrom(to.Addr().Unmap(), to.Port())
	e.mu.Lock()
	if c, ok := e.peers[to]; ok {
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", to.String())
	if err != nil {
		return nil, domain.ErrConnectFailed.WithDetailsf("dial %s", to).WithCause(err)
	}
	c := newConn(nc)
	if existing, ok := e.register(to, c, false); !ok {
		c.Close()
		if existing != nil {
			return existing, nil
		}
		return nil, domain.ErrConnectFailed.WithDetailsf("establisher closed")
	}
	e.logger.Info("connected to peer", "peer_addr", to.String())
	return c, nil
}

// WaitFor blocks until n distinct remote addresses are registered. It
// returns false if ctx ends first.
func (e *Establisher) WaitFor(ctx context.Context, n int) bool {
	for {
		e.mu.Lock()
		count := len(e.order)
		changed := e.changed
		e.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

// Peers returns the registered connections in registration order.
func (e *Establisher) Peers() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Conn(nil), e.order...)
}

// StopAccepting closes the listener; registered connections stay open.
func (e *Establisher) StopAccepting() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	err := e.ln.Close()
	e.wg.Wait()
	return err
}

// Close stops accepting and closes every registered connection.
func (e *Establisher) Close() error {
	err := e.StopAccepting()

	e.mu.Lock()
	e.closed = true
	conns := e.order
	e.order = nil
	e.peers = make(map[netip.AddrPort]*Conn)
	e.mu.Unlock()

	for _, c := range conns {
		err = errors.Join(err, c.Close())
	}
	return err
}

// register adds c under addr. It reports false, with the connection that
// holds the address if any, when c was not registered.
func (e *Establisher) register(addr netip.AddrPort, c *Conn, enforceCapacity bool) (*Conn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false
	}
	if existing, ok := e.peers[addr]; ok {
		return existing, false
	}
	if enforceCapacity && e.capacity > 0 && len(e.order) >= e.capacity {
		return nil, false
	}
	e.peers[addr] = c
	e.order = append(e.order, c)
	close(e.changed)
	e.changed = make(chan struct{})
	e.metrics.SetPeersConnected(len(e.order))
	return nil, true
}

func (e *Establisher) acceptLoop() {
	for {
		nc, err := e.ln.Accept()
		if err != nil {
			if !e.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			e.logger.Warn("accept failed", "error", err)
			continue
		}
		c := newConn(nc)
		if _, ok := e.register(c.RemoteAddr(), c, true); !ok {
			e.logger.Warn("refused session connection",
				"peer_addr", c.RemoteAddr().String(),
				"capacity", e.capacity)
			c.Close()
			continue
		}
		e.logger.Info("accepted session connection", "peer_addr", c.RemoteAddr().String())
	}
}
