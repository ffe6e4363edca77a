package transport

import (
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

const (
	// readBufferSize bounds a single received datagram.
	readBufferSize = 1500

	// DefaultInboxSize is the number of datagrams buffered between ticks.
	DefaultInboxSize = 256
)

// Datagram is a received packet and its normalized source address.
type Datagram struct {
	From netip.AddrPort
	Data []byte
}

// Option configures a Socket.
type Option func(*Socket)

// WithLogger sets the socket logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Socket) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records dropped datagrams.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Socket) { s.metrics = m }
}

// WithInboxSize sets the inbox capacity.
func WithInboxSize(n int) Option {
	return func(s *Socket) {
		if n > 0 {
			s.inboxSize = n
		}
	}
}

// Socket is the per-frame UDP transport. A background reader is the only
// producer of the inbox and the simulation tick is its only consumer.
type Socket struct {
	conn      *net.UDPConn
	inbox     chan Datagram
	inboxSize int
	logger    *slog.Logger
	metrics   *metric.Registry

	closed atomic.Bool
	wg     sync.WaitGroup
}

// Listen binds a UDP socket on port, or on an ephemeral port when port is 0.
func Listen(port uint16, opts ...Option) (*Socket, error) {
	s := &Socket{
		inboxSize: DefaultInboxSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, domain.ErrPortInUse.WithDetailsf("udp port %d", port).WithCause(err)
		}
		return nil, fmt.Errorf("transport: listen udp port %d: %w", port, err)
	}
	s.conn = conn
	s.inbox = make(chan Datagram, s.inboxSize)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop()
	}()

	s.logger.Debug("udp transport listening", "addr", s.LocalAddr())
	return s, nil
}

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Inbox returns the channel of received datagrams.
func (s *Socket) Inbox() <-chan Datagram {
	return s.inbox
}

// Drain passes every datagram received so far to fn without blocking and
// returns how many there were.
func (s *Socket) Drain(fn func(Datagram)) int {
	n := 0
	for {
		select {
		case d, ok := <-s.inbox:
			if !ok {
				return n
			}
			fn(d)
			n++
		default:
			return n
		}
	}
}

// Send writes one datagram to the given address.
func (s *Socket) Send(to netip.AddrPort, data []byte) error {
	if s.closed.Load() {
		return net.ErrClosed
	}
	_, err := s.conn.WriteToUDPAddrPort(data, to)
	return err
}

// Close stops the reader and releases the port.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

func (s *Socket) readLoop() {
	defer close(s.inbox)
	buf := make([]byte, readBufferSize)
	for {
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// ICMP port-unreachable from a peer that is not up yet.
			s.logger.Debug("udp read error", "error", err)
			continue
		}
		d := Datagram{
			From: Normalize(from),
			Data: append([]byte(nil), buf[:n]...),
		}
		select {
		case s.inbox <- d:
		default:
			s.metrics.IncDropped("inbox_full")
		}
	}
}

// Normalize unmaps IPv4-mapped IPv6 addresses so that one peer always has
// one address.
func Normalize(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
