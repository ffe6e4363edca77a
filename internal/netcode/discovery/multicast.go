package discovery

import (
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"golang.org/x/net/ipv4"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

const (
	// DefaultGroup is the multicast group every participant announces on.
	DefaultGroup = "239.255.71.71:7171"

	// DefaultTTL keeps announcements on the local network.
	DefaultTTL = 1

	// maxDatagram bounds one discovery message; longer ones are truncated.
	maxDatagram = 1500
)

// MulticastConfig configures a Multicast source.
type MulticastConfig struct {
	// Group is the multicast group address, DefaultGroup if empty.
	Group string

	// Interface names the network interface to join on; empty lets the
	// system choose.
	Interface string

	// TTL for outgoing announcements, DefaultTTL if zero.
	TTL int

	// Loopback delivers our own announcements to local listeners, which is
	// needed for several participants on one host.
	Loopback bool

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Multicast announces and listens on a UDP multicast group.
type Multicast struct {
	recv net.PacketConn
	send net.PacketConn
	dst  net.Addr

	ch      chan Announcement
	self    atomic.Uint64
	logger  *slog.Logger
	metrics *metric.Registry

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewMulticast joins the configured group.
func NewMulticast(cfg MulticastConfig) (*Multicast, error) {
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	group, err := net.ResolveUDPAddr("udp4", cfg.Group)
	if err != nil {
		return nil, domain.ErrDiscoveryFailed.WithDetailsf("group %q", cfg.Group).WithCause(err)
	}
	if !group.IP.IsMulticast() {
		return nil, domain.ErrDiscoveryFailed.WithDetailsf("%s is not a multicast address", group.IP)
	}

	var ifi *net.Interface
	if cfg.Interface != "" {
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, domain.ErrDiscoveryFailed.WithDetailsf("interface %q", cfg.Interface).WithCause(err)
		}
	}

	recv, err := net.ListenMulticastUDP("udp4", ifi, group)
	if err != nil {
		return nil, domain.ErrDiscoveryFailed.WithDetailsf("join %s", group).WithCause(err)
	}

	send, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		recv.Close()
		return nil, domain.ErrDiscoveryFailed.WithDetails("sender socket").WithCause(err)
	}
	pc := ipv4.NewPacketConn(send)
	if err := configureSender(pc, ifi, cfg.TTL, cfg.Loopback); err != nil {
		recv.Close()
		send.Close()
		return nil, domain.ErrDiscoveryFailed.WithDetails("sender options").WithCause(err)
	}

	m := newMulticast(recv, send, group, cfg.Logger, cfg.Metrics)
	m.logger.Info("multicast discovery started",
		"group", group.String(),
		"interface", cfg.Interface,
	)
	return m, nil
}

func configureSender(pc *ipv4.PacketConn, ifi *net.Interface, ttl int, loopback bool) error {
	if err := pc.SetMulticastTTL(ttl); err != nil {
		return err
	}
	if err := pc.SetMulticastLoopback(loopback); err != nil {
		return err
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			return err
		}
	}
	return nil
}

// newMulticast wires already opened sockets. recv may be any packet
// listener that dst reaches.
func newMulticast(recv, send net.PacketConn, dst net.Addr, logger *slog.Logger, metrics *metric.Registry) *Multicast {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Multicast{
		recv:    recv,
		send:    send,
		dst:     dst,
		ch:      make(chan Announcement, pollBuffer),
		logger:  logger,
		metrics: metrics,
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.readLoop()
	}()
	return m
}

// Announce sends one handshake to the group. Announcements carrying the
// same non-zero participant id are not reported back by Poll.
func (m *Multicast) Announce(participantID uint64, tcpPort uint16) error {
	if m.closed.Load() {
		return net.ErrClosed
	}
	m.self.Store(participantID)
	msg := Encode(Handshake{Port: tcpPort, ParticipantID: participantID})
	_, err := m.send.WriteTo([]byte(msg), m.dst)
	return err
}

// Poll returns the next announcement from another participant, if any.
func (m *Multicast) Poll() (Announcement, bool) {
	return poll(m.ch)
}

// Close leaves the group and stops the reader.
func (m *Multicast) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := errors.Join(m.recv.Close(), m.send.Close())
	m.wg.Wait()
	return err
}

func (m *Multicast) readLoop() {
	defer close(m.ch)
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := m.recv.ReadFrom(buf)
		if err != nil {
			if m.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			m.logger.Debug("discovery read error", "error", err)
			continue
		}

		hs, ok := Decode(string(buf[:n]))
		if !ok {
			m.metrics.RecordDiscovery("malformed")
			continue
		}
		if self := m.self.Load(); self != 0 && hs.ParticipantID == self {
			m.metrics.RecordDiscovery("self")
			continue
		}
		addr, ok := sourceAddr(from)
		if !ok {
			m.metrics.RecordDiscovery("malformed")
			continue
		}
		if !offer(m.ch, Announcement{From: addr, Handshake: hs}) {
			m.metrics.RecordDiscovery("dropped")
			continue
		}
		m.metrics.RecordDiscovery("accepted")
	}
}

func sourceAddr(a net.Addr) (netip.Addr, bool) {
	ua, ok := a.(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ua.IP)
	return addr.Unmap(), ok
}
