package lobby

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/connect"
	"github.com/yndnr/goudanet-go/internal/netcode/discovery"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// pollInterval paces discovery polling while joining.
const pollInterval = 20 * time.Millisecond

// Config is shared by Host and Join.
type Config struct {
	// ParticipantID identifies this participant in announcements and Hello
	// messages. It must be non-zero.
	ParticipantID uint64

	// UDPPort is the local per-frame transport port reported to the others.
	UDPPort uint16

	// Template provides the timing settings of the resulting descriptor.
	Template domain.SessionDescriptor

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// HostConfig configures the hosting participant.
type HostConfig struct {
	Config

	// Participants is the session size including the host.
	Participants int

	// ListenAddr is the TCP address session connections are accepted on.
	ListenAddr string

	// AnnounceInterval paces discovery announcements.
	AnnounceInterval time.Duration

	// Seed is the world seed sent to every joiner; random when zero.
	Seed uint64
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// descriptor fills the template. id overrides the template's session id;
// a host with neither generates one.
func (c *Config) descriptor(ps []domain.Participant, seed uint64, id string) domain.SessionDescriptor {
	d := c.Template
	if id != "" {
		d.ID = id
	}
	if d.ID == "" {
		d.ID = domain.NewSessionID()
	}
	d.Participants = ps
	d.LocalPort = c.UDPPort
	d.Seed = seed
	return d
}

// Host announces this participant, waits for the others to connect and
// assigns handles in join order, the host being handle 0. Each joiner
// receives a roster of everybody else.
func Host(ctx context.Context, src discovery.Source, cfg HostConfig) (domain.SessionDescriptor, error) {
	log := cfg.logger()
	if cfg.Participants < 2 || cfg.Participants > domain.MaxParticipants {
		return domain.SessionDescriptor{}, domain.ErrInvalidSessionConfig.WithDetailsf("%d participants", cfg.Participants)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":0"
	}
	want := cfg.Participants - 1

	est, err := connect.Listen(cfg.ListenAddr,
		connect.WithCapacity(want),
		connect.WithLogger(log),
		connect.WithMetrics(cfg.Metrics))
	if err != nil {
		return domain.SessionDescriptor{}, err
	}
	defer est.Close()

	announceCtx, stopAnnouncing := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		discovery.AnnounceLoop(announceCtx, log, src, cfg.AnnounceInterval, cfg.ParticipantID, est.Addr().Port())
	}()

	ready := est.WaitFor(ctx, want)
	stopAnnouncing()
	wg.Wait()
	if !ready {
		return domain.SessionDescriptor{}, domain.ErrPeerCountMismatch.
			WithDetailsf("%d of %d peers connected", len(est.Peers()), want).
			WithCause(ctx.Err())
	}
	if err := est.StopAccepting(); err != nil {
		log.Debug("stop accepting", "error", err)
	}

	peers := est.Peers()
	ps := []domain.Participant{domain.LocalPlayer(0)}
	addrs := make([]netip.AddrPort, len(peers)+1)
	for i, c := range peers {
		hello, err := c.RecvMetadata(ctx)
		if err != nil {
			return domain.SessionDescriptor{}, domain.ErrConnectFailed.
				WithDetailsf("hello from %s", c.RemoteAddr()).WithCause(err)
		}
		port, err := helloPort(hello)
		if err != nil {
			return domain.SessionDescriptor{}, err
		}
		h := domain.Handle(i + 1)
		addrs[h] = netip.AddrPortFrom(c.RemoteAddr().Addr(), port)
		ps = append(ps, domain.RemotePlayer(h, addrs[h].String()))
		log.Info("participant joined",
			"handle", h,
			"participant_id", hello.Token,
			"peer_addr", addrs[h].String())
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	d := cfg.descriptor(ps, seed, "")
	for i, c := range peers {
		self := domain.Handle(i + 1)
		// The joiner reaches the host at the address it dialed.
		entries := []string{
			sessionEntry(d.ID),
			Entry{Handle: 0, Addr: netip.AddrPortFrom(c.LocalAddr().Addr(), cfg.UDPPort)}.String(),
		}
		for h := 1; h < len(addrs); h++ {
			if domain.Handle(h) != self {
				entries = append(entries, Entry{Handle: domain.Handle(h), Addr: addrs[h]}.String())
			}
		}
		if err := connect.SendMetadata(c, connect.Metadata{Token: seed, Entries: entries}); err != nil {
			return domain.SessionDescriptor{}, domain.ErrConnectFailed.
				WithDetailsf("roster to %s", c.RemoteAddr()).WithCause(err)
		}
	}

	log.Info("lobby complete", "session_id", d.ID, "participants", len(ps))
	return d, nil
}

// Join waits for a host announcement, connects, introduces itself and
// builds its descriptor from the roster it receives.
func Join(ctx context.Context, src discovery.Source, cfg Config) (domain.SessionDescriptor, error) {
	log := cfg.logger()
	est := connect.New(connect.WithLogger(log), connect.WithMetrics(cfg.Metrics))
	defer est.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var host *connect.Conn
	for host == nil {
		if a, ok := src.Poll(); ok {
			if a.ParticipantID == cfg.ParticipantID {
				continue
			}
			c, err := est.Dial(ctx, a.AddrPort())
			if err != nil {
				return domain.SessionDescriptor{}, err
			}
			host = c
			log.Info("found host",
				"participant_id", a.ParticipantID,
				"peer_addr", a.AddrPort().String())
			continue
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return domain.SessionDescriptor{}, domain.ErrDiscoveryFailed.
				WithDetails("no host announcement").WithCause(ctx.Err())
		}
	}

	hello := connect.Metadata{
		Token:   cfg.ParticipantID,
		Entries: []string{strconv.Itoa(int(cfg.UDPPort))},
	}
	if err := connect.SendMetadata(host, hello); err != nil {
		return domain.SessionDescriptor{}, domain.ErrConnectFailed.WithDetails("hello").WithCause(err)
	}
	roster, err := host.RecvMetadata(ctx)
	if err != nil {
		return domain.SessionDescriptor{}, domain.ErrConnectFailed.WithDetails("roster").WithCause(err)
	}

	sid, entries, err := splitSession(roster.Entries)
	if err != nil {
		return domain.SessionDescriptor{}, err
	}
	ps, self, err := Participants(entries)
	if err != nil {
		return domain.SessionDescriptor{}, err
	}
	d := cfg.descriptor(ps, roster.Token, sid)
	log.Info("lobby complete",
		"session_id", d.ID,
		"handle", self,
		"participants", len(ps))
	return d, nil
}

func helloPort(m connect.Metadata) (uint16, error) {
	if len(m.Entries) != 1 {
		return 0, domain.ErrInvalidRoster.WithDetailsf("hello with %d entries", len(m.Entries))
	}
	port, err := strconv.ParseUint(m.Entries[0], 10, 16)
	if err != nil || port == 0 {
		return 0, domain.ErrInvalidRoster.WithDetailsf("hello port %q", m.Entries[0])
	}
	return uint16(port), nil
}
