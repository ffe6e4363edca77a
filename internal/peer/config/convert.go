package config

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/discovery"
	"github.com/yndnr/goudanet-go/internal/netcode/lobby"
	"github.com/yndnr/goudanet-go/internal/storage/journal"
	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// ParticipantID returns peer.id, generating and storing a random non-zero
// ID when it is unset.
func (c *PeerConfig) ParticipantID() (uint64, error) {
	for c.Peer.ID == 0 {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("generate participant id: %w", err)
		}
		c.Peer.ID = binary.LittleEndian.Uint64(b[:])
	}
	return c.Peer.ID, nil
}

// Static reports whether the session is set up from peer.roster instead of
// discovery.
func (c *PeerConfig) Static() bool {
	return len(c.Peer.Roster) > 0
}

// Template returns a descriptor carrying the session timing settings and
// no participants.
func (c *PeerConfig) Template() domain.SessionDescriptor {
	return domain.SessionDescriptor{
		LocalPort:        uint16(c.Peer.UDPPort),
		TickRate:         c.Session.TickRate,
		MaxPrediction:    c.Session.MaxPrediction,
		InputDelay:       c.Session.InputDelay,
		ChecksumInterval: c.Session.ChecksumInterval,
		Seed:             c.Session.Seed,
		ID:               c.Session.ID,
	}
}

// StaticDescriptor builds the descriptor of a session configured through
// peer.roster. Every participant carries the same session.id and
// session.seed, so their descriptors name the same session.
func (c *PeerConfig) StaticDescriptor() (domain.SessionDescriptor, error) {
	ps, _, err := lobby.Participants(c.Peer.Roster)
	if err != nil {
		return domain.SessionDescriptor{}, err
	}
	d := c.Template()
	if !domain.IsValidSessionID(d.ID) {
		return domain.SessionDescriptor{}, domain.ErrInvalidSessionConfig.WithDetailsf("session.id %q", d.ID)
	}
	d.Participants = ps
	if err := d.Validate(); err != nil {
		return domain.SessionDescriptor{}, err
	}
	return d, nil
}

// LobbyConfig maps the configuration onto a joiner's lobby settings.
func (c *PeerConfig) LobbyConfig(id uint64, log *slog.Logger, m *metric.Registry) lobby.Config {
	return lobby.Config{
		ParticipantID: id,
		UDPPort:       uint16(c.Peer.UDPPort),
		Template:      c.Template(),
		Logger:        log,
		Metrics:       m,
	}
}

// HostConfig maps the configuration onto the host's lobby settings.
func (c *PeerConfig) HostConfig(id uint64, log *slog.Logger, m *metric.Registry) lobby.HostConfig {
	return lobby.HostConfig{
		Config:           c.LobbyConfig(id, log, m),
		Participants:     c.Peer.Participants,
		ListenAddr:       c.Peer.ListenAddr,
		AnnounceInterval: c.Discovery.AnnounceInterval,
		Seed:             c.Session.Seed,
	}
}

// NewDiscovery opens the configured discovery backend.
func (c *PeerConfig) NewDiscovery(log *slog.Logger, m *metric.Registry) (discovery.Source, error) {
	switch c.Discovery.Backend {
	case BackendMulticast:
		src, err := discovery.NewMulticast(c.MulticastConfig(log, m))
		if err != nil {
			return nil, err
		}
		return src, nil
	case BackendGossip:
		src, err := discovery.NewGossip(c.GossipConfig(log, m))
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown discovery backend %q", c.Discovery.Backend)
	}
}

// MulticastConfig maps the discovery section onto the multicast backend.
func (c *PeerConfig) MulticastConfig(log *slog.Logger, m *metric.Registry) discovery.MulticastConfig {
	return discovery.MulticastConfig{
		Group:     c.Discovery.Group,
		Interface: c.Discovery.Interface,
		TTL:       c.Discovery.TTL,
		Loopback:  c.Discovery.Loopback,
		Logger:    log,
		Metrics:   m,
	}
}

// GossipConfig maps the discovery section onto the gossip backend.
func (c *PeerConfig) GossipConfig(log *slog.Logger, m *metric.Registry) discovery.GossipConfig {
	var name string
	if c.Peer.ID != 0 {
		name = fmt.Sprintf("goudanet-%016x", c.Peer.ID)
	}
	return discovery.GossipConfig{
		NodeName: name,
		BindAddr: c.Discovery.Gossip.BindAddr,
		BindPort: c.Discovery.Gossip.BindPort,
		Seeds:    c.Discovery.Gossip.Seeds,
		Logger:   log,
		Metrics:  m,
	}
}

// JournalConfig maps the journal section onto the writer settings.
func (c *PeerConfig) JournalConfig(m *metric.Registry) journal.Config {
	cfg := journal.DefaultConfig(c.Journal.Dir)
	cfg.SyncMode = journal.SyncMode(c.Journal.SyncMode)
	cfg.Metrics = m
	return cfg
}

// LoggerConfig maps the log section onto the logger settings.
func (c *PeerConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		Output:      os.Stderr,
		RedactAddrs: c.Log.RedactAddrs,
	}
}
