package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/lobby"
	"github.com/yndnr/goudanet-go/internal/storage/journal"
	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *PeerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := verifyPeer(cfg); err != nil {
		return err
	}
	if err := verifyDiscovery(&cfg.Discovery); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifyJournal(&cfg.Journal); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyPeer(cfg *PeerConfig) error {
	p := &cfg.Peer
	if p.UDPPort <= 0 || p.UDPPort > 65535 {
		return fmt.Errorf("peer.udp_port %d outside [1, 65535]", p.UDPPort)
	}
	if p.Frames < 0 {
		return fmt.Errorf("peer.frames %d is negative", p.Frames)
	}
	if len(p.Roster) > 0 {
		if p.Host {
			return errors.New("peer.roster and peer.host are mutually exclusive")
		}
		if _, _, err := lobby.Participants(p.Roster); err != nil {
			return fmt.Errorf("peer.roster: %w", err)
		}
		if cfg.Session.Seed == 0 {
			return errors.New("peer.roster requires session.seed")
		}
		if cfg.Session.ID == "" {
			return errors.New("peer.roster requires session.id")
		}
		return nil
	}
	if p.Host {
		if p.Participants < 2 || p.Participants > domain.MaxParticipants {
			return fmt.Errorf("peer.participants %d outside [2, %d]", p.Participants, domain.MaxParticipants)
		}
		if _, _, err := net.SplitHostPort(p.ListenAddr); err != nil {
			return fmt.Errorf("peer.listen_addr %q: %w", p.ListenAddr, err)
		}
	}
	if p.LobbyTimeout <= 0 {
		return errors.New("peer.lobby_timeout must be positive")
	}
	return nil
}

func verifyDiscovery(cfg *DiscoverySection) error {
	switch cfg.Backend {
	case BackendMulticast:
		ap, err := netip.ParseAddrPort(cfg.Group)
		if err != nil {
			return fmt.Errorf("discovery.group %q: %w", cfg.Group, err)
		}
		if !ap.Addr().IsMulticast() {
			return fmt.Errorf("discovery.group %q is not a multicast address", cfg.Group)
		}
		if cfg.TTL < 0 || cfg.TTL > 255 {
			return fmt.Errorf("discovery.ttl %d outside [0, 255]", cfg.TTL)
		}
	case BackendGossip:
		if cfg.Gossip.BindPort < 0 || cfg.Gossip.BindPort > 65535 {
			return fmt.Errorf("discovery.gossip.bind_port %d outside [0, 65535]", cfg.Gossip.BindPort)
		}
		for _, s := range cfg.Gossip.Seeds {
			if _, _, err := net.SplitHostPort(s); err != nil {
				return fmt.Errorf("discovery.gossip.seeds: %q: %w", s, err)
			}
		}
	default:
		return fmt.Errorf("discovery.backend %q must be %s or %s", cfg.Backend, BackendMulticast, BackendGossip)
	}
	if cfg.AnnounceInterval < 0 {
		return errors.New("discovery.announce_interval is negative")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.TickRate <= 0 || cfg.TickRate > 240 {
		return fmt.Errorf("session.tick_rate %d outside [1, 240]", cfg.TickRate)
	}
	if cfg.MaxPrediction < 0 || cfg.MaxPrediction > domain.MaxPredictionLimit {
		return fmt.Errorf("session.max_prediction %d outside [0, %d]", cfg.MaxPrediction, domain.MaxPredictionLimit)
	}
	if cfg.InputDelay < 0 || cfg.InputDelay > domain.MaxInputDelay {
		return fmt.Errorf("session.input_delay %d outside [0, %d]", cfg.InputDelay, domain.MaxInputDelay)
	}
	if cfg.ChecksumInterval < 0 {
		return fmt.Errorf("session.checksum_interval %d is negative", cfg.ChecksumInterval)
	}
	if cfg.ID != "" && !domain.IsValidSessionID(cfg.ID) {
		return fmt.Errorf("session.id %q is not a %s<ulid> id", cfg.ID, domain.SessionIDPrefix)
	}
	return nil
}

func verifyJournal(cfg *JournalSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir == "" {
		return errors.New("journal.dir is required when the journal is enabled")
	}
	switch journal.SyncMode(cfg.SyncMode) {
	case journal.SyncModeSync, journal.SyncModeBatch:
	default:
		return fmt.Errorf("journal.sync_mode %q must be sync or batch", cfg.SyncMode)
	}
	if cfg.Retain < 1 {
		return errors.New("journal.retain must be at least 1")
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("metrics.addr %q: %w", cfg.Addr, err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q must be debug, info, warn or error", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Format)
	}
	return nil
}
