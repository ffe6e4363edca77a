package config

import (
	"time"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/discovery"
)

// Default configuration values.
const (
	DefaultParticipants = 2
	DefaultListenAddr   = ":0"
	DefaultUDPPort      = 7272
	DefaultLobbyTimeout = 60 * time.Second

	BackendMulticast = "multicast"
	BackendGossip    = "gossip"

	DefaultGossipPort = 7946

	DefaultJournalDir = "journals"
	DefaultSyncMode   = "batch"
	DefaultRetain     = 20

	DefaultMetricsAddr = "127.0.0.1:9272"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default peer configuration.
func Default() *PeerConfig {
	return &PeerConfig{
		Peer: PeerSection{
			Participants: DefaultParticipants,
			ListenAddr:   DefaultListenAddr,
			UDPPort:      DefaultUDPPort,
			LobbyTimeout: DefaultLobbyTimeout,
		},
		Discovery: DiscoverySection{
			Backend:          BackendMulticast,
			Group:            discovery.DefaultGroup,
			TTL:              discovery.DefaultTTL,
			Loopback:         true,
			AnnounceInterval: discovery.DefaultAnnounceInterval,
			Gossip: GossipSection{
				BindAddr: "0.0.0.0",
				BindPort: DefaultGossipPort,
			},
		},
		Session: SessionSection{
			TickRate:         domain.DefaultTickRate,
			MaxPrediction:    domain.DefaultMaxPrediction,
			ChecksumInterval: domain.DefaultChecksumInterval,
		},
		Journal: JournalSection{
			Enabled:  false,
			Dir:      DefaultJournalDir,
			SyncMode: DefaultSyncMode,
			Retain:   DefaultRetain,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
