package config

import "time"

// PeerConfig is the root configuration for goudanet-peer.
type PeerConfig struct {
	Peer      PeerSection      `koanf:"peer" yaml:"peer" json:"peer"`
	Discovery DiscoverySection `koanf:"discovery" yaml:"discovery" json:"discovery"`
	Session   SessionSection   `koanf:"session" yaml:"session" json:"session"`
	Journal   JournalSection   `koanf:"journal" yaml:"journal" json:"journal"`
	Metrics   MetricsSection   `koanf:"metrics" yaml:"metrics" json:"metrics"`
	Log       LogSection       `koanf:"log" yaml:"log" json:"log"`
}

// PeerSection configures this participant.
type PeerSection struct {
	// ID identifies the participant in announcements. A random ID is
	// generated at startup when zero.
	ID uint64 `koanf:"id" yaml:"id" json:"id"`

	// Host makes this participant wait for the others and hand out the
	// roster. Exactly one participant of a session hosts.
	Host bool `koanf:"host" yaml:"host" json:"host"`

	// Participants is the session size including the host. Only the host
	// reads it.
	Participants int `koanf:"participants" yaml:"participants" json:"participants"`

	// ListenAddr is the TCP address the host accepts lobby connections on.
	ListenAddr string `koanf:"listen_addr" yaml:"listen_addr" json:"listen_addr"`

	// UDPPort is the per-frame transport port.
	UDPPort int `koanf:"udp_port" yaml:"udp_port" json:"udp_port"`

	// Roster lists the other participants as "<handle>@<ip:port>" and
	// skips discovery and the lobby. Every participant then needs the same
	// session.seed.
	Roster []string `koanf:"roster" yaml:"roster" json:"roster"`

	// LobbyTimeout bounds discovery and the lobby handshake.
	LobbyTimeout time.Duration `koanf:"lobby_timeout" yaml:"lobby_timeout" json:"lobby_timeout"`

	// Frames stops the session after this many frames; 0 runs until
	// interrupted.
	Frames int `koanf:"frames" yaml:"frames" json:"frames"`

	// InputSeed seeds the scripted input source; the participant ID is
	// used when zero.
	InputSeed uint64 `koanf:"input_seed" yaml:"input_seed" json:"input_seed"`
}

// DiscoverySection configures how participants find each other.
type DiscoverySection struct {
	// Backend is "multicast" or "gossip".
	Backend string `koanf:"backend" yaml:"backend" json:"backend"`

	// Group is the multicast group "ip:port".
	Group string `koanf:"group" yaml:"group" json:"group"`

	// Interface names the multicast interface; empty lets the system choose.
	Interface string `koanf:"interface" yaml:"interface" json:"interface"`

	TTL      int  `koanf:"ttl" yaml:"ttl" json:"ttl"`
	Loopback bool `koanf:"loopback" yaml:"loopback" json:"loopback"`

	// AnnounceInterval paces the host's announcements.
	AnnounceInterval time.Duration `koanf:"announce_interval" yaml:"announce_interval" json:"announce_interval"`

	Gossip GossipSection `koanf:"gossip" yaml:"gossip" json:"gossip"`
}

// GossipSection configures the memberlist backend.
type GossipSection struct {
	BindAddr string `koanf:"bind_addr" yaml:"bind_addr" json:"bind_addr"`
	BindPort int    `koanf:"bind_port" yaml:"bind_port" json:"bind_port"`

	// Seeds are gossip addresses of running participants.
	// Format: ["192.168.1.10:7946", "192.168.1.11:7946"]
	Seeds []string `koanf:"seeds" yaml:"seeds" json:"seeds"`
}

// SessionSection configures timing and determinism.
type SessionSection struct {
	TickRate         int `koanf:"tick_rate" yaml:"tick_rate" json:"tick_rate"`
	MaxPrediction    int `koanf:"max_prediction" yaml:"max_prediction" json:"max_prediction"`
	InputDelay       int `koanf:"input_delay" yaml:"input_delay" json:"input_delay"`
	ChecksumInterval int `koanf:"checksum_interval" yaml:"checksum_interval" json:"checksum_interval"`

	// Seed is the world seed. The host picks a random one when zero.
	Seed uint64 `koanf:"seed" yaml:"seed" json:"seed"`

	// ID is the session id ("gnss-<ulid>"). Joiners always take the host's;
	// a host generates one when empty. Static rosters must set it on every
	// participant.
	ID string `koanf:"id" yaml:"id" json:"id"`
}

// JournalSection configures confirmed-frame recording.
type JournalSection struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Dir      string `koanf:"dir" yaml:"dir" json:"dir"`
	SyncMode string `koanf:"sync_mode" yaml:"sync_mode" json:"sync_mode"`

	// Retain is the number of journals kept in Dir.
	Retain int `koanf:"retain" yaml:"retain" json:"retain"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr" json:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level       string `koanf:"level" yaml:"level" json:"level"`
	Format      string `koanf:"format" yaml:"format" json:"format"`
	RedactAddrs bool   `koanf:"redact_addrs" yaml:"redact_addrs" json:"redact_addrs"`
}
