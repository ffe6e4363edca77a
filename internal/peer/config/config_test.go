package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/infra/confloader"
	"github.com/yndnr/goudanet-go/internal/netcode/discovery"
	"github.com/yndnr/goudanet-go/internal/storage/journal"
)

const testSessionID = "gnss-01j9x3m2k4p5q6r7s8t9v0w1y2"

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Peer.UDPPort != DefaultUDPPort {
		t.Errorf("Peer.UDPPort = %d, want %d", cfg.Peer.UDPPort, DefaultUDPPort)
	}
	if cfg.Peer.Participants != DefaultParticipants {
		t.Errorf("Peer.Participants = %d, want %d", cfg.Peer.Participants, DefaultParticipants)
	}
	if cfg.Discovery.Backend != BackendMulticast {
		t.Errorf("Discovery.Backend = %q, want %q", cfg.Discovery.Backend, BackendMulticast)
	}
	if cfg.Discovery.Group != discovery.DefaultGroup {
		t.Errorf("Discovery.Group = %q, want %q", cfg.Discovery.Group, discovery.DefaultGroup)
	}
	if cfg.Session.TickRate != domain.DefaultTickRate {
		t.Errorf("Session.TickRate = %d, want %d", cfg.Session.TickRate, domain.DefaultTickRate)
	}
	if cfg.Journal.Enabled {
		t.Error("Journal should be disabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*PeerConfig)
		wantErr string
	}{
		{"valid host", func(c *PeerConfig) { c.Peer.Host = true; c.Peer.Participants = 4 }, ""},
		{"udp port zero", func(c *PeerConfig) { c.Peer.UDPPort = 0 }, "peer.udp_port"},
		{"udp port too large", func(c *PeerConfig) { c.Peer.UDPPort = 70000 }, "peer.udp_port"},
		{"negative frames", func(c *PeerConfig) { c.Peer.Frames = -1 }, "peer.frames"},
		{"host alone", func(c *PeerConfig) { c.Peer.Host = true; c.Peer.Participants = 1 }, "peer.participants"},
		{"host too many", func(c *PeerConfig) { c.Peer.Host = true; c.Peer.Participants = 9 }, "peer.participants"},
		{"host bad listen", func(c *PeerConfig) { c.Peer.Host = true; c.Peer.ListenAddr = "nope" }, "peer.listen_addr"},
		{"no lobby timeout", func(c *PeerConfig) { c.Peer.LobbyTimeout = 0 }, "peer.lobby_timeout"},
		{"roster", func(c *PeerConfig) {
			c.Peer.Roster = []string{"1@127.0.0.1:7000"}
			c.Session.Seed = 3
			c.Session.ID = testSessionID
		}, ""},
		{"roster without seed", func(c *PeerConfig) {
			c.Peer.Roster = []string{"1@127.0.0.1:7000"}
			c.Session.ID = testSessionID
		}, "session.seed"},
		{"roster without session id", func(c *PeerConfig) {
			c.Peer.Roster = []string{"1@127.0.0.1:7000"}
			c.Session.Seed = 3
		}, "session.id"},
		{"malformed session id", func(c *PeerConfig) { c.Session.ID = "session-1" }, "session.id"},
		{"host with session id", func(c *PeerConfig) {
			c.Peer.Host = true
			c.Session.ID = testSessionID
		}, ""},
		{"roster with host", func(c *PeerConfig) {
			c.Peer.Roster = []string{"1@127.0.0.1:7000"}
			c.Peer.Host = true
			c.Session.Seed = 3
		}, "mutually exclusive"},
		{"roster malformed", func(c *PeerConfig) {
			c.Peer.Roster = []string{"127.0.0.1:7000"}
			c.Session.Seed = 3
		}, "peer.roster"},
		{"unknown backend", func(c *PeerConfig) { c.Discovery.Backend = "carrier-pigeon" }, "discovery.backend"},
		{"unicast group", func(c *PeerConfig) { c.Discovery.Group = "10.0.0.1:7171" }, "not a multicast"},
		{"bad ttl", func(c *PeerConfig) { c.Discovery.TTL = 300 }, "discovery.ttl"},
		{"gossip", func(c *PeerConfig) {
			c.Discovery.Backend = BackendGossip
			c.Discovery.Gossip.Seeds = []string{"10.0.0.2:7946"}
		}, ""},
		{"gossip bad seed", func(c *PeerConfig) {
			c.Discovery.Backend = BackendGossip
			c.Discovery.Gossip.Seeds = []string{"10.0.0.2"}
		}, "discovery.gossip.seeds"},
		{"tick rate zero", func(c *PeerConfig) { c.Session.TickRate = 0 }, "session.tick_rate"},
		{"prediction too large", func(c *PeerConfig) { c.Session.MaxPrediction = domain.MaxPredictionLimit + 1 }, "session.max_prediction"},
		{"input delay negative", func(c *PeerConfig) { c.Session.InputDelay = -1 }, "session.input_delay"},
		{"checksum interval negative", func(c *PeerConfig) { c.Session.ChecksumInterval = -1 }, "session.checksum_interval"},
		{"journal sync mode", func(c *PeerConfig) { c.Journal.Enabled = true; c.Journal.SyncMode = "never" }, "journal.sync_mode"},
		{"journal without dir", func(c *PeerConfig) { c.Journal.Enabled = true; c.Journal.Dir = "" }, "journal.dir"},
		{"journal retain", func(c *PeerConfig) { c.Journal.Enabled = true; c.Journal.Retain = 0 }, "journal.retain"},
		{"disabled journal ignored", func(c *PeerConfig) { c.Journal.SyncMode = "never" }, ""},
		{"metrics addr", func(c *PeerConfig) { c.Metrics.Enabled = true; c.Metrics.Addr = "9272" }, "metrics.addr"},
		{"log level", func(c *PeerConfig) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *PeerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Verify() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_Nil(t *testing.T) {
	if err := Verify(nil); err == nil {
		t.Error("Verify(nil) should fail")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peer.yaml")
	content := `
peer:
  host: true
  participants: 3
  udp_port: 7300
discovery:
  backend: gossip
  gossip:
    seeds: ["10.0.0.2:7946"]
session:
  max_prediction: 4
  seed: 99
journal:
  enabled: true
  dir: ` + dir + `
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("GOUDANET_SESSION__INPUT_DELAY", "2")
	t.Setenv("GOUDANET_PEER__LOBBY_TIMEOUT", "5s")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !cfg.Peer.Host || cfg.Peer.Participants != 3 || cfg.Peer.UDPPort != 7300 {
		t.Errorf("Peer = %+v", cfg.Peer)
	}
	if cfg.Discovery.Backend != BackendGossip || len(cfg.Discovery.Gossip.Seeds) != 1 {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	if cfg.Session.MaxPrediction != 4 || cfg.Session.Seed != 99 || cfg.Session.InputDelay != 2 {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Peer.LobbyTimeout != 5*time.Second {
		t.Errorf("Peer.LobbyTimeout = %v, want 5s", cfg.Peer.LobbyTimeout)
	}
	// Keys the file does not set keep their defaults.
	if cfg.Session.TickRate != domain.DefaultTickRate {
		t.Errorf("Session.TickRate = %d, want %d", cfg.Session.TickRate, domain.DefaultTickRate)
	}
	if cfg.Journal.SyncMode != DefaultSyncMode {
		t.Errorf("Journal.SyncMode = %q, want %q", cfg.Journal.SyncMode, DefaultSyncMode)
	}
}

func TestTemplate(t *testing.T) {
	cfg := Default()
	cfg.Session.InputDelay = 2
	cfg.Session.Seed = 5

	d := cfg.Template()
	if d.LocalPort != DefaultUDPPort || d.TickRate != cfg.Session.TickRate || d.InputDelay != 2 || d.Seed != 5 {
		t.Errorf("Template() = %+v", d)
	}
	if len(d.Participants) != 0 {
		t.Errorf("Template() has %d participants, want 0", len(d.Participants))
	}

	h := cfg.HostConfig(7, nil, nil)
	if h.ParticipantID != 7 || h.Participants != cfg.Peer.Participants || h.Seed != 5 || h.Template.InputDelay != 2 {
		t.Errorf("HostConfig() = %+v", h)
	}
}

func TestStaticDescriptor(t *testing.T) {
	cfg := Default()
	cfg.Peer.Roster = []string{"0@127.0.0.1:7000", "2@127.0.0.1:7002"}
	cfg.Session.Seed = 3
	cfg.Session.ID = testSessionID

	d, err := cfg.StaticDescriptor()
	if err != nil {
		t.Fatalf("StaticDescriptor() error = %v", err)
	}
	if len(d.Participants) != 3 || d.Seed != 3 || d.ID != testSessionID {
		t.Fatalf("StaticDescriptor() = %+v", d)
	}
	if got := d.LocalHandles(); len(got) != 1 || got[0] != 1 {
		t.Errorf("LocalHandles() = %v, want [1]", got)
	}

	// Another participant of the same roster names the same session.
	other := Default()
	other.Peer.Roster = []string{"1@127.0.0.1:7001", "2@127.0.0.1:7002"}
	other.Session.Seed = 3
	other.Session.ID = testSessionID
	od, err := other.StaticDescriptor()
	if err != nil {
		t.Fatalf("StaticDescriptor() error = %v", err)
	}
	if od.ID != d.ID || od.Seed != d.Seed {
		t.Errorf("StaticDescriptor() = %s/%d, want %s/%d", od.ID, od.Seed, d.ID, d.Seed)
	}

	cfg.Session.ID = ""
	if _, err := cfg.StaticDescriptor(); err == nil {
		t.Error("StaticDescriptor() without session.id succeeded")
	}
	cfg.Session.ID = testSessionID

	cfg.Peer.Roster = []string{"0@127.0.0.1:7000", "0@127.0.0.1:7001"}
	if _, err := cfg.StaticDescriptor(); err == nil {
		t.Error("StaticDescriptor() with a duplicate handle succeeded")
	}
}

func TestParticipantID(t *testing.T) {
	cfg := Default()
	id, err := cfg.ParticipantID()
	if err != nil {
		t.Fatalf("ParticipantID() error = %v", err)
	}
	if id == 0 || cfg.Peer.ID != id {
		t.Errorf("ParticipantID() = %d, stored %d", id, cfg.Peer.ID)
	}
	again, _ := cfg.ParticipantID()
	if again != id {
		t.Errorf("second ParticipantID() = %d, want %d", again, id)
	}
}

func TestJournalConfig(t *testing.T) {
	cfg := Default()
	cfg.Journal.SyncMode = "sync"
	jc := cfg.JournalConfig(nil)
	if jc.Dir != DefaultJournalDir || jc.SyncMode != journal.SyncModeSync {
		t.Errorf("JournalConfig() = %+v", jc)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Peer.Roster = []string{"1@10.1.2.3:7000"}
	cfg.Discovery.Gossip.Seeds = []string{"10.1.2.4:7946"}

	sanitized := Sanitize(cfg)

	if cfg.Peer.Roster[0] != "1@10.1.2.3:7000" {
		t.Error("Original config should not be modified")
	}
	if got := sanitized.Peer.Roster[0]; got != "1@10.1.x.x:7000" {
		t.Errorf("Roster[0] = %q, want %q", got, "1@10.1.x.x:7000")
	}
	if got := sanitized.Discovery.Gossip.Seeds[0]; got != "10.1.x.x:7946" {
		t.Errorf("Seeds[0] = %q, want %q", got, "10.1.x.x:7946")
	}
}
