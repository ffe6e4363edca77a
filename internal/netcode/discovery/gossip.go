package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// metaUpdateTimeout bounds how long Announce waits for the new node
// metadata to be broadcast.
const metaUpdateTimeout = time.Second

// GossipConfig configures a Gossip source.
type GossipConfig struct {
	// NodeName must be unique in the gossip pool; a random name is used
	// when empty.
	NodeName string

	// BindAddr and BindPort are the gossip listen address. Port 0 picks a
	// free port.
	BindAddr string
	BindPort int

	// Seeds are gossip addresses of already running participants.
	Seeds []string

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Gossip discovers participants through a memberlist pool, for networks
// that drop multicast. The handshake travels as node metadata.
type Gossip struct {
	ml      *memberlist.Memberlist
	name    string
	ch      chan Announcement
	logger  *slog.Logger
	metrics *metric.Registry

	mu   sync.Mutex
	meta []byte

	closed atomic.Bool
}

// NewGossip starts a memberlist node and joins the seeds.
func NewGossip(cfg GossipConfig) (*Gossip, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NodeName == "" {
		cfg.NodeName = "goudanet-" + ulid.Make().String()
	}

	g := &Gossip{
		name:    cfg.NodeName,
		ch:      make(chan Announcement, pollBuffer),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeName
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.Delegate = &metaDelegate{gossip: g}
	mlConfig.Events = &gossipEvents{gossip: g}
	mlConfig.Logger = logger.NewStdLogger(cfg.Logger, "memberlist")

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	g.ml = ml

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined gossip pool",
			"node", cfg.NodeName,
			"seeds", cfg.Seeds,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started gossip discovery",
			"node", cfg.NodeName)
	}
	return g, nil
}

// Addr returns the gossip address other participants use as a seed.
func (g *Gossip) Addr() string {
	n := g.ml.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Announce publishes the handshake as this node's metadata.
func (g *Gossip) Announce(participantID uint64, tcpPort uint16) error {
	if g.closed.Load() {
		return net.ErrClosed
	}
	meta := []byte(Encode(Handshake{Port: tcpPort, ParticipantID: participantID}))

	g.mu.Lock()
	changed := string(meta) != string(g.meta)
	g.meta = meta
	g.mu.Unlock()

	if !changed {
		return nil
	}
	return g.ml.UpdateNode(metaUpdateTimeout)
}

// Poll returns the next announcement from another node, if any.
func (g *Gossip) Poll() (Announcement, bool) {
	return poll(g.ch)
}

// Close leaves the pool and shuts the node down.
func (g *Gossip) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := g.ml.Leave(metaUpdateTimeout); err != nil {
		g.logger.Debug("gossip leave failed", "error", err)
	}
	if err := g.ml.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	return nil
}

func (g *Gossip) handle(node *memberlist.Node) {
	if node.Name == g.name || g.closed.Load() {
		return
	}
	hs, ok := Decode(string(node.Meta))
	if !ok {
		// Joined but not announcing yet.
		return
	}
	addr, ok := netip.AddrFromSlice(node.Addr)
	if !ok {
		g.metrics.RecordDiscovery("malformed")
		return
	}
	if !offer(g.ch, Announcement{From: addr.Unmap(), Handshake: hs}) {
		g.metrics.RecordDiscovery("dropped")
		return
	}
	g.metrics.RecordDiscovery("accepted")
}

// metaDelegate serves the current handshake as node metadata.
type metaDelegate struct {
	gossip *Gossip
}

func (d *metaDelegate) NodeMeta(limit int) []byte {
	d.gossip.mu.Lock()
	defer d.gossip.mu.Unlock()
	if len(d.gossip.meta) > limit {
		return nil
	}
	return append([]byte(nil), d.gossip.meta...)
}

func (d *metaDelegate) NotifyMsg([]byte)                           {}
func (d *metaDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *metaDelegate) LocalState(join bool) []byte                { return nil }
func (d *metaDelegate) MergeRemoteState(buf []byte, join bool)     {}

// gossipEvents turns membership changes into announcements.
type gossipEvents struct {
	gossip *Gossip
}

func (e *gossipEvents) NotifyJoin(node *memberlist.Node) {
	e.gossip.logger.Debug("gossip node joined",
		"node", node.Name,
		"addr", node.Addr.String())
	e.gossip.handle(node)
}

func (e *gossipEvents) NotifyUpdate(node *memberlist.Node) {
	e.gossip.handle(node)
}

func (e *gossipEvents) NotifyLeave(node *memberlist.Node) {
	e.gossip.logger.Debug("gossip node left",
		"node", node.Name,
		"addr", node.Addr.String())
}
