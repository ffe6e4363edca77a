package command

import (
	"context"
	"net/netip"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/goudanet-go/internal/netcode/discovery"
	"github.com/yndnr/goudanet-go/internal/peer/config"
	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
)

// discoverPoll paces polling of the discovery source.
const discoverPoll = 20 * time.Millisecond

// DiscoverCommand listens for lobby announcements.
func DiscoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Listen for hosts announcing a session",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to listen",
				Value: 3 * time.Second,
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Stop after this many distinct hosts (0 = until timeout)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Override discovery.backend (multicast, gossip)",
			},
			setFlag,
		},
		Action: discover,
	}
}

type hostRow struct {
	ParticipantID uint64    `yaml:"participant_id" json:"participant_id"`
	Addr          string    `yaml:"addr" json:"addr"`
	Seen          int       `yaml:"seen" json:"seen" table:"wide"`
	Last          time.Time `yaml:"last" json:"last" table:"wide"`
}

func discover(c *cli.Context) error {
	cfg, err := loadPeerConfig(ParseGlobalFlags(c).Config, c.StringSlice("set"))
	if err != nil {
		return cli.Exit("discover: "+err.Error(), 1)
	}
	if b := c.String("backend"); b != "" {
		cfg.Discovery.Backend = b
	}
	if err := config.Verify(cfg); err != nil {
		return cli.Exit("discover: "+err.Error(), 1)
	}

	// Keep library logging off the result stream.
	log := logger.NewSlog(logger.Config{Level: "error", Format: "text", Output: c.App.ErrWriter})
	src, err := cfg.NewDiscovery(log, nil)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	rows := collectHosts(ctx, src, c.Int("count"))
	return render(c, rows)
}

// collectHosts polls src until ctx is done or count distinct hosts were
// seen, and returns one row per host in order of first sighting.
func collectHosts(ctx context.Context, src discovery.Source, count int) []hostRow {
	var rows []hostRow
	index := make(map[uint64]int)
	ticker := time.NewTicker(discoverPoll)
	defer ticker.Stop()

	for {
		for {
			a, ok := src.Poll()
			if !ok {
				break
			}
			key := a.ParticipantID
			i, seen := index[key]
			if !seen {
				i = len(rows)
				index[key] = i
				rows = append(rows, hostRow{ParticipantID: key})
			}
			rows[i].Addr = netip.AddrPortFrom(a.From, a.Port).String()
			rows[i].Seen++
			rows[i].Last = time.Now().UTC()
		}
		if count > 0 && len(rows) >= count {
			return rows
		}
		select {
		case <-ctx.Done():
			return rows
		case <-ticker.C:
		}
	}
}
