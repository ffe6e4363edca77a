package config

import (
	"slices"
	"strings"

	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
)

// Sanitize returns a copy of the config with peer addresses masked.
//
// This is used for logging configuration without exposing the network
// layout of the participants.
func Sanitize(cfg *PeerConfig) *PeerConfig {
	sanitized := *cfg

	sanitized.Peer.Roster = slices.Clone(cfg.Peer.Roster)
	for i, e := range sanitized.Peer.Roster {
		sanitized.Peer.Roster[i] = maskEntry(e)
	}
	sanitized.Discovery.Gossip.Seeds = slices.Clone(cfg.Discovery.Gossip.Seeds)
	for i, s := range sanitized.Discovery.Gossip.Seeds {
		sanitized.Discovery.Gossip.Seeds[i] = logger.RedactAddr(s)
	}
	return &sanitized
}

// maskEntry masks the address of a "<handle>@<ip:port>" roster entry.
func maskEntry(e string) string {
	h, addr, ok := strings.Cut(e, "@")
	if !ok {
		return logger.RedactAddr(e)
	}
	return h + "@" + logger.RedactAddr(addr)
}
