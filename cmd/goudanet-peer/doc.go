// Package main provides the entry point for goudanet-peer.
//
// A peer is one participant of a rollback session. It:
//
//   - finds the other participants over multicast or gossip discovery,
//     or takes them from a static roster
//   - agrees on handles and the world seed in the lobby
//   - runs the demo duel world with scripted input
//   - records confirmed frames to a journal when enabled
//
// Usage:
//
//	goudanet-peer [flags]
//	goudanet-peer -config /path/to/peer.yaml
//	goudanet-peer -config peer.yaml -set peer.host=true -set peer.participants=3
//
// The peer exits when interrupted, after peer.frames frames, or when the
// session fails with a desync.
package main
