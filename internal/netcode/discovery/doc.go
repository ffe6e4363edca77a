// Package discovery finds other participants before a session starts.
//
// A participant announces "GOUDA:<tcp_port>:<participant_id>" and polls
// for the announcements of others. Two sources implement this:
//
//   - Multicast: UDP datagrams on a fixed group (239.255.71.71:7171)
//   - Gossip: a hashicorp/memberlist pool carrying the handshake as node
//     metadata, for networks that do not route multicast
//
// Malformed messages are dropped silently. The same participant may be
// reported many times; callers de-duplicate by address.
package discovery
