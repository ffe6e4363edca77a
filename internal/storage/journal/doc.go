// Package journal records the confirmed frames of a session and replays
// them.
//
// Each session writes one append-only file named after its session id:
//
//	gnss-<ulid>.gnj
//	[magic:8 "GNJRNL\x00\x01"]
//	[Entry: header]
//	[Entry: frame]*
//	[checksum:32 BLAKE2b-256 of all bytes above] (written on Close)
//
// Entry wire format:
//
//	[Length:4][CRC32:4][Type:1][Payload:Length-5]
//
// Length and CRC32 are big endian; CRC32 (IEEE) covers Type and Payload.
// The header payload is JSON. A frame payload is the frame (int32), the
// post-frame checksum (uint64) and the inputs of every handle, all little
// endian.
//
// Replay feeds the recorded inputs to a fresh game and reports the first
// frame whose checksum differs from the recording.
package journal
