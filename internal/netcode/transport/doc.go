// Package transport carries per-frame inputs and checksums between peers
// over UDP.
//
// Packets are little endian and start with 'G' 'N' <version> <kind>:
//
//	input:    handle u8, count u8, start i32, ack i32, count x 62-byte inputs
//	checksum: handle u8, reserved u8, frame i32, checksum u64
//
// There is no retransmission. Every input packet repeats all inputs the
// destination has not acknowledged yet, and the rollback scheduler absorbs
// the loss of any single packet.
package transport
