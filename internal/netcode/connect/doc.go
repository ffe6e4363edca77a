// Package connect establishes the reliable connections a session is set up
// over.
//
// The host accepts connections until the expected number of distinct
// remote addresses is registered (WaitFor); joiners Dial the address a peer
// announced. Messages are framed with a 4-byte big-endian length. The only
// message this package defines is Metadata, an opaque numeric token
// followed by NUL-separated UTF-8 entries.
//
// Connection failures are setup errors and are not retried.
package connect
