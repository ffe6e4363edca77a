// Package command provides the goudanet-cli commands.
//
//   - root.go: App, global flags and output selection
//   - discover.go: listen for lobby announcements
//   - decode.go: decode handshakes and transport packets
//   - journal.go: list, prune and replay session journals
//   - config.go: show and validate peer configuration
//   - version.go: build information
//
// Commands write through the formatter selected by --output so that every
// result is also available as json or yaml for scripting.
package command
