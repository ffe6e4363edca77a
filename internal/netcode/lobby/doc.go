// Package lobby turns discovery and session connections into a
// SessionDescriptor.
//
// The host announces its TCP port and accepts the other participants in
// join order; each joiner introduces itself with a Hello (token =
// participant id, one entry = its UDP port). The host answers with a roster
// whose token is the world seed and whose entries are "<handle>@<ip:port>"
// for every participant except the receiver. A joiner's own handle is the
// one missing from its roster.
package lobby
