// Package buildinfo provides build information for goudanet binaries.
//
// This package exposes build-time information injected via ldflags:
//
//   - Version: Semantic version (e.g., "1.0.0")
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//
// GoVersion falls back to the running toolchain when not injected.
// ProtocolVersion is the per-frame wire version peers must share.
//
// Usage:
//
//	go build -ldflags "-X github.com/yndnr/goudanet-go/internal/infra/buildinfo.Version=1.0.0"
package buildinfo
