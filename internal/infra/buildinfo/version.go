package buildinfo

import (
	"fmt"
	"runtime"

	"github.com/yndnr/goudanet-go/internal/netcode/transport"
)

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"

	// GoVersion is the Go version used to build.
	GoVersion = ""
)

// ProtocolVersion is the per-frame transport wire version. Peers with a
// different version drop each other's packets.
const ProtocolVersion = int(transport.Version)

// Info contains build information.
type Info struct {
	Version         string `json:"version" yaml:"version"`
	Commit          string `json:"commit" yaml:"commit"`
	BuildTime       string `json:"build_time" yaml:"build_time"`
	GoVersion       string `json:"go_version" yaml:"go_version"`
	ProtocolVersion int    `json:"protocol_version" yaml:"protocol_version"`
}

// Get returns the build information.
func Get() Info {
	gv := GoVersion
	if gv == "" {
		gv = runtime.Version()
	}
	return Info{
		Version:         Version,
		Commit:          Commit,
		BuildTime:       BuildTime,
		GoVersion:       gv,
		ProtocolVersion: ProtocolVersion,
	}
}

// String returns a formatted version string.
func String() string {
	i := Get()
	return fmt.Sprintf("%s (%s) built at %s, protocol v%d", i.Version, i.Commit, i.BuildTime, i.ProtocolVersion)
}
