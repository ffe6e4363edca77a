// Package config provides the peer process configuration.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: PeerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation of ranges, addresses and backends
//   - convert.go: Mapping onto lobby, discovery, journal and logger configs
//   - sanitize.go: Address masking for logs
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
