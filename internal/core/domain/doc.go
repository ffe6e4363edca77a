// Package domain defines the core netcode models for goudanet.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Handle, Frame: participant and simulation-step identifiers
//   - PlayerInput: the fixed-layout per-frame input record
//   - SessionDescriptor: the static description of a session
//   - Errors: domain-specific error definitions
package domain
