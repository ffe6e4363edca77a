// Package logger provides structured logging for goudanet.
//
// This package wraps log/slog:
//
//   - logger.go: handler construction, dynamic level, process default
//   - context.go: context propagation of the logger and session/peer ids
//   - redact.go: sensitive attribute redaction
//   - hclog.go: bridge for libraries that log through hashicorp/go-hclog
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering adjustable at runtime
//   - Redaction of session tokens and, optionally, peer addresses
package logger
