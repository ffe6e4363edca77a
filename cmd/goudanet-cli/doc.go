// Package main provides the entry point for goudanet-cli.
//
// goudanet-cli inspects a goudanet deployment from the outside: it lists
// hosts announcing on the discovery backend, decodes wire messages,
// verifies recorded journals and checks peer configuration files.
package main
