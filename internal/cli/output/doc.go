// Package output renders goudanet-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned columns for terminals
//   - json.go, yaml.go: machine-readable output for scripting
//
// Table output reads column names from the yaml struct tags, so a value
// prints with the same field names in every format. Fields tagged
// table:"wide" only show with the wide flag.
package output
