// Package confloader provides the configuration loading mechanism.
//
// It uses koanf as the underlying library. Sources, lowest priority first:
//
//  1. Default values (pre-filled target struct)
//  2. Configuration file (YAML)
//  3. Environment variables (GOUDANET_SECTION__KEY)
//  4. Explicit maps (command-line flags)
//
// Watcher reports changes to watched files so long-running processes can
// apply settings that are safe to change at runtime.
package confloader
