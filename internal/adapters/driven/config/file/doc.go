// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration with SERCHA_CONNECT_* environment overrides
package file
