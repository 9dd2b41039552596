// Package config loads and validates gamedock configuration from TOML.
//
// Configuration resolution order: explicit --config flag, then
// ~/.config/gamedock/config.toml, then ./gamedock.toml. Missing files fall
// back to defaults so read-only commands work on a fresh machine.
package config
