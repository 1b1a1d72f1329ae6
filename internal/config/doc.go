// Package config loads, normalizes, and validates the TOML configuration that
// drives the notesd daemon.
//
// Configuration resolution order: an explicit --config path, then
// ~/.config/notesd/config.toml, then notesd.toml in the working directory.
// Missing files fall back to defaults so the daemon can run with nothing but a
// data_repo override. All path fields are tilde-expanded and absolutized during
// load, so downstream code never deals with relative paths.
package config
