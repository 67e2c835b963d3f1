// Package config loads, normalizes, and validates rollop configuration data.
//
// It supplies defaults for a single-machine OP-stack devnet, expands user paths
// (including tilde shortcuts), and reads an optional TOML file. Every knob the
// dispatcher and its collaborators need lives on Config so ports, chain IDs,
// toolchain versions and workspace directories are discovered in one pass.
//
// Defaults alone produce a working devnet; a config file only needs the keys it
// wants to override.
package config
