// Package config loads, normalizes, and validates dvr-manager configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and PLEX_TOKEN. The Config type centralizes every knob the
// daemon and CLI need, so the watch directory, library roots, and external
// service credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
