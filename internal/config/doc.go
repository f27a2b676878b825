// Package config loads, normalizes, and validates driftq configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DRIFTQ_REMOTE_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: queue bounds and retry policy, probe endpoints and timing, and the
// remote backend credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
