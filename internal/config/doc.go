// Package config loads, normalizes, and validates tubelens configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ELEVENLABS_API_KEY and HUGGINGFACE_API_KEY (optionally sourced from a .env
// file). The Config type centralizes every knob the server and CLI need, so the
// artifact namespaces, provider credentials, and timeouts are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
