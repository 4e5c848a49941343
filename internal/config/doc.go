// Package config loads, normalizes, and validates faultscope configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FAULTSCOPE_LLM_API_KEY. The Config type centralizes every knob the CLI and
// API server need, allowing the dataset root, store location, and language
// model credentials to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
