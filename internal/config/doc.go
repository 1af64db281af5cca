// Package config loads, normalizes, and validates media organizer
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIAORG_LIBRARY and MEDIAORG_CLASSIFIER_URL. Managed directories (Organized,
// Duplicates, Tagged, logs, checkpoints) are stored relative to the library
// root and resolved through accessor methods, so a CLI override of the library
// moves every derived path with it.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
