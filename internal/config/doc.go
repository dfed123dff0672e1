// Package config loads vidscribe settings from defaults, an optional
// config.yaml and VIDSCRIBE_* environment variables, and validates them
// before any component is built.
package config
