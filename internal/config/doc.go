// Package config loads, normalizes, and validates dailycast configuration.
//
// It supplies repository defaults, expands tilde paths, reads TOML files,
// and layers environment overrides (including .env files) on top, so
// credentials and store locations can come from either source. The Config
// type centralizes every knob the pipeline and CLI need and is constructed
// once per process; components receive it by value in their constructors
// and never read ambient environment state themselves.
package config
