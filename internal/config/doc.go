// Package config loads the line-based "key value" configuration files
// consumed by the naming and storage server commands. Each command reads
// a single plain-text file; unknown keys are a load error rather than
// being silently ignored.
package config
