// ABOUTME: Package doc for config
// ABOUTME: Describes configuration file format and loading behavior

// Package config loads coven-chat configuration from YAML files with
// environment variable expansion, duration parsing, and sensible
// defaults when no file is present.
package config
