// Package config loads the repohub server configuration from a YAML file
// and environment overrides.
package config
