// Package config loads and validates the assist-gateway YAML configuration,
// expanding ${VAR} environment references and parsing duration strings.
package config
