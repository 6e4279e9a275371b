// Package config holds the ftpvista configuration: defaults, validation
// and the optional .ftpvista YAML file with per-host overrides.
package config
