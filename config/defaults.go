// Package config embeds the default device configuration.
package config

import _ "embed"

// Default is the embedded conf.default.yaml.
//
//go:embed conf.default.yaml
var Default []byte
