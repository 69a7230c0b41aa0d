// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowreceiver // import "github.com/arrowbridge/bridge/receiver/arrowreceiver"

import (
	"github.com/arrowbridge/bridge/config/configgrpc"
)

// Config defines the receiver configuration.
type Config struct {
	configgrpc.ServerConfig `mapstructure:",squash"`
}

// NewDefaultConfig returns the default receiver configuration. The endpoint
// must still be set.
func NewDefaultConfig() Config {
	return Config{}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	return cfg.ServerConfig.Validate()
}
