// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/mitchellh/mapstructure"

	"github.com/arrowbridge/bridge/exporter/arrowexporter"
	"github.com/arrowbridge/bridge/receiver/arrowreceiver"
)

type bridgeConfig struct {
	Receiver arrowreceiver.Config `mapstructure:"receiver"`
	Exporter arrowexporter.Config `mapstructure:"exporter"`
}

// loadConfig reads the YAML file at path over the defaults and validates
// the result.
func loadConfig(path string) (bridgeConfig, error) {
	cfg := bridgeConfig{
		Receiver: arrowreceiver.NewDefaultConfig(),
		Exporter: arrowexporter.NewDefaultConfig(),
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return cfg, err
	}
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "mapstructure",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Squash:           true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Receiver.Validate(); err != nil {
		return cfg, fmt.Errorf("receiver: %w", err)
	}
	if err := cfg.Exporter.Validate(); err != nil {
		return cfg, fmt.Errorf("exporter: %w", err)
	}
	return cfg, nil
}
