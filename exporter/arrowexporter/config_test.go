// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Error(t, cfg.Validate(), "endpoint is required")

	cfg.Endpoint = "localhost:4317"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Endpoint = "localhost:4317"

	cfg.NumStreams = 0
	assert.Error(t, cfg.Validate())
	cfg.NumStreams = 1

	cfg.QueueSettings.QueueSize = 0
	assert.Error(t, cfg.Validate())
	cfg.QueueSettings.QueueSize = 10

	cfg.QueueSettings.NumConsumers = 0
	assert.Error(t, cfg.Validate())
	cfg.QueueSettings.NumConsumers = 1

	assert.NoError(t, cfg.Validate())
}
