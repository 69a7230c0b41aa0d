// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(filepath.Join("testdata", "bridge.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:4417", cfg.Receiver.Endpoint)
	require.NotNil(t, cfg.Receiver.Keepalive)
	assert.Equal(t, 10*time.Minute, cfg.Receiver.Keepalive.MaxConnectionAge)
	assert.Equal(t, 30*time.Second, cfg.Receiver.Keepalive.MaxConnectionAgeGrace)

	assert.Equal(t, "collector:4317", cfg.Exporter.Endpoint)
	assert.Equal(t, map[string]string{"x-tenant": "acme"}, cfg.Exporter.Headers)
	assert.Equal(t, 4, cfg.Exporter.NumStreams)
	assert.Equal(t, 8*time.Minute, cfg.Exporter.MaxStreamLifetime)
	assert.Equal(t, 15*time.Second, cfg.Exporter.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Exporter.RetrySettings.InitialInterval)
	assert.Equal(t, 500, cfg.Exporter.QueueSettings.QueueSize)

	// Defaults survive where the file is silent.
	assert.True(t, cfg.Exporter.RetrySettings.Enabled)
	assert.Equal(t, 4, cfg.Exporter.QueueSettings.NumConsumers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRequiresEndpoints(t *testing.T) {
	_, err := loadConfig(filepath.Join("testdata", "missing_endpoint.yaml"))
	assert.Error(t, err)
}
