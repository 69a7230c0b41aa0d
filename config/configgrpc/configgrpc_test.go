// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package configgrpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigValidate(t *testing.T) {
	cfg := ClientConfig{}
	assert.Error(t, cfg.Validate())
	cfg.Endpoint = "localhost:4317"
	assert.NoError(t, cfg.Validate())
}

func TestSanitizedEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"localhost:4317", "localhost:4317"},
		{"http://localhost:4317", "localhost:4317"},
		{"https://localhost:4317", "localhost:4317"},
		{"dns:///collector:4317", "dns:///collector:4317"},
	}
	for _, tt := range tests {
		cfg := ClientConfig{Endpoint: tt.endpoint}
		assert.Equal(t, tt.want, cfg.SanitizedEndpoint())
	}
}

func TestToDialOptions(t *testing.T) {
	cfg := ClientConfig{
		Endpoint: "localhost:4317",
		Keepalive: &KeepaliveClientConfig{
			Time:    10 * time.Second,
			Timeout: time.Second,
		},
	}
	opts, err := cfg.ToDialOptions()
	require.NoError(t, err)
	// Transport credentials and keepalive.
	assert.Len(t, opts, 2)
}

func TestToDialOptionsBadCertFile(t *testing.T) {
	cfg := ClientConfig{Endpoint: "localhost:4317", CertPemFile: "no/such/file.pem"}
	_, err := cfg.ToDialOptions()
	assert.Error(t, err)
}

func TestServerConfigValidate(t *testing.T) {
	cfg := ServerConfig{}
	assert.Error(t, cfg.Validate())

	cfg.Endpoint = "localhost:4317"
	assert.NoError(t, cfg.Validate())

	cfg.CertPemFile = "cert.pem"
	assert.Error(t, cfg.Validate())

	cfg.KeyPemFile = "key.pem"
	assert.NoError(t, cfg.Validate())
}

func TestToServerOptions(t *testing.T) {
	cfg := ServerConfig{
		Endpoint: "localhost:4317",
		Keepalive: &KeepaliveServerConfig{
			MaxConnectionAge:      time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
		},
	}
	opts, err := cfg.ToServerOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func TestToServerOptionsBadCertFile(t *testing.T) {
	cfg := ServerConfig{
		Endpoint:    "localhost:4317",
		CertPemFile: "no/such/cert.pem",
		KeyPemFile:  "no/such/key.pem",
	}
	_, err := cfg.ToServerOptions()
	assert.Error(t, err)
}
