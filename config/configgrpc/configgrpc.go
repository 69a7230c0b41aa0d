// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package configgrpc defines the gRPC configuration settings shared by the
// bridge exporter and receiver.
package configgrpc // import "github.com/arrowbridge/bridge/config/configgrpc"

import (
	"crypto/x509"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// ClientConfig defines common settings for a gRPC client configuration.
type ClientConfig struct {
	// The target to which the exporter is going to send telemetry, using
	// the gRPC protocol. The valid syntax is described at
	// https://github.com/grpc/grpc/blob/master/doc/naming.md.
	Endpoint string `mapstructure:"endpoint"`

	// The headers attached to every gRPC request.
	Headers map[string]string `mapstructure:"headers"`

	// Certificate file for TLS credentials of the gRPC client. Should
	// only be used if `secure` is set to true.
	CertPemFile string `mapstructure:"cert_pem_file"`

	// Whether to enable client transport security for the gRPC connection.
	UseSecure bool `mapstructure:"secure"`

	// Authority to check against when doing TLS verification.
	ServerNameOverride string `mapstructure:"server_name_override"`

	// WaitForReady parameter configures client to wait for ready state before
	// sending. (https://github.com/grpc/grpc/blob/master/doc/wait-for-ready.md)
	WaitForReady bool `mapstructure:"wait_for_ready"`

	// The keepalive parameters for the client gRPC connection. See
	// grpc.WithKeepaliveParams.
	Keepalive *KeepaliveClientConfig `mapstructure:"keepalive"`
}

// KeepaliveClientConfig exposes keepalive.ClientParameters. Refer to the
// original data structure for the meaning of each parameter.
type KeepaliveClientConfig struct {
	Time                time.Duration `mapstructure:"time"`
	Timeout             time.Duration `mapstructure:"timeout"`
	PermitWithoutStream bool          `mapstructure:"permit_without_stream"`
}

// Validate checks the client configuration for required fields.
func (c *ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint must be specified")
	}
	return nil
}

// SanitizedEndpoint strips a URI scheme prefix, if present, so that the
// endpoint can be handed to grpc.NewClient as a plain target.
func (c *ClientConfig) SanitizedEndpoint() string {
	switch {
	case strings.HasPrefix(c.Endpoint, "http://"):
		return strings.TrimPrefix(c.Endpoint, "http://")
	case strings.HasPrefix(c.Endpoint, "https://"):
		return strings.TrimPrefix(c.Endpoint, "https://")
	default:
		return c.Endpoint
	}
}

// ToDialOptions maps the settings to a slice of dial options for gRPC.
func (c *ClientConfig) ToDialOptions() ([]grpc.DialOption, error) {
	var opts []grpc.DialOption
	if c.CertPemFile != "" {
		creds, err := credentials.NewClientTLSFromFile(c.CertPemFile, c.ServerNameOverride)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else if c.UseSecure {
		certPool, err := x509.SystemCertPool()
		if err != nil {
			return nil, err
		}
		creds := credentials.NewClientTLSFromCert(certPool, c.ServerNameOverride)
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if c.Keepalive != nil {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.Keepalive.Time,
			Timeout:             c.Keepalive.Timeout,
			PermitWithoutStream: c.Keepalive.PermitWithoutStream,
		}))
	}

	return opts, nil
}

// ServerConfig defines common settings for a gRPC server configuration.
type ServerConfig struct {
	// Endpoint the gRPC server will listen on, in host:port form.
	Endpoint string `mapstructure:"endpoint"`

	// Certificate and key files for TLS credentials of the gRPC server.
	// Plaintext is used when both are empty.
	CertPemFile string `mapstructure:"cert_pem_file"`
	KeyPemFile  string `mapstructure:"key_pem_file"`

	// The keepalive parameters enforced on server connections. See
	// grpc.KeepaliveParams.
	Keepalive *KeepaliveServerConfig `mapstructure:"keepalive"`
}

// KeepaliveServerConfig exposes keepalive.ServerParameters. MaxConnectionAge
// and MaxConnectionAgeGrace bound the lifetime of every inbound stream.
type KeepaliveServerConfig struct {
	MaxConnectionIdle     time.Duration `mapstructure:"max_connection_idle"`
	MaxConnectionAge      time.Duration `mapstructure:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `mapstructure:"max_connection_age_grace"`
	Time                  time.Duration `mapstructure:"time"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// Validate checks the server configuration for required fields.
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint must be specified")
	}
	if (c.CertPemFile == "") != (c.KeyPemFile == "") {
		return errors.New("cert_pem_file and key_pem_file must be specified together")
	}
	return nil
}

// ToServerOptions maps the settings to a slice of server options for gRPC.
func (c *ServerConfig) ToServerOptions() ([]grpc.ServerOption, error) {
	var opts []grpc.ServerOption
	if c.CertPemFile != "" {
		creds, err := credentials.NewServerTLSFromFile(c.CertPemFile, c.KeyPemFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	if c.Keepalive != nil {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     c.Keepalive.MaxConnectionIdle,
			MaxConnectionAge:      c.Keepalive.MaxConnectionAge,
			MaxConnectionAgeGrace: c.Keepalive.MaxConnectionAgeGrace,
			Time:                  c.Keepalive.Time,
			Timeout:               c.Keepalive.Timeout,
		}))
	}

	return opts, nil
}
