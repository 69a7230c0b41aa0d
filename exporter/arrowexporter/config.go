// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter // import "github.com/arrowbridge/bridge/exporter/arrowexporter"

import (
	"errors"
	"fmt"
	"time"

	"github.com/arrowbridge/bridge/config/configgrpc"
)

// Config defines the exporter configuration.
type Config struct {
	configgrpc.ClientConfig `mapstructure:",squash"`

	// NumStreams is the number of concurrent ArrowStream RPCs kept open.
	NumStreams int `mapstructure:"num_streams"`

	// DisableDowngrade fails exports to peers without arrow support
	// instead of falling back to the plain protocol.
	DisableDowngrade bool `mapstructure:"disable_downgrade"`

	// MaxStreamLifetime rotates streams before the server's connection
	// age limit would cut them off mid-batch. Zero disables rotation.
	MaxStreamLifetime time.Duration `mapstructure:"max_stream_lifetime"`

	// Timeout bounds each send attempt. Zero disables the bound.
	Timeout time.Duration `mapstructure:"timeout"`

	RetrySettings RetrySettings `mapstructure:"retry_on_failure"`
	QueueSettings QueueSettings `mapstructure:"sending_queue"`
}

// RetrySettings configures exponential retry of failed sends.
type RetrySettings struct {
	Enabled bool `mapstructure:"enabled"`
	// InitialInterval is the wait after the first failure.
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	// MaxInterval caps the growth of the wait between retries.
	MaxInterval time.Duration `mapstructure:"max_interval"`
	// MaxElapsedTime bounds the total time spent retrying one batch.
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time"`
}

// QueueSettings configures the bounded in-memory sending queue.
type QueueSettings struct {
	Enabled bool `mapstructure:"enabled"`
	// NumConsumers is the number of workers draining the queue.
	NumConsumers int `mapstructure:"num_consumers"`
	// QueueSize is the maximum number of batches held.
	QueueSize int `mapstructure:"queue_size"`
}

// NewDefaultConfig returns the default exporter configuration. The endpoint
// must still be set.
func NewDefaultConfig() Config {
	return Config{
		NumStreams:        1,
		MaxStreamLifetime: 9 * time.Minute,
		Timeout:           30 * time.Second,
		RetrySettings: RetrySettings{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
			MaxElapsedTime:  5 * time.Minute,
		},
		QueueSettings: QueueSettings{
			Enabled:      true,
			NumConsumers: 10,
			QueueSize:    1000,
		},
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if err := cfg.ClientConfig.Validate(); err != nil {
		return err
	}
	if cfg.NumStreams < 1 {
		return fmt.Errorf("num_streams must be positive, got %d", cfg.NumStreams)
	}
	if cfg.QueueSettings.Enabled {
		if cfg.QueueSettings.QueueSize <= 0 {
			return errors.New("sending_queue.queue_size must be positive")
		}
		if cfg.QueueSettings.NumConsumers <= 0 {
			return errors.New("sending_queue.num_consumers must be positive")
		}
	}
	if cfg.RetrySettings.Enabled && cfg.RetrySettings.InitialInterval < 0 {
		return errors.New("retry_on_failure.initial_interval cannot be negative")
	}
	return nil
}
