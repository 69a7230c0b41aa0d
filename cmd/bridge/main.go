// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Command bridge runs a receiver wired into an exporter: telemetry accepted
// on the receiver endpoint is re-exported to the configured peer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arrowbridge/bridge/exporter/arrowexporter"
	"github.com/arrowbridge/bridge/receiver/arrowreceiver"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "bridge.yaml", "path to the configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("Bridge failed", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	exp, err := arrowexporter.New(cfg.Exporter, arrowexporter.Settings{
		Logger: logger.Named("exporter"),
	})
	if err != nil {
		return err
	}
	if err := exp.Start(context.Background()); err != nil {
		return fmt.Errorf("start exporter: %w", err)
	}

	recv, err := arrowreceiver.New(cfg.Receiver, arrowreceiver.Settings{
		Logger: logger.Named("receiver"),
	}, exp, exp, exp)
	if err != nil {
		return multierr.Append(err, shutdownExporter(exp))
	}
	if err := recv.Start(context.Background()); err != nil {
		return multierr.Append(fmt.Errorf("start receiver: %w", err), shutdownExporter(exp))
	}

	logger.Info("Bridge started",
		zap.String("receiver_endpoint", cfg.Receiver.Endpoint),
		zap.String("exporter_endpoint", cfg.Exporter.Endpoint))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return multierr.Append(recv.Shutdown(ctx), exp.Shutdown(ctx))
}

func shutdownExporter(exp *arrowexporter.Exporter) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return exp.Shutdown(ctx)
}
