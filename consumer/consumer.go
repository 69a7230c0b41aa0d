// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package consumer defines the interfaces through which decoded telemetry
// leaves the bridge and enters the next pipeline stage.
package consumer // import "github.com/arrowbridge/bridge/consumer"

import (
	"context"

	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// Traces receives ptrace.Traces, processes it as needed, and sends it to the
// next processing node if any or to the destination.
type Traces interface {
	ConsumeTraces(ctx context.Context, td ptrace.Traces) error
}

// Metrics receives pmetric.Metrics for consumption.
type Metrics interface {
	ConsumeMetrics(ctx context.Context, md pmetric.Metrics) error
}

// Logs receives plog.Logs for consumption.
type Logs interface {
	ConsumeLogs(ctx context.Context, ld plog.Logs) error
}

// ConsumeTracesFunc adapts a function to the Traces interface.
type ConsumeTracesFunc func(ctx context.Context, td ptrace.Traces) error

// ConsumeTraces calls f(ctx, td).
func (f ConsumeTracesFunc) ConsumeTraces(ctx context.Context, td ptrace.Traces) error {
	return f(ctx, td)
}

// ConsumeMetricsFunc adapts a function to the Metrics interface.
type ConsumeMetricsFunc func(ctx context.Context, md pmetric.Metrics) error

// ConsumeMetrics calls f(ctx, md).
func (f ConsumeMetricsFunc) ConsumeMetrics(ctx context.Context, md pmetric.Metrics) error {
	return f(ctx, md)
}

// ConsumeLogsFunc adapts a function to the Logs interface.
type ConsumeLogsFunc func(ctx context.Context, ld plog.Logs) error

// ConsumeLogs calls f(ctx, ld).
func (f ConsumeLogsFunc) ConsumeLogs(ctx context.Context, ld plog.Logs) error {
	return f(ctx, ld)
}
