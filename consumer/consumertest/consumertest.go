// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package consumertest provides consumer implementations for tests.
package consumertest // import "github.com/arrowbridge/bridge/consumer/consumertest"

import (
	"context"
	"sync"

	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// TracesSink stores all traces it consumes.
type TracesSink struct {
	mu     sync.Mutex
	traces []ptrace.Traces
	spans  int
}

func (s *TracesSink) ConsumeTraces(_ context.Context, td ptrace.Traces) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, td)
	s.spans += td.SpanCount()
	return nil
}

// AllTraces returns the consumed traces in arrival order.
func (s *TracesSink) AllTraces() []ptrace.Traces {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ptrace.Traces(nil), s.traces...)
}

func (s *TracesSink) SpanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spans
}

// MetricsSink stores all metrics it consumes.
type MetricsSink struct {
	mu      sync.Mutex
	metrics []pmetric.Metrics
	points  int
}

func (s *MetricsSink) ConsumeMetrics(_ context.Context, md pmetric.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, md)
	s.points += md.DataPointCount()
	return nil
}

// AllMetrics returns the consumed metrics in arrival order.
func (s *MetricsSink) AllMetrics() []pmetric.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pmetric.Metrics(nil), s.metrics...)
}

func (s *MetricsSink) DataPointCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

// LogsSink stores all logs it consumes.
type LogsSink struct {
	mu   sync.Mutex
	logs []plog.Logs
	recs int
}

func (s *LogsSink) ConsumeLogs(_ context.Context, ld plog.Logs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, ld)
	s.recs += ld.LogRecordCount()
	return nil
}

// AllLogs returns the consumed logs in arrival order.
func (s *LogsSink) AllLogs() []plog.Logs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]plog.Logs(nil), s.logs...)
}

func (s *LogsSink) LogRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs
}

// Err is a consumer for all signals that always fails with E.
type Err struct {
	E error
}

func (c Err) ConsumeTraces(context.Context, ptrace.Traces) error { return c.E }

func (c Err) ConsumeMetrics(context.Context, pmetric.Metrics) error { return c.E }

func (c Err) ConsumeLogs(context.Context, plog.Logs) error { return c.E }
