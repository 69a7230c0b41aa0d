// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowreceiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arrowbridge/bridge/config/configgrpc"
	"github.com/arrowbridge/bridge/consumer"
	"github.com/arrowbridge/bridge/consumer/consumertest"
	"github.com/arrowbridge/bridge/exporter/arrowexporter"
	"github.com/arrowbridge/bridge/internal/wire"
)

func startReceiver(t *testing.T, cfg Config, tc consumer.Traces, mc consumer.Metrics, lc consumer.Logs) string {
	t.Helper()
	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	if cfg.Endpoint == "" {
		cfg.Endpoint = lis.Addr().String()
	}
	r, err := New(cfg, Settings{Logger: zaptest.NewLogger(t)}, tc, mc, lc)
	require.NoError(t, err)
	require.NoError(t, r.Serve(lis))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, r.Shutdown(ctx))
	})
	return lis.Addr().String()
}

func startExporter(t *testing.T, endpoint string, mutate func(*arrowexporter.Config)) *arrowexporter.Exporter {
	t.Helper()
	cfg := arrowexporter.NewDefaultConfig()
	cfg.Endpoint = endpoint
	cfg.WaitForReady = true
	cfg.Timeout = 10 * time.Second
	cfg.QueueSettings.Enabled = false
	cfg.RetrySettings.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}
	exp, err := arrowexporter.New(cfg, arrowexporter.Settings{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.NoError(t, exp.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, exp.Shutdown(ctx))
	})
	return exp
}

func tracesWithName(name string) ptrace.Traces {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()
	rs.Resource().Attributes().PutStr("service.name", "e2e")
	span := rs.ScopeSpans().AppendEmpty().Spans().AppendEmpty()
	span.SetName(name)
	span.SetTraceID([16]byte{1})
	span.SetSpanID([8]byte{1})
	return td
}

func TestEndToEndTraces(t *testing.T) {
	sink := new(consumertest.TracesSink)
	endpoint := startReceiver(t, NewDefaultConfig(), sink, new(consumertest.MetricsSink), new(consumertest.LogsSink))
	exp := startExporter(t, endpoint, nil)

	var sent []ptrace.Traces
	for i := 0; i < 3; i++ {
		td := tracesWithName(fmt.Sprintf("span-%d", i))
		sent = append(sent, td)
		require.NoError(t, exp.ConsumeTraces(context.Background(), td))
	}

	// Sends on one stream are acknowledged in order.
	got := sink.AllTraces()
	require.Len(t, got, 3)
	for i := range sent {
		assert.Equal(t, sent[i], got[i])
	}
}

func TestEndToEndMetricsAndLogs(t *testing.T) {
	msink := new(consumertest.MetricsSink)
	lsink := new(consumertest.LogsSink)
	endpoint := startReceiver(t, NewDefaultConfig(), new(consumertest.TracesSink), msink, lsink)
	exp := startExporter(t, endpoint, nil)

	md := pmetric.NewMetrics()
	gauge := md.ResourceMetrics().AppendEmpty().ScopeMetrics().AppendEmpty().Metrics().AppendEmpty()
	gauge.SetName("up")
	gauge.SetEmptyGauge().DataPoints().AppendEmpty().SetIntValue(1)
	require.NoError(t, exp.ConsumeMetrics(context.Background(), md))

	ld := plog.NewLogs()
	ld.ResourceLogs().AppendEmpty().ScopeLogs().AppendEmpty().LogRecords().AppendEmpty().Body().SetStr("hello")
	require.NoError(t, exp.ConsumeLogs(context.Background(), ld))

	require.Len(t, msink.AllMetrics(), 1)
	assert.Equal(t, md, msink.AllMetrics()[0])
	require.Len(t, lsink.AllLogs(), 1)
	assert.Equal(t, ld, lsink.AllLogs()[0])
}

// startPlainServer serves only the plain protocol, as a peer without arrow
// support would.
func startPlainServer(t *testing.T, sink consumer.Traces) string {
	t.Helper()
	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	ptraceotlp.RegisterGRPCServer(srv, &plainTraces{next: sink})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestDowngradeToPlainProtocol(t *testing.T) {
	sink := new(consumertest.TracesSink)
	endpoint := startPlainServer(t, sink)
	exp := startExporter(t, endpoint, nil)

	td := tracesWithName("downgraded")
	require.NoError(t, exp.ConsumeTraces(context.Background(), td))
	require.Len(t, sink.AllTraces(), 1)
	assert.Equal(t, td, sink.AllTraces()[0])
}

func TestDisableDowngrade(t *testing.T) {
	endpoint := startPlainServer(t, new(consumertest.TracesSink))
	exp := startExporter(t, endpoint, func(cfg *arrowexporter.Config) {
		cfg.DisableDowngrade = true
	})

	err := exp.ConsumeTraces(context.Background(), tracesWithName("rejected"))
	assert.ErrorIs(t, err, arrowexporter.ErrUnsupportedPeer)
}

func TestConsumerErrorFailsBatch(t *testing.T) {
	failing := consumertest.Err{E: errors.New("downstream refused")}
	endpoint := startReceiver(t, NewDefaultConfig(), failing, failing, failing)
	exp := startExporter(t, endpoint, nil)

	err := exp.ConsumeTraces(context.Background(), tracesWithName("refused"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downstream refused")
}

// fakeServerStream drives the ArrowStream handler directly.
type fakeServerStream struct {
	ctx    context.Context
	recvCh chan *wire.BatchRecords

	mu   sync.Mutex
	sent []*wire.BatchStatus
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func (s *fakeServerStream) Send(st *wire.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, st)
	return nil
}

func (s *fakeServerStream) Recv() (*wire.BatchRecords, error) {
	select {
	case br, ok := <-s.recvCh:
		if !ok {
			return nil, io.EOF
		}
		return br, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *fakeServerStream) statuses() []*wire.BatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.BatchStatus(nil), s.sent...)
}

func newHandlerReceiver(t *testing.T, cfg Config) *Receiver {
	t.Helper()
	cfg.Endpoint = "localhost:0"
	r, err := New(cfg, Settings{Logger: zaptest.NewLogger(t)},
		new(consumertest.TracesSink), new(consumertest.MetricsSink), new(consumertest.LogsSink))
	require.NoError(t, err)
	return r
}

func TestCorruptBatchClosesStream(t *testing.T) {
	r := newHandlerReceiver(t, NewDefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := &fakeServerStream{ctx: ctx, recvCh: make(chan *wire.BatchRecords, 1)}
	stream.recvCh <- &wire.BatchRecords{
		BatchID:  1,
		Signal:   wire.SignalTraces,
		SchemaID: 1,
		IPCChunk: []byte("garbage"),
	}

	err := r.ArrowStream(stream)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	sent := stream.statuses()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(1), sent[0].BatchID)
	assert.Equal(t, wire.StatusPermanent, sent[0].StatusCode)
}

func TestStreamClosesAtAgeLimit(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Keepalive = &configgrpc.KeepaliveServerConfig{
		MaxConnectionAge:      50 * time.Millisecond,
		MaxConnectionAgeGrace: time.Second,
	}
	r := newHandlerReceiver(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := &fakeServerStream{ctx: ctx, recvCh: make(chan *wire.BatchRecords)}

	start := time.Now()
	err := r.ArrowStream(stream)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCapabilities(t *testing.T) {
	r := newHandlerReceiver(t, NewDefaultConfig())
	resp, err := r.Capabilities(context.Background(), &wire.CapabilitiesRequest{})
	require.NoError(t, err)
	assert.True(t, resp.ArrowSupported)
}
