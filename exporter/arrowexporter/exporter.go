// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package arrowexporter sends telemetry to a peer over the arrow stream
// protocol, falling back to the plain protocol when the peer does not
// support it.
package arrowexporter // import "github.com/arrowbridge/bridge/exporter/arrowexporter"

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/pmetric/pmetricotlp"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"

	"github.com/arrowbridge/bridge/consumer/consumererror"
	"github.com/arrowbridge/bridge/exporter/arrowexporter/internal/streams"
	"github.com/arrowbridge/bridge/internal/arrowcodec"
	"github.com/arrowbridge/bridge/internal/wire"
)

// ErrUnsupportedPeer fails exports when the peer lacks arrow support and
// downgrade is disabled.
var ErrUnsupportedPeer = errors.New("peer does not support the arrow protocol")

// Grace given to a draining stream's outstanding acknowledgments.
const drainGrace = 30 * time.Second

// Settings holds the exporter's runtime dependencies.
type Settings struct {
	Logger *zap.Logger
}

// Exporter implements consumer.Traces, consumer.Metrics and consumer.Logs,
// delivering each batch through the queue/retry/timeout sender chain onto
// an arrow stream or the plain fallback.
type Exporter struct {
	cfg    Config
	logger *zap.Logger

	conn       *grpc.ClientConn
	wireClient wire.ArrowStreamServiceClient

	traceClient  ptraceotlp.GRPCClient
	metricClient pmetricotlp.GRPCClient
	logClient    plogotlp.GRPCClient

	neg         *negotiator
	streams     *streams.Manager
	streamsOnce sync.Once

	qrs    *queuedRetrySender
	sender requestSender
}

// New builds an Exporter from a validated Config. Call Start before use.
func New(cfg Config, set Settings) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if set.Logger == nil {
		set.Logger = zap.NewNop()
	}
	e := &Exporter{
		cfg:    cfg,
		logger: set.Logger,
	}
	e.qrs = newQueuedRetrySender(set.Logger, cfg.QueueSettings, cfg.RetrySettings,
		&timeoutSender{timeout: cfg.Timeout, nextSender: &arrowSender{e: e}})
	e.sender = e.qrs
	return e, nil
}

// Start dials the peer and starts the queue workers. Streams open lazily,
// after the first successful negotiation.
func (e *Exporter) Start(_ context.Context) error {
	dialOpts, err := e.cfg.ToDialOptions()
	if err != nil {
		return err
	}
	conn, err := grpc.NewClient(e.cfg.SanitizedEndpoint(), dialOpts...)
	if err != nil {
		return err
	}
	e.conn = conn

	var client wire.ArrowStreamServiceClient = wire.NewArrowStreamServiceClient(conn)
	if len(e.cfg.Headers) > 0 {
		client = &metadataClient{inner: client, md: metadata.New(e.cfg.Headers)}
	}
	e.wireClient = client

	e.traceClient = ptraceotlp.NewGRPCClient(conn)
	e.metricClient = pmetricotlp.NewGRPCClient(conn)
	e.logClient = plogotlp.NewGRPCClient(conn)

	e.neg = newNegotiator(e.logger, client)
	e.streams = streams.NewManager(client, streams.Settings{
		Logger:            e.logger,
		NumStreams:        e.cfg.NumStreams,
		MaxStreamLifetime: e.cfg.MaxStreamLifetime,
		DrainGrace:        drainGrace,
		WaitForReady:      e.cfg.WaitForReady,
	})

	e.qrs.start()
	return nil
}

// Shutdown stops the queue workers, closes the streams and the connection.
// Queued batches fail with ErrShutdown.
func (e *Exporter) Shutdown(ctx context.Context) error {
	var err error
	e.qrs.shutdown()
	if e.streams != nil {
		err = multierr.Append(err, e.streams.Shutdown(ctx))
	}
	if e.conn != nil {
		err = multierr.Append(err, e.conn.Close())
	}
	return err
}

// ConsumeTraces exports a trace batch.
func (e *Exporter) ConsumeTraces(ctx context.Context, td ptrace.Traces) error {
	return e.export(ctx, arrowcodec.Batch{Signal: wire.SignalTraces, Traces: td})
}

// ConsumeMetrics exports a metric batch.
func (e *Exporter) ConsumeMetrics(ctx context.Context, md pmetric.Metrics) error {
	return e.export(ctx, arrowcodec.Batch{Signal: wire.SignalMetrics, Metrics: md})
}

// ConsumeLogs exports a log batch.
func (e *Exporter) ConsumeLogs(ctx context.Context, ld plog.Logs) error {
	return e.export(ctx, arrowcodec.Batch{Signal: wire.SignalLogs, Logs: ld})
}

func (e *Exporter) export(ctx context.Context, batch arrowcodec.Batch) error {
	return e.sender.send(&request{ctx: ctx, batch: batch})
}

// arrowSender is the tail of the chain: negotiate once, then deliver over
// the stream multiplexer or the plain fallback.
type arrowSender struct {
	e *Exporter
}

func (as *arrowSender) send(req *request) error {
	e := as.e
	state, err := e.neg.resolve(req.ctx)
	if err != nil {
		// Transient handshake failure, retryable.
		return err
	}
	if state == stateArrowUnsupported {
		if e.cfg.DisableDowngrade {
			return consumererror.Permanent(ErrUnsupportedPeer)
		}
		return e.exportPlain(req)
	}
	e.streamsOnce.Do(func() {
		_ = e.streams.Start(req.ctx)
	})
	err = e.streams.Send(req.ctx, req.batch)
	if errors.Is(err, streams.ErrStreamShutdown) {
		return ErrShutdown
	}
	return err
}

func (e *Exporter) exportPlain(req *request) error {
	ctx := req.ctx
	var err error
	switch req.batch.Signal {
	case wire.SignalTraces:
		_, err = e.traceClient.Export(ctx, ptraceotlp.NewExportRequestFromTraces(req.batch.Traces))
	case wire.SignalMetrics:
		_, err = e.metricClient.Export(ctx, pmetricotlp.NewExportRequestFromMetrics(req.batch.Metrics))
	case wire.SignalLogs:
		_, err = e.logClient.Export(ctx, plogotlp.NewExportRequestFromLogs(req.batch.Logs))
	}
	return processError(err)
}

// processError triages a transport error: codes the peer may recover from
// stay retryable, everything else becomes permanent.
func processError(err error) error {
	if err == nil {
		return nil
	}
	st := status.Convert(err)
	if st.Code() == codes.OK {
		return nil
	}
	if !shouldRetry(st.Code()) {
		return consumererror.Permanent(err)
	}
	return err
}

func shouldRetry(code codes.Code) bool {
	switch code {
	case codes.Canceled,
		codes.DeadlineExceeded,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.OutOfRange,
		codes.Unavailable,
		codes.DataLoss:
		return true
	}
	return false
}

// metadataClient attaches the configured static headers to every outgoing
// call, including the long-lived streams.
type metadataClient struct {
	inner wire.ArrowStreamServiceClient
	md    metadata.MD
}

func (c *metadataClient) Capabilities(ctx context.Context, in *wire.CapabilitiesRequest, opts ...grpc.CallOption) (*wire.CapabilitiesResponse, error) {
	return c.inner.Capabilities(metadata.NewOutgoingContext(ctx, c.md), in, opts...)
}

func (c *metadataClient) ArrowStream(ctx context.Context, opts ...grpc.CallOption) (wire.ArrowStreamService_ArrowStreamClient, error) {
	return c.inner.ArrowStream(metadata.NewOutgoingContext(ctx, c.md), opts...)
}
