// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package arrowreceiver accepts telemetry over the arrow stream protocol
// and the plain protocol on a single gRPC endpoint, forwarding batches to
// the next consumers.
package arrowreceiver // import "github.com/arrowbridge/bridge/receiver/arrowreceiver"

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/pmetric/pmetricotlp"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"

	"github.com/arrowbridge/bridge/consumer"
	"github.com/arrowbridge/bridge/consumer/consumererror"
	"github.com/arrowbridge/bridge/internal/arrowcodec"
	"github.com/arrowbridge/bridge/internal/wire"
)

// Settings holds the receiver's runtime dependencies.
type Settings struct {
	Logger *zap.Logger
}

// Receiver serves the arrow stream service and the plain protocol services
// on one listener. A batch is acknowledged only after the next consumer
// accepted it.
type Receiver struct {
	cfg    Config
	logger *zap.Logger

	nextTraces  consumer.Traces
	nextMetrics consumer.Metrics
	nextLogs    consumer.Logs

	maxAge time.Duration

	server     *grpc.Server
	shutdownWG sync.WaitGroup
}

// New builds a Receiver from a validated Config. All three consumers are
// required.
func New(cfg Config, set Settings, nextTraces consumer.Traces, nextMetrics consumer.Metrics, nextLogs consumer.Logs) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nextTraces == nil || nextMetrics == nil || nextLogs == nil {
		return nil, errors.New("all consumers must be set")
	}
	if set.Logger == nil {
		set.Logger = zap.NewNop()
	}
	r := &Receiver{
		cfg:         cfg,
		logger:      set.Logger,
		nextTraces:  nextTraces,
		nextMetrics: nextMetrics,
		nextLogs:    nextLogs,
	}
	if kp := cfg.Keepalive; kp != nil {
		r.maxAge = kp.MaxConnectionAge
	}
	return r, nil
}

// Start listens on the configured endpoint and begins serving.
func (r *Receiver) Start(_ context.Context) error {
	lis, err := net.Listen("tcp", r.cfg.Endpoint)
	if err != nil {
		return err
	}
	return r.Serve(lis)
}

// Serve begins serving on lis. Used directly by in-process tests.
func (r *Receiver) Serve(lis net.Listener) error {
	opts, err := r.cfg.ToServerOptions()
	if err != nil {
		return err
	}
	r.server = grpc.NewServer(opts...)
	wire.RegisterArrowStreamServiceServer(r.server, r)
	ptraceotlp.RegisterGRPCServer(r.server, &plainTraces{next: r.nextTraces})
	pmetricotlp.RegisterGRPCServer(r.server, &plainMetrics{next: r.nextMetrics})
	plogotlp.RegisterGRPCServer(r.server, &plainLogs{next: r.nextLogs})

	r.logger.Info("Starting gRPC server", zap.String("endpoint", lis.Addr().String()))
	r.shutdownWG.Add(1)
	go func() {
		defer r.shutdownWG.Done()
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			r.logger.Error("Server ended with error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops serving gracefully, falling back to a hard stop when ctx
// expires first.
func (r *Receiver) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	stopped := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		r.server.Stop()
	}
	r.shutdownWG.Wait()
	return nil
}

// Capabilities reports arrow support to negotiating exporters.
func (r *Receiver) Capabilities(context.Context, *wire.CapabilitiesRequest) (*wire.CapabilitiesResponse, error) {
	return &wire.CapabilitiesResponse{ArrowSupported: true}, nil
}

type recvResult struct {
	msg *wire.BatchRecords
	err error
}

// ArrowStream serves one inbound payload stream: receive, decode, forward,
// acknowledge. Decode failures close the stream; consumer failures fail the
// batch and keep the stream alive.
func (r *Receiver) ArrowStream(stream wire.ArrowStreamService_ArrowStreamServer) error {
	ctx := stream.Context()
	cons := arrowcodec.NewConsumer()
	logger := r.logger

	var ageLimit <-chan time.Time
	if r.maxAge > 0 {
		t := time.NewTimer(r.maxAge)
		defer t.Stop()
		ageLimit = t.C
	}

	recvCh := make(chan recvResult)
	go func() {
		for {
			msg, err := stream.Recv()
			select {
			case recvCh <- recvResult{msg: msg, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ageLimit:
			logger.Debug("Stream reached its age limit, closing.")
			return status.Error(codes.Unavailable, "stream age limit reached")
		case res := <-recvCh:
			if errors.Is(res.err, io.EOF) {
				return nil
			}
			if res.err != nil {
				return res.err
			}
			if err := r.handleBatch(ctx, stream, cons, res.msg); err != nil {
				return err
			}
		}
	}
}

func (r *Receiver) handleBatch(ctx context.Context, stream wire.ArrowStreamService_ArrowStreamServer, cons *arrowcodec.Consumer, br *wire.BatchRecords) error {
	batch, err := cons.Decode(br)
	if err != nil {
		// Undecodable payloads are permanent for the batch and fatal for
		// the stream; the codec state can no longer be trusted.
		r.logger.Warn("Failed to decode batch, closing stream.",
			zap.Int64("batch_id", br.BatchID), zap.Error(err))
		_ = stream.Send(&wire.BatchStatus{
			BatchID:      br.BatchID,
			StatusCode:   wire.StatusPermanent,
			ErrorMessage: err.Error(),
		})
		return status.Error(codes.InvalidArgument, err.Error())
	}

	st := &wire.BatchStatus{BatchID: br.BatchID}
	if err := r.forward(ctx, batch); err != nil {
		st.StatusCode = wire.StatusRetryable
		if consumererror.IsPermanent(err) {
			st.StatusCode = wire.StatusPermanent
		}
		st.ErrorMessage = err.Error()
	}
	return stream.Send(st)
}

func (r *Receiver) forward(ctx context.Context, batch arrowcodec.Batch) error {
	switch batch.Signal {
	case wire.SignalTraces:
		return r.nextTraces.ConsumeTraces(ctx, batch.Traces)
	case wire.SignalMetrics:
		return r.nextMetrics.ConsumeMetrics(ctx, batch.Metrics)
	case wire.SignalLogs:
		return r.nextLogs.ConsumeLogs(ctx, batch.Logs)
	default:
		return consumererror.Permanent(errors.New("unknown signal"))
	}
}

// errToStatus mirrors the batch error taxonomy onto the plain protocol.
func errToStatus(err error) error {
	if err == nil {
		return nil
	}
	if consumererror.IsPermanent(err) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}

type plainTraces struct {
	ptraceotlp.UnimplementedGRPCServer
	next consumer.Traces
}

func (s *plainTraces) Export(ctx context.Context, req ptraceotlp.ExportRequest) (ptraceotlp.ExportResponse, error) {
	td := req.Traces()
	if td.SpanCount() == 0 {
		return ptraceotlp.NewExportResponse(), nil
	}
	return ptraceotlp.NewExportResponse(), errToStatus(s.next.ConsumeTraces(ctx, td))
}

type plainMetrics struct {
	pmetricotlp.UnimplementedGRPCServer
	next consumer.Metrics
}

func (s *plainMetrics) Export(ctx context.Context, req pmetricotlp.ExportRequest) (pmetricotlp.ExportResponse, error) {
	md := req.Metrics()
	if md.DataPointCount() == 0 {
		return pmetricotlp.NewExportResponse(), nil
	}
	return pmetricotlp.NewExportResponse(), errToStatus(s.next.ConsumeMetrics(ctx, md))
}

type plainLogs struct {
	plogotlp.UnimplementedGRPCServer
	next consumer.Logs
}

func (s *plainLogs) Export(ctx context.Context, req plogotlp.ExportRequest) (plogotlp.ExportResponse, error) {
	ld := req.Logs()
	if ld.LogRecordCount() == 0 {
		return plogotlp.NewExportResponse(), nil
	}
	return plogotlp.NewExportResponse(), errToStatus(s.next.ConsumeLogs(ctx, ld))
}
