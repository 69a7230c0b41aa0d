// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package streams // import "github.com/arrowbridge/bridge/exporter/arrowexporter/internal/streams"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arrowbridge/bridge/consumer/consumererror"
	"github.com/arrowbridge/bridge/internal/arrowcodec"
	"github.com/arrowbridge/bridge/internal/wire"
)

// Stream status values. Only the stream's own goroutines move the status
// forward; readers observe it through the atomic.
const (
	streamConnecting int32 = iota
	streamReady
	streamDraining
	streamClosed
)

// writeItem is one batch handed to a stream's send loop, paired with the
// channel the ack (or failure) is delivered on.
type writeItem struct {
	batch arrowcodec.Batch
	errCh chan error
}

// stream owns one physical ArrowStream RPC. The send loop is the only
// goroutine touching the producer, so schema state needs no locking. The
// ack loop is the only goroutine resolving waiters.
type stream struct {
	id       string
	logger   *zap.Logger
	client   wire.ArrowStreamServiceClient
	producer *arrowcodec.Producer

	maxLifetime  time.Duration
	grace        time.Duration
	waitForReady bool

	status  atomic.Int32
	toWrite chan writeItem
	done    chan struct{}

	mu          sync.Mutex
	nextBatchID int64
	waiters     map[int64]chan error
}

func newStream(client wire.ArrowStreamServiceClient, logger *zap.Logger, maxLifetime, grace time.Duration, waitForReady bool) *stream {
	id := uuid.NewString()
	return &stream{
		id:           id,
		logger:       logger.With(zap.String("stream_id", id)),
		client:       client,
		producer:     arrowcodec.NewProducer(),
		maxLifetime:  maxLifetime,
		grace:        grace,
		waitForReady: waitForReady,
		toWrite:      make(chan writeItem),
		done:         make(chan struct{}),
		waiters:      map[int64]chan error{},
	}
}

func (s *stream) ready() bool {
	return s.status.Load() == streamReady
}

func (s *stream) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *stream) addWaiter(ch chan error) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBatchID++
	id := s.nextBatchID
	s.waiters[id] = ch
	return id
}

func (s *stream) takeWaiter(id int64) (chan error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.waiters[id]
	if ok {
		delete(s.waiters, id)
	}
	return ch, ok
}

// failAll resolves every outstanding waiter with err. Called once, after
// both loops have stopped.
func (s *stream) failAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.waiters {
		ch <- err
		delete(s.waiters, id)
	}
}

// run drives the stream until it ends: lifetime rotation, server close,
// transport failure, or ctx cancellation. On return every waiter has been
// resolved and the status is streamClosed.
func (s *stream) run(ctx context.Context, onReady func()) error {
	defer close(s.done)
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sc, err := s.client.ArrowStream(sctx, grpc.WaitForReady(s.waitForReady))
	if err != nil {
		s.status.Store(streamClosed)
		return fmt.Errorf("open stream: %w", err)
	}

	s.status.Store(streamReady)
	s.logger.Debug("stream open")
	onReady()

	var wg sync.WaitGroup
	wg.Add(1)
	sendErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		sendErr <- s.sendLoop(sctx, cancel, sc)
	}()

	recvErr := s.recvLoop(sc)

	// The recv loop ending means no further acks can arrive. Stop the
	// send loop and fail whatever is still outstanding as retryable.
	s.status.Store(streamClosed)
	cancel()
	wg.Wait()
	s.failAll(ErrStreamRestarting)

	if err := <-sendErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if recvErr != nil && !errors.Is(recvErr, io.EOF) && sctx.Err() == nil {
		return recvErr
	}
	return nil
}

func (s *stream) sendLoop(ctx context.Context, cancel context.CancelFunc, sc wire.ArrowStreamService_ArrowStreamClient) error {
	var lifetime <-chan time.Time
	if s.maxLifetime > 0 {
		t := time.NewTimer(s.maxLifetime)
		defer t.Stop()
		lifetime = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lifetime:
			return s.drain(ctx, cancel, sc)
		case item := <-s.toWrite:
			if err := s.writeOne(sc, item); err != nil {
				return err
			}
		}
	}
}

// writeOne encodes and sends one batch. Encoding failures are local to the
// batch; transport failures end the stream.
func (s *stream) writeOne(sc wire.ArrowStreamService_ArrowStreamClient, item writeItem) error {
	br, err := s.encode(item.batch)
	if err != nil {
		item.errCh <- consumererror.Permanent(err)
		return nil
	}
	br.BatchID = s.addWaiter(item.errCh)
	if err := sc.Send(br); err != nil {
		if ch, ok := s.takeWaiter(br.BatchID); ok {
			ch <- ErrStreamRestarting
		}
		return fmt.Errorf("stream send: %w", err)
	}
	return nil
}

func (s *stream) encode(batch arrowcodec.Batch) (*wire.BatchRecords, error) {
	switch batch.Signal {
	case wire.SignalTraces:
		return s.producer.EncodeTraces(batch.Traces)
	case wire.SignalMetrics:
		return s.producer.EncodeMetrics(batch.Metrics)
	case wire.SignalLogs:
		return s.producer.EncodeLogs(batch.Logs)
	default:
		return nil, fmt.Errorf("unknown signal %v", batch.Signal)
	}
}

// drain stops accepting new batches, half-closes the stream, and gives the
// server the grace period to deliver outstanding acks. The recv loop ends
// with io.EOF when the server finishes.
func (s *stream) drain(ctx context.Context, cancel context.CancelFunc, sc wire.ArrowStreamService_ArrowStreamClient) error {
	s.status.Store(streamDraining)
	s.logger.Debug("stream lifetime reached, draining",
		zap.Int("in_flight", s.inFlight()))
	if err := sc.CloseSend(); err != nil {
		return fmt.Errorf("close send: %w", err)
	}
	var grace <-chan time.Time
	if s.grace > 0 {
		t := time.NewTimer(s.grace)
		defer t.Stop()
		grace = t.C
	}
	// The recv loop ends with io.EOF once the server delivers the last
	// ack; the grace timer forces the stream closed if it does not.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-grace:
		s.logger.Warn("drain grace period expired", zap.Int("in_flight", s.inFlight()))
		cancel()
		return nil
	}
}

func (s *stream) recvLoop(sc wire.ArrowStreamService_ArrowStreamClient) error {
	for {
		st, err := sc.Recv()
		if err != nil {
			return err
		}
		ch, ok := s.takeWaiter(st.BatchID)
		if !ok {
			s.logger.Warn("ack for unknown batch", zap.Int64("batch_id", st.BatchID))
			continue
		}
		switch st.StatusCode {
		case wire.StatusOK:
			ch <- nil
		case wire.StatusPermanent:
			ch <- consumererror.Permanent(fmt.Errorf("peer rejected batch: %s", st.ErrorMessage))
		default:
			ch <- fmt.Errorf("peer failed batch: %s", st.ErrorMessage)
		}
	}
}
