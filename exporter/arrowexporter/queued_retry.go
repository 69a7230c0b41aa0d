// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter // import "github.com/arrowbridge/bridge/exporter/arrowexporter"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/arrowbridge/bridge/consumer/consumererror"
	"github.com/arrowbridge/bridge/internal/arrowcodec"
)

var (
	// ErrQueueFull is returned when the sending queue cannot accept
	// another batch.
	ErrQueueFull = errors.New("sending queue is full")
	// ErrShutdown fails sends that were queued or in flight when the
	// exporter shut down.
	ErrShutdown = errors.New("exporter is shutting down")
)

// request is one batch traveling through the sender chain with the
// caller's context.
type request struct {
	ctx   context.Context
	batch arrowcodec.Batch
}

// requestSender is one link of the sender chain.
type requestSender interface {
	send(req *request) error
}

// queuedRetrySender is the head of the chain: an optional bounded queue
// drained by a fixed worker pool, followed by the retry sender.
type queuedRetrySender struct {
	logger         *zap.Logger
	cfg            QueueSettings
	consumerSender requestSender
	queue          chan *request
	stopCh         chan struct{}
	stopped        atomic.Bool
	wg             sync.WaitGroup
}

func newQueuedRetrySender(logger *zap.Logger, qCfg QueueSettings, rCfg RetrySettings, nextSender requestSender) *queuedRetrySender {
	stopCh := make(chan struct{})
	return &queuedRetrySender{
		logger: logger,
		cfg:    qCfg,
		consumerSender: &retrySender{
			logger:     logger,
			cfg:        rCfg,
			nextSender: nextSender,
			stopCh:     stopCh,
		},
		queue:  make(chan *request, qCfg.QueueSize),
		stopCh: stopCh,
	}
}

func (qrs *queuedRetrySender) start() {
	if !qrs.cfg.Enabled {
		return
	}
	for i := 0; i < qrs.cfg.NumConsumers; i++ {
		qrs.wg.Add(1)
		go func() {
			defer qrs.wg.Done()
			for {
				select {
				case <-qrs.stopCh:
					return
				case req := <-qrs.queue:
					if err := qrs.consumerSender.send(req); err != nil {
						qrs.logger.Error("Exporting failed. Dropping data.",
							zap.Error(err))
					}
				}
			}
		}()
	}
}

func (qrs *queuedRetrySender) send(req *request) error {
	if qrs.stopped.Load() {
		return ErrShutdown
	}
	if !qrs.cfg.Enabled {
		return qrs.consumerSender.send(req)
	}
	select {
	case qrs.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// shutdown stops the workers and fails what remains queued.
func (qrs *queuedRetrySender) shutdown() {
	qrs.stopped.Store(true)
	close(qrs.stopCh)
	qrs.wg.Wait()
	for {
		select {
		case <-qrs.queue:
			qrs.logger.Error("Exporting failed. Dropping data.", zap.Error(ErrShutdown))
		default:
			return
		}
	}
}

// retrySender retries retryable failures with exponential backoff. Permanent
// errors and failures past max_elapsed_time are returned to the caller.
type retrySender struct {
	logger     *zap.Logger
	cfg        RetrySettings
	nextSender requestSender
	stopCh     chan struct{}
}

func (rs *retrySender) send(req *request) error {
	if !rs.cfg.Enabled {
		return rs.nextSender.send(req)
	}

	expBackoff := backoff.ExponentialBackOff{
		InitialInterval:     rs.cfg.InitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         rs.cfg.MaxInterval,
		MaxElapsedTime:      rs.cfg.MaxElapsedTime,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	expBackoff.Reset()
	for {
		err := rs.nextSender.send(req)
		if err == nil {
			return nil
		}
		if consumererror.IsPermanent(err) {
			return err
		}

		backoffDelay := expBackoff.NextBackOff()
		if backoffDelay == backoff.Stop {
			return fmt.Errorf("max elapsed time expired: %w", err)
		}

		rs.logger.Info("Exporting failed. Will retry the request after interval.",
			zap.Error(err),
			zap.Duration("interval", backoffDelay))

		select {
		case <-req.ctx.Done():
			return fmt.Errorf("request is cancelled or timed out: %w", err)
		case <-rs.stopCh:
			return ErrShutdown
		case <-time.After(backoffDelay):
		}
	}
}

// timeoutSender bounds each attempt without mutating the request the retry
// sender holds.
type timeoutSender struct {
	timeout    time.Duration
	nextSender requestSender
}

func (ts *timeoutSender) send(req *request) error {
	if ts.timeout <= 0 {
		return ts.nextSender.send(req)
	}
	ctx, cancel := context.WithTimeout(req.ctx, ts.timeout)
	defer cancel()
	attempt := &request{ctx: ctx, batch: req.batch}
	return ts.nextSender.send(attempt)
}
