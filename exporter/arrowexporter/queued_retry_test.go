// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arrowbridge/bridge/consumer/consumererror"
)

// mockSender fails the first failures sends, then succeeds.
type mockSender struct {
	mu       sync.Mutex
	attempts int
	failures int
	err      error

	unblock chan struct{}
}

func (m *mockSender) send(req *request) error {
	if m.unblock != nil {
		select {
		case <-m.unblock:
		case <-req.ctx.Done():
			return req.ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failures {
		return m.err
	}
	return nil
}

func (m *mockSender) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func fastRetry() RetrySettings {
	return RetrySettings{
		Enabled:         true,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func testRequest() *request {
	return &request{ctx: context.Background()}
}

func TestSyncSendWithoutQueue(t *testing.T) {
	next := &mockSender{}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{}, RetrySettings{}, next)
	qrs.start()
	defer qrs.shutdown()

	require.NoError(t, qrs.send(testRequest()))
	assert.Equal(t, 1, next.attemptCount())
}

func TestRetryUntilSuccess(t *testing.T) {
	next := &mockSender{failures: 2, err: errors.New("transient")}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{}, fastRetry(), next)
	qrs.start()
	defer qrs.shutdown()

	require.NoError(t, qrs.send(testRequest()))
	assert.Equal(t, 3, next.attemptCount())
}

func TestPermanentErrorNotRetried(t *testing.T) {
	permanent := consumererror.Permanent(errors.New("bad data"))
	next := &mockSender{failures: 10, err: permanent}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{}, fastRetry(), next)
	qrs.start()
	defer qrs.shutdown()

	err := qrs.send(testRequest())
	assert.True(t, consumererror.IsPermanent(err))
	assert.Equal(t, 1, next.attemptCount())
}

func TestRetryMaxElapsedTime(t *testing.T) {
	rCfg := fastRetry()
	rCfg.MaxElapsedTime = 20 * time.Millisecond
	next := &mockSender{failures: 1 << 30, err: errors.New("transient")}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{}, rCfg, next)
	qrs.start()
	defer qrs.shutdown()

	assert.Error(t, qrs.send(testRequest()))
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	next := &mockSender{failures: 1 << 30, err: errors.New("transient")}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{}, fastRetry(), next)
	qrs.start()
	defer qrs.shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := qrs.send(&request{ctx: ctx})
	assert.Error(t, err)
}

func TestQueueFull(t *testing.T) {
	unblock := make(chan struct{})
	next := &mockSender{unblock: unblock}
	qCfg := QueueSettings{Enabled: true, NumConsumers: 1, QueueSize: 1}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), qCfg, RetrySettings{}, next)
	qrs.start()
	defer qrs.shutdown()

	// First request occupies the worker, second fills the queue.
	require.NoError(t, qrs.send(testRequest()))
	require.Eventually(t, func() bool {
		return len(qrs.queue) == 0
	}, time.Second, time.Millisecond)
	require.NoError(t, qrs.send(testRequest()))

	assert.ErrorIs(t, qrs.send(testRequest()), ErrQueueFull)
	close(unblock)
}

func TestSendAfterShutdown(t *testing.T) {
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{Enabled: true, NumConsumers: 1, QueueSize: 1}, RetrySettings{}, &mockSender{})
	qrs.start()
	qrs.shutdown()

	assert.ErrorIs(t, qrs.send(testRequest()), ErrShutdown)
}

func TestShutdownInterruptsBackoff(t *testing.T) {
	rCfg := fastRetry()
	rCfg.InitialInterval = time.Hour
	next := &mockSender{failures: 1 << 30, err: errors.New("transient")}
	qrs := newQueuedRetrySender(zaptest.NewLogger(t), QueueSettings{}, rCfg, next)
	qrs.start()

	var wg sync.WaitGroup
	var sendErr atomic.Value
	wg.Add(1)
	go func() {
		defer wg.Done()
		sendErr.Store(qrs.send(testRequest()))
	}()
	require.Eventually(t, func() bool {
		return next.attemptCount() == 1
	}, time.Second, time.Millisecond)

	qrs.shutdown()
	wg.Wait()
	assert.ErrorIs(t, sendErr.Load().(error), ErrShutdown)
}
