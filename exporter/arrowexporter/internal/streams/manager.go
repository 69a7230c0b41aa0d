// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package streams multiplexes batches over a fixed set of long-lived
// ArrowStream RPCs. Batches land on the least-loaded ready stream; streams
// rotate when they reach their configured lifetime, and batches that were
// in flight on a dead stream are failed back to the caller as retryable.
package streams // import "github.com/arrowbridge/bridge/exporter/arrowexporter/internal/streams"

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/arrowbridge/bridge/internal/arrowcodec"
	"github.com/arrowbridge/bridge/internal/wire"
)

var (
	// ErrNoReadyStream is returned by Send when no stream is ready and
	// wait-for-ready is disabled. Retryable.
	ErrNoReadyStream = errors.New("no stream is ready")
	// ErrStreamRestarting resolves batches that were in flight when their
	// stream died. Retryable.
	ErrStreamRestarting = errors.New("stream restarting")
	// ErrStreamShutdown is returned by Send after Shutdown began.
	ErrStreamShutdown = errors.New("stream manager is shutting down")
)

// Settings configures a Manager.
type Settings struct {
	Logger *zap.Logger

	// NumStreams is the number of concurrent physical streams. Defaults
	// to 1.
	NumStreams int

	// MaxStreamLifetime rotates a stream after this duration. Zero keeps
	// streams open until the server ends them.
	MaxStreamLifetime time.Duration

	// DrainGrace bounds how long a rotating stream waits for outstanding
	// acknowledgments before closing.
	DrainGrace time.Duration

	// WaitForReady makes Send block until a stream is available instead
	// of failing fast, and is also passed through to the transport.
	WaitForReady bool
}

// Manager owns the fixed stream set. Each slot runs one goroutine that
// reconnects its stream for the Manager's whole lifetime.
type Manager struct {
	set    Settings
	client wire.ArrowStreamServiceClient

	rr atomic.Uint64

	mu      sync.Mutex
	streams []*stream
	readyCh chan struct{}

	cancel     context.CancelFunc
	shutdownCh chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewManager builds a Manager over client. Call Start before Send.
func NewManager(client wire.ArrowStreamServiceClient, set Settings) *Manager {
	if set.Logger == nil {
		set.Logger = zap.NewNop()
	}
	if set.NumStreams <= 0 {
		set.NumStreams = 1
	}
	return &Manager{
		set:        set,
		client:     client,
		streams:    make([]*stream, set.NumStreams),
		readyCh:    make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start launches one reconnect loop per stream slot.
func (m *Manager) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	for i := 0; i < m.set.NumStreams; i++ {
		m.wg.Add(1)
		go m.runSlot(ctx, i)
	}
	return nil
}

func (m *Manager) runSlot(ctx context.Context, slot int) {
	defer m.wg.Done()
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for ctx.Err() == nil {
		s := newStream(m.client, m.set.Logger, m.set.MaxStreamLifetime, m.set.DrainGrace, m.set.WaitForReady)
		m.mu.Lock()
		m.streams[slot] = s
		m.mu.Unlock()
		err := s.run(ctx, m.signalReady)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Clean rotation or server-initiated close.
			m.set.Logger.Debug("stream rotated", zap.Int("slot", slot))
			bo.Reset()
			continue
		}
		m.set.Logger.Warn("stream failed", zap.Int("slot", slot), zap.Error(err))
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) signalReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.readyCh)
	m.readyCh = make(chan struct{})
}

// pick returns the ready stream with the fewest in-flight batches, scanning
// from a rotating start index so equally loaded streams take turns. When no
// stream is ready it returns the channel that closes on the next readiness
// change.
func (m *Manager) pick() (*stream, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := int(m.rr.Add(1))
	var best *stream
	bestLoad := 0
	for i := 0; i < len(m.streams); i++ {
		s := m.streams[(start+i)%len(m.streams)]
		if s == nil || !s.ready() {
			continue
		}
		load := s.inFlight()
		if best == nil || load < bestLoad {
			best, bestLoad = s, load
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, m.readyCh
}

// Send delivers one batch over some ready stream and blocks until the peer
// acknowledges it, the batch fails, or ctx ends. The returned error is nil
// on acknowledgment, permanent when wrapped by consumererror, retryable
// otherwise.
func (m *Manager) Send(ctx context.Context, batch arrowcodec.Batch) error {
	item := writeItem{batch: batch, errCh: make(chan error, 1)}
	for {
		s, wait := m.pick()
		if s == nil {
			if !m.set.WaitForReady {
				return ErrNoReadyStream
			}
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return ctx.Err()
			case <-m.shutdownCh:
				return ErrStreamShutdown
			}
		}
		select {
		case s.toWrite <- item:
			select {
			case err := <-item.errCh:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-s.done:
			// Stream died between pick and handoff.
			continue
		case <-ctx.Done():
			return ctx.Err()
		case <-m.shutdownCh:
			return ErrStreamShutdown
		}
	}
}

// Shutdown stops all streams, failing in-flight batches, and waits for the
// slot goroutines bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() {
		close(m.shutdownCh)
		if m.cancel != nil {
			m.cancel()
		}
	})
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
