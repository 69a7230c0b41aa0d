// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package streams

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"

	"github.com/arrowbridge/bridge/consumer/consumererror"
	"github.com/arrowbridge/bridge/internal/arrowcodec"
	"github.com/arrowbridge/bridge/internal/wire"
)

type fakeClient struct {
	mu      sync.Mutex
	opened  []*fakeStream
	openErr error
	gate    chan struct{}

	autoAckCode wire.StatusCode
	autoAckMsg  string
	manualAck   bool
}

func (c *fakeClient) Capabilities(context.Context, *wire.CapabilitiesRequest, ...grpc.CallOption) (*wire.CapabilitiesResponse, error) {
	return &wire.CapabilitiesResponse{ArrowSupported: true}, nil
}

func (c *fakeClient) ArrowStream(ctx context.Context, _ ...grpc.CallOption) (wire.ArrowStreamService_ArrowStreamClient, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	s := &fakeStream{
		ctx:     ctx,
		owner:   c,
		acks:    make(chan *wire.BatchStatus, 128),
		closeCh: make(chan struct{}),
	}
	c.opened = append(c.opened, s)
	return s, nil
}

func (c *fakeClient) streamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opened)
}

type fakeStream struct {
	ctx     context.Context
	owner   *fakeClient
	acks    chan *wire.BatchStatus
	closeCh chan struct{}

	mu   sync.Mutex
	sent []*wire.BatchRecords
}

func (s *fakeStream) Send(br *wire.BatchRecords) error {
	s.mu.Lock()
	s.sent = append(s.sent, br)
	s.mu.Unlock()
	if !s.owner.manualAck {
		s.acks <- &wire.BatchStatus{
			BatchID:      br.BatchID,
			StatusCode:   s.owner.autoAckCode,
			ErrorMessage: s.owner.autoAckMsg,
		}
	}
	return nil
}

func (s *fakeStream) Recv() (*wire.BatchStatus, error) {
	select {
	case st := <-s.acks:
		return st, nil
	default:
	}
	select {
	case st := <-s.acks:
		return st, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-s.closeCh:
		return nil, io.EOF
	}
}

func (s *fakeStream) CloseSend() error {
	close(s.closeCh)
	return nil
}

func (s *fakeStream) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testBatch() arrowcodec.Batch {
	td := ptrace.NewTraces()
	span := td.ResourceSpans().AppendEmpty().ScopeSpans().AppendEmpty().Spans().AppendEmpty()
	span.SetName("op")
	return arrowcodec.Batch{Signal: wire.SignalTraces, Traces: td}
}

func startManager(t *testing.T, client wire.ArrowStreamServiceClient, set Settings) *Manager {
	t.Helper()
	set.Logger = zaptest.NewLogger(t)
	m := NewManager(client, set)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func TestSendAndAck(t *testing.T) {
	client := &fakeClient{}
	m := startManager(t, client, Settings{NumStreams: 2, WaitForReady: true})

	require.Eventually(t, func() bool {
		return client.streamCount() == 2
	}, 5*time.Second, 10*time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Send(context.Background(), testBatch()))
	}

	total := 0
	for _, s := range client.opened {
		total += s.sentCount()
	}
	assert.Equal(t, 10, total)
	// The rotating start index spreads batches across both streams.
	for _, s := range client.opened {
		assert.Positive(t, s.sentCount())
	}
}

func TestSendFailsFastWhenNotReady(t *testing.T) {
	client := &fakeClient{openErr: errors.New("dial refused")}
	m := startManager(t, client, Settings{NumStreams: 1})

	err := m.Send(context.Background(), testBatch())
	assert.ErrorIs(t, err, ErrNoReadyStream)
}

func TestSendWaitsForReady(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{gate: gate}
	m := startManager(t, client, Settings{NumStreams: 1, WaitForReady: true})

	time.AfterFunc(50*time.Millisecond, func() { close(gate) })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, m.Send(ctx, testBatch()))
}

func TestPeerFailureCodes(t *testing.T) {
	client := &fakeClient{autoAckCode: wire.StatusRetryable, autoAckMsg: "try later"}
	m := startManager(t, client, Settings{NumStreams: 1, WaitForReady: true})

	err := m.Send(context.Background(), testBatch())
	require.Error(t, err)
	assert.False(t, consumererror.IsPermanent(err))

	client.autoAckCode = wire.StatusPermanent
	err = m.Send(context.Background(), testBatch())
	require.Error(t, err)
	assert.True(t, consumererror.IsPermanent(err))
}

func TestShutdownFailsInFlight(t *testing.T) {
	client := &fakeClient{manualAck: true}
	m := startManager(t, client, Settings{NumStreams: 1, WaitForReady: true})

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- m.Send(context.Background(), testBatch())
	}()

	require.Eventually(t, func() bool {
		return client.streamCount() > 0 && client.opened[0].sentCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	assert.ErrorIs(t, <-sendErr, ErrStreamRestarting)
	assert.ErrorIs(t, m.Send(context.Background(), testBatch()), ErrStreamShutdown)
}

func TestStreamRotation(t *testing.T) {
	client := &fakeClient{}
	m := startManager(t, client, Settings{
		NumStreams:        1,
		WaitForReady:      true,
		MaxStreamLifetime: 50 * time.Millisecond,
		DrainGrace:        time.Second,
	})

	require.NoError(t, m.Send(context.Background(), testBatch()))
	require.Eventually(t, func() bool {
		return client.streamCount() >= 2
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Send(context.Background(), testBatch()))
}
