// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arrowbridge/bridge/consumer/consumererror"
	"github.com/arrowbridge/bridge/internal/wire"
)

type fakeCapClient struct {
	mu        sync.Mutex
	calls     int
	err       error
	supported bool
}

func (c *fakeCapClient) Capabilities(context.Context, *wire.CapabilitiesRequest, ...grpc.CallOption) (*wire.CapabilitiesResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &wire.CapabilitiesResponse{ArrowSupported: c.supported}, nil
}

func (c *fakeCapClient) ArrowStream(context.Context, ...grpc.CallOption) (wire.ArrowStreamService_ArrowStreamClient, error) {
	panic("not used")
}

func TestNegotiationSupported(t *testing.T) {
	client := &fakeCapClient{supported: true}
	n := newNegotiator(zaptest.NewLogger(t), client)

	st, err := n.resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stateArrowSupported, st)

	// The outcome is cached.
	st, err = n.resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stateArrowSupported, st)
	assert.Equal(t, 1, client.calls)
}

func TestNegotiationUnimplemented(t *testing.T) {
	client := &fakeCapClient{err: status.Error(codes.Unimplemented, "unknown service")}
	n := newNegotiator(zaptest.NewLogger(t), client)

	st, err := n.resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stateArrowUnsupported, st)
	assert.Equal(t, 1, client.calls)
}

func TestNegotiationDeclined(t *testing.T) {
	client := &fakeCapClient{supported: false}
	n := newNegotiator(zaptest.NewLogger(t), client)

	st, err := n.resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stateArrowUnsupported, st)
}

func TestNegotiationTransientFailure(t *testing.T) {
	client := &fakeCapClient{err: status.Error(codes.Unavailable, "connection refused")}
	n := newNegotiator(zaptest.NewLogger(t), client)

	_, err := n.resolve(context.Background())
	require.Error(t, err)

	// A transient failure does not cache an outcome; the next resolve
	// negotiates again and can succeed.
	client.mu.Lock()
	client.err = nil
	client.supported = true
	client.mu.Unlock()

	st, err := n.resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stateArrowSupported, st)
	assert.Equal(t, 2, client.calls)
}

func TestErrorTriage(t *testing.T) {
	assert.NoError(t, processError(nil))

	retryable := processError(status.Error(codes.Unavailable, "busy"))
	require.Error(t, retryable)
	assert.False(t, consumererror.IsPermanent(retryable))

	permanent := processError(status.Error(codes.InvalidArgument, "bad"))
	require.Error(t, permanent)
	assert.True(t, consumererror.IsPermanent(permanent))
}
