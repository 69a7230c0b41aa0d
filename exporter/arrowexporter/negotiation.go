// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter // import "github.com/arrowbridge/bridge/exporter/arrowexporter"

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arrowbridge/bridge/internal/wire"
)

type negotiationState int

const (
	stateUnknown negotiationState = iota
	stateNegotiating
	stateArrowSupported
	stateArrowUnsupported
)

// negotiator resolves and caches whether the peer speaks the arrow
// protocol. The answer is cached for the exporter's lifetime; a transient
// handshake failure leaves the state unresolved so the next send tries
// again.
type negotiator struct {
	logger *zap.Logger
	client wire.ArrowStreamServiceClient

	mu    sync.Mutex
	state negotiationState
}

func newNegotiator(logger *zap.Logger, client wire.ArrowStreamServiceClient) *negotiator {
	return &negotiator{logger: logger, client: client}
}

// resolve returns the cached outcome, performing the Capabilities handshake
// on first use. Concurrent callers serialize on the handshake.
func (n *negotiator) resolve(ctx context.Context) (negotiationState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == stateArrowSupported || n.state == stateArrowUnsupported {
		return n.state, nil
	}

	n.state = stateNegotiating
	resp, err := n.client.Capabilities(ctx, &wire.CapabilitiesRequest{})
	if err != nil {
		if status.Code(err) == codes.Unimplemented {
			n.logger.Info("Peer does not implement the arrow protocol, downgrading.")
			n.state = stateArrowUnsupported
			return n.state, nil
		}
		n.state = stateUnknown
		return stateUnknown, fmt.Errorf("capabilities handshake: %w", err)
	}
	if !resp.ArrowSupported {
		n.logger.Info("Peer reports no arrow support, downgrading.")
		n.state = stateArrowUnsupported
		return n.state, nil
	}
	n.logger.Debug("Peer supports the arrow protocol.")
	n.state = stateArrowSupported
	return n.state, nil
}
