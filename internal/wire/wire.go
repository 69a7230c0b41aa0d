// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the bridge's wire protocol: the stream envelope
// messages defined in arrowbridge.proto, a gRPC codec for them, and the
// client and server stubs of ArrowStreamService. The messages are marshaled
// by hand with protowire and stay wire-compatible with the .proto file.
package wire // import "github.com/arrowbridge/bridge/internal/wire"

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Signal identifies the telemetry signal carried by a payload.
type Signal int32

const (
	SignalUnspecified Signal = 0
	SignalTraces      Signal = 1
	SignalMetrics     Signal = 2
	SignalLogs        Signal = 3
)

func (s Signal) String() string {
	switch s {
	case SignalTraces:
		return "traces"
	case SignalMetrics:
		return "metrics"
	case SignalLogs:
		return "logs"
	default:
		return "unspecified"
	}
}

// StatusCode classifies the outcome of one batch on the receiving side.
type StatusCode int32

const (
	StatusOK        StatusCode = 0
	StatusRetryable StatusCode = 1
	StatusPermanent StatusCode = 2
)

// CapabilitiesRequest is the negotiation handshake request.
type CapabilitiesRequest struct{}

func (m *CapabilitiesRequest) marshal(b []byte) []byte { return b }

func (m *CapabilitiesRequest) unmarshal(b []byte) error {
	*m = CapabilitiesRequest{}
	return skipUnknown(b)
}

// CapabilitiesResponse is the negotiation handshake response.
type CapabilitiesResponse struct {
	ArrowSupported bool
}

func (m *CapabilitiesResponse) marshal(b []byte) []byte {
	if m.ArrowSupported {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func (m *CapabilitiesResponse) unmarshal(b []byte) error {
	*m = CapabilitiesResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.ArrowSupported = v != 0
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// BatchRecords is one columnar payload: an Arrow IPC stream fragment for a
// single signal, tagged with the schema generation it belongs to.
type BatchRecords struct {
	BatchID  int64
	Signal   Signal
	SchemaID int64
	IPCChunk []byte
}

func (m *BatchRecords) marshal(b []byte) []byte {
	if m.BatchID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.BatchID))
	}
	if m.Signal != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Signal))
	}
	if m.SchemaID != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.SchemaID))
	}
	if len(m.IPCChunk) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, m.IPCChunk)
	}
	return b
}

func (m *BatchRecords) unmarshal(b []byte) error {
	*m = BatchRecords{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.BatchID = int64(v)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Signal = Signal(int32(v))
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.SchemaID = int64(v)
			b = b[n:]
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.IPCChunk = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// BatchStatus is the receiver's acknowledgment for one batch.
type BatchStatus struct {
	BatchID      int64
	StatusCode   StatusCode
	ErrorMessage string
}

func (m *BatchStatus) marshal(b []byte) []byte {
	if m.BatchID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.BatchID))
	}
	if m.StatusCode != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.StatusCode))
	}
	if m.ErrorMessage != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.ErrorMessage)
	}
	return b
}

func (m *BatchStatus) unmarshal(b []byte) error {
	*m = BatchStatus{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.BatchID = int64(v)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.StatusCode = StatusCode(int32(v))
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.ErrorMessage = string(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func skipUnknown(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
