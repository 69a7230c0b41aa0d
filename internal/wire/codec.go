// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package wire // import "github.com/arrowbridge/bridge/internal/wire"

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype under which the bridge codec is
// registered. Client calls must pass grpc.CallContentSubtype(CodecName);
// the stubs in this package do so themselves.
const CodecName = "arrowbridge"

type message interface {
	marshal(b []byte) []byte
	unmarshal(b []byte) error
}

// codec marshals the envelope messages of this package for gRPC. It is
// registered for CodecName on package initialization, so importing this
// package on both ends of a connection is sufficient.
type codec struct{}

var _ encoding.Codec = codec{}

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("wire codec: cannot marshal %T", v)
	}
	return m.marshal(nil), nil
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("wire codec: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data)
}

func (codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(codec{})
}
