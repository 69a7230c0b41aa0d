// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import "errors"

var (
	// ErrSchemaMismatch reports a data section referencing a schema
	// generation the stream has not seen. The stream carrying the payload
	// must be closed; a replacement stream renegotiates schema state from
	// scratch.
	ErrSchemaMismatch = errors.New("payload references unknown schema state")

	// ErrCorruptPayload reports a payload whose column contents cannot be
	// decoded. The enclosing batch is dropped; the error is per-batch, not
	// a connection failure.
	ErrCorruptPayload = errors.New("corrupt columnar payload")
)
