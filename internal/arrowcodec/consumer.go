// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/arrowbridge/bridge/internal/wire"
)

// Batch is one decoded telemetry batch. Exactly one of the signal fields is
// populated, selected by Signal.
type Batch struct {
	Signal  wire.Signal
	Traces  ptrace.Traces
	Metrics pmetric.Metrics
	Logs    plog.Logs
}

// Consumer decodes columnar payloads arriving on one inbound stream. It is
// owned by that stream's handler and must not be used concurrently.
type Consumer struct {
	mem    memory.Allocator
	states map[wire.Signal]*consumerState
}

type consumerState struct {
	schemaID int64
	feed     *chunkFeeder
	reader   *ipc.Reader
}

// chunkFeeder hands previously fed payload bytes to the IPC reader. The
// reader only consumes bytes while Decode drives it, so running dry means
// the sender violated the framing.
type chunkFeeder struct {
	buf bytes.Buffer
}

func (f *chunkFeeder) Read(p []byte) (int, error) {
	if f.buf.Len() == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return f.buf.Read(p)
}

// NewConsumer returns a Consumer with empty schema state.
func NewConsumer() *Consumer {
	return &Consumer{
		mem:    memory.NewGoAllocator(),
		states: make(map[wire.Signal]*consumerState),
	}
}

// Decode decodes one payload. ErrSchemaMismatch is fatal for the stream:
// the payload references schema state this consumer never received.
// ErrCorruptPayload drops the batch but also invalidates the signal's
// reader, forcing the sender to start a new schema generation.
func (c *Consumer) Decode(br *wire.BatchRecords) (Batch, error) {
	schema := schemaFor(br.Signal)
	if schema == nil {
		return Batch{}, fmt.Errorf("%w: unknown signal %d", ErrCorruptPayload, br.Signal)
	}

	st := c.states[br.Signal]
	if st == nil || st.schemaID != br.SchemaID {
		// New schema generation: the chunk must open with a schema section.
		feed := &chunkFeeder{}
		feed.buf.Write(br.IPCChunk)
		reader, err := ipc.NewReader(feed, ipc.WithAllocator(c.mem), ipc.WithSchema(schema))
		if err != nil {
			// A data-only chunk for a generation this stream has not seen.
			return Batch{}, fmt.Errorf("%w: schema %d: %v", ErrSchemaMismatch, br.SchemaID, err)
		}
		st = &consumerState{schemaID: br.SchemaID, feed: feed, reader: reader}
		c.states[br.Signal] = st
	} else {
		st.feed.buf.Write(br.IPCChunk)
	}

	if !st.reader.Next() {
		err := st.reader.Err()
		delete(c.states, br.Signal)
		return Batch{}, fmt.Errorf("%w: reading %s record batch: %v", ErrCorruptPayload, br.Signal, err)
	}
	rec := st.reader.Record()

	batch := Batch{Signal: br.Signal}
	var err error
	switch br.Signal {
	case wire.SignalTraces:
		batch.Traces, err = decodeTraces(rec)
	case wire.SignalMetrics:
		batch.Metrics, err = decodeMetrics(rec)
	case wire.SignalLogs:
		batch.Logs, err = decodeLogs(rec)
	}
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}
