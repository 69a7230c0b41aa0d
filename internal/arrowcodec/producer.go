// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package arrowcodec converts between the pdata telemetry model and the
// bridge's columnar wire representation. A Producer belongs to one sending
// stream and a Consumer to one inbound stream; each tracks the Arrow IPC
// schema state of its stream so that schema sections are sent exactly once
// per schema generation.
package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/arrowbridge/bridge/internal/wire"
)

// Producer encodes telemetry batches into columnar payloads. It is owned by
// a single stream and must not be used concurrently.
type Producer struct {
	mem          memory.Allocator
	states       map[wire.Signal]*producerState
	nextSchemaID int64
}

type producerState struct {
	schemaID int64
	schema   *arrow.Schema
	buf      bytes.Buffer
	writer   *ipc.Writer
}

// NewProducer returns a Producer with empty schema state: the first payload
// of every signal will carry a schema section.
func NewProducer() *Producer {
	return &Producer{
		mem:    memory.NewGoAllocator(),
		states: make(map[wire.Signal]*producerState),
	}
}

// EncodeTraces encodes one trace batch. The caller assigns the batch id.
func (p *Producer) EncodeTraces(td ptrace.Traces) (*wire.BatchRecords, error) {
	rec, err := encodeTraces(p.mem, td)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return p.encode(wire.SignalTraces, rec)
}

// EncodeMetrics encodes one metric batch.
func (p *Producer) EncodeMetrics(md pmetric.Metrics) (*wire.BatchRecords, error) {
	rec, err := encodeMetrics(p.mem, md)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return p.encode(wire.SignalMetrics, rec)
}

// EncodeLogs encodes one log batch.
func (p *Producer) EncodeLogs(ld plog.Logs) (*wire.BatchRecords, error) {
	rec, err := encodeLogs(p.mem, ld)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return p.encode(wire.SignalLogs, rec)
}

func (p *Producer) encode(signal wire.Signal, rec arrow.Record) (*wire.BatchRecords, error) {
	st := p.states[signal]
	if st == nil || st.schema != schemaFor(signal) {
		p.nextSchemaID++
		st = &producerState{
			schemaID: p.nextSchemaID,
			schema:   schemaFor(signal),
		}
		st.writer = ipc.NewWriter(&st.buf, ipc.WithSchema(st.schema), ipc.WithAllocator(p.mem))
		p.states[signal] = st
	}

	// The first Write on a fresh writer emits the schema section ahead of
	// the data section; subsequent writes emit data sections only.
	if err := st.writer.Write(rec); err != nil {
		return nil, fmt.Errorf("writing %s record batch: %w", signal, err)
	}

	chunk := append([]byte(nil), st.buf.Bytes()...)
	st.buf.Reset()
	return &wire.BatchRecords{
		Signal:   signal,
		SchemaID: st.schemaID,
		IPCChunk: chunk,
	}, nil
}
