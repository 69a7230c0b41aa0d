// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
)

const (
	colLogTime = numIdentityCols + iota
	colLogObservedTime
	colLogSeverityNumber
	colLogSeverityText
	colLogBodyType
	colLogBodyStr
	colLogBodyInt
	colLogBodyDouble
	colLogBodyBool
	colLogBodyBytes
	colLogAttrs
	colLogDroppedAttrs
	colLogFlags
	colLogTraceID
	colLogSpanID
)

func encodeLogs(mem memory.Allocator, ld plog.Logs) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, logsSchema)
	defer rb.Release()

	identity := newIdentityBuilder(rb)
	times := rb.Field(colLogTime).(*array.TimestampBuilder)
	observed := rb.Field(colLogObservedTime).(*array.TimestampBuilder)
	sevNum := rb.Field(colLogSeverityNumber).(*array.Int32Builder)
	sevText := rb.Field(colLogSeverityText).(*array.StringBuilder)
	bodyType := rb.Field(colLogBodyType).(*array.Int32Builder)
	bodyStr := rb.Field(colLogBodyStr).(*array.StringBuilder)
	bodyInt := rb.Field(colLogBodyInt).(*array.Int64Builder)
	bodyDouble := rb.Field(colLogBodyDouble).(*array.Float64Builder)
	bodyBool := rb.Field(colLogBodyBool).(*array.BooleanBuilder)
	bodyBytes := rb.Field(colLogBodyBytes).(*array.BinaryBuilder)
	attrs := newAttrsBuilder(rb.Field(colLogAttrs).(*array.ListBuilder))
	droppedAttrs := rb.Field(colLogDroppedAttrs).(*array.Uint32Builder)
	flags := rb.Field(colLogFlags).(*array.Uint32Builder)
	traceIDB := rb.Field(colLogTraceID).(*array.FixedSizeBinaryBuilder)
	spanIDB := rb.Field(colLogSpanID).(*array.FixedSizeBinaryBuilder)

	appendBody := func(v pcommon.Value) error {
		appendNone := func(skip int) {
			nulls := []interface{ AppendNull() }{bodyStr, bodyInt, bodyDouble, bodyBool, bodyBytes}
			for i, nb := range nulls {
				if i != skip {
					nb.AppendNull()
				}
			}
		}
		switch v.Type() {
		case pcommon.ValueTypeStr:
			bodyType.Append(attrTypeStr)
			bodyStr.Append(v.Str())
			appendNone(0)
		case pcommon.ValueTypeInt:
			bodyType.Append(attrTypeInt)
			bodyInt.Append(v.Int())
			appendNone(1)
		case pcommon.ValueTypeDouble:
			bodyType.Append(attrTypeDouble)
			bodyDouble.Append(v.Double())
			appendNone(2)
		case pcommon.ValueTypeBool:
			bodyType.Append(attrTypeBool)
			bodyBool.Append(v.Bool())
			appendNone(3)
		case pcommon.ValueTypeBytes:
			bodyType.Append(attrTypeBytes)
			bodyBytes.Append(v.Bytes().AsRaw())
			appendNone(4)
		case pcommon.ValueTypeMap, pcommon.ValueTypeSlice:
			raw, err := json.Marshal(v.AsRaw())
			if err != nil {
				return fmt.Errorf("encoding log body: %w", err)
			}
			bodyType.Append(attrTypeJSON)
			bodyStr.Append(string(raw))
			appendNone(0)
		default:
			bodyType.Append(attrTypeEmpty)
			appendNone(-1)
		}
		return nil
	}

	var resourceID, scopeID uint32
	rls := ld.ResourceLogs()
	for ri := 0; ri < rls.Len(); ri++ {
		rl := rls.At(ri)
		resourceID++
		sls := rl.ScopeLogs()
		for si := 0; si < sls.Len(); si++ {
			sl := sls.At(si)
			scopeID++
			logs := sl.LogRecords()
			for li := 0; li < logs.Len(); li++ {
				lr := logs.At(li)
				err := identity.Append(resourceID, rl.SchemaUrl(), rl.Resource(),
					scopeID, sl.SchemaUrl(), sl.Scope())
				if err != nil {
					return nil, err
				}
				times.Append(arrow.Timestamp(lr.Timestamp()))
				observed.Append(arrow.Timestamp(lr.ObservedTimestamp()))
				sevNum.Append(int32(lr.SeverityNumber()))
				sevText.Append(lr.SeverityText())
				if err := appendBody(lr.Body()); err != nil {
					return nil, err
				}
				if err := attrs.Append(lr.Attributes()); err != nil {
					return nil, err
				}
				droppedAttrs.Append(lr.DroppedAttributesCount())
				flags.Append(uint32(lr.Flags()))
				tid := lr.TraceID()
				traceIDB.Append(tid[:])
				sid := lr.SpanID()
				spanIDB.Append(sid[:])
			}
		}
	}

	return rb.NewRecord(), nil
}

func decodeLogs(rec arrow.Record) (plog.Logs, error) {
	ld := plog.NewLogs()
	identity, err := newIdentityColumns(rec)
	if err != nil {
		return ld, err
	}

	times := rec.Column(colLogTime).(*array.Timestamp)
	observed := rec.Column(colLogObservedTime).(*array.Timestamp)
	sevNum := rec.Column(colLogSeverityNumber).(*array.Int32)
	sevText := rec.Column(colLogSeverityText).(*array.String)
	bodyType := rec.Column(colLogBodyType).(*array.Int32)
	bodyStr := rec.Column(colLogBodyStr).(*array.String)
	bodyInt := rec.Column(colLogBodyInt).(*array.Int64)
	bodyDouble := rec.Column(colLogBodyDouble).(*array.Float64)
	bodyBool := rec.Column(colLogBodyBool).(*array.Boolean)
	bodyBytes := rec.Column(colLogBodyBytes).(*array.Binary)
	attrs, err := attrsColumnAt(rec, colLogAttrs)
	if err != nil {
		return ld, err
	}
	droppedAttrs := rec.Column(colLogDroppedAttrs).(*array.Uint32)
	flags := rec.Column(colLogFlags).(*array.Uint32)
	traceIDs := rec.Column(colLogTraceID).(*array.FixedSizeBinary)
	spanIDs := rec.Column(colLogSpanID).(*array.FixedSizeBinary)

	readBody := func(lr plog.LogRecord, i int) error {
		switch bodyType.Value(i) {
		case attrTypeStr:
			lr.Body().SetStr(bodyStr.Value(i))
		case attrTypeInt:
			lr.Body().SetInt(bodyInt.Value(i))
		case attrTypeDouble:
			lr.Body().SetDouble(bodyDouble.Value(i))
		case attrTypeBool:
			lr.Body().SetBool(bodyBool.Value(i))
		case attrTypeBytes:
			lr.Body().SetEmptyBytes().FromRaw(bodyBytes.Value(i))
		case attrTypeJSON:
			raw, err := decodeJSONValue([]byte(bodyStr.Value(i)))
			if err != nil {
				return fmt.Errorf("%w: log body: %v", ErrCorruptPayload, err)
			}
			if err := lr.Body().FromRaw(raw); err != nil {
				return fmt.Errorf("%w: log body: %v", ErrCorruptPayload, err)
			}
		case attrTypeEmpty:
		default:
			return fmt.Errorf("%w: unknown body type tag %d", ErrCorruptPayload, bodyType.Value(i))
		}
		return nil
	}

	var rl plog.ResourceLogs
	var sl plog.ScopeLogs
	lastResource, lastScope := int64(-1), int64(-1)
	for i := 0; i < int(rec.NumRows()); i++ {
		if rid := int64(identity.resourceID.Value(i)); rid != lastResource {
			rl = ld.ResourceLogs().AppendEmpty()
			rl.SetSchemaUrl(identity.resourceURL.Value(i))
			if err := identity.readResource(rl.Resource(), i); err != nil {
				return ld, err
			}
			lastResource = rid
			lastScope = -1
		}
		if sid := int64(identity.scopeID.Value(i)); sid != lastScope {
			sl = rl.ScopeLogs().AppendEmpty()
			sl.SetSchemaUrl(identity.scopeURL.Value(i))
			if err := identity.readScope(sl.Scope(), i); err != nil {
				return ld, err
			}
			lastScope = sid
		}

		lr := sl.LogRecords().AppendEmpty()
		lr.SetTimestamp(pcommon.Timestamp(times.Value(i)))
		lr.SetObservedTimestamp(pcommon.Timestamp(observed.Value(i)))
		lr.SetSeverityNumber(plog.SeverityNumber(sevNum.Value(i)))
		lr.SetSeverityText(sevText.Value(i))
		if err := readBody(lr, i); err != nil {
			return ld, err
		}
		if err := attrs.ReadInto(lr.Attributes(), i); err != nil {
			return ld, err
		}
		lr.SetDroppedAttributesCount(droppedAttrs.Value(i))
		lr.SetFlags(plog.LogRecordFlags(flags.Value(i)))
		lr.SetTraceID(toTraceID(traceIDs.Value(i)))
		lr.SetSpanID(toSpanID(spanIDs.Value(i)))
	}
	return ld, nil
}
