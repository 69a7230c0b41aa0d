// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/arrowbridge/bridge/internal/wire"
)

// Attribute value type tags stored in the "type" field of attribute entries.
const (
	attrTypeEmpty int32 = iota
	attrTypeStr
	attrTypeInt
	attrTypeDouble
	attrTypeBool
	attrTypeBytes
	// attrTypeJSON marks nested map and slice values, carried as JSON in
	// the str field.
	attrTypeJSON
)

var (
	tsType    = arrow.FixedWidthTypes.Timestamp_ns
	traceID   = &arrow.FixedSizeBinaryType{ByteWidth: 16}
	spanID    = &arrow.FixedSizeBinaryType{ByteWidth: 8}
	attrEntry = arrow.StructOf(
		arrow.Field{Name: "key", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "type", Type: arrow.PrimitiveTypes.Int32},
		arrow.Field{Name: "str", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "int", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		arrow.Field{Name: "double", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		arrow.Field{Name: "bool", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		arrow.Field{Name: "bytes", Type: arrow.BinaryTypes.Binary, Nullable: true},
	)
	attrsType = arrow.ListOf(attrEntry)

	eventEntry = arrow.StructOf(
		arrow.Field{Name: "time_unix_nano", Type: tsType},
		arrow.Field{Name: "name", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "attrs", Type: attrsType},
		arrow.Field{Name: "dropped_attrs", Type: arrow.PrimitiveTypes.Uint32},
	)
	linkEntry = arrow.StructOf(
		arrow.Field{Name: "trace_id", Type: traceID},
		arrow.Field{Name: "span_id", Type: spanID},
		arrow.Field{Name: "trace_state", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "attrs", Type: attrsType},
		arrow.Field{Name: "dropped_attrs", Type: arrow.PrimitiveTypes.Uint32},
	)
	quantileEntry = arrow.StructOf(
		arrow.Field{Name: "quantile", Type: arrow.PrimitiveTypes.Float64},
		arrow.Field{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	)
)

// Columns shared by every signal schema: the resource and scope identity of
// each record row. The id columns preserve the grouping of the original
// batch; a decoder starts a new resource or scope group when the id changes
// between consecutive rows.
func identityFields() []arrow.Field {
	return []arrow.Field{
		{Name: "resource_id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "resource_schema_url", Type: arrow.BinaryTypes.String},
		{Name: "resource_attrs", Type: attrsType},
		{Name: "resource_dropped_attrs", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "scope_id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "scope_schema_url", Type: arrow.BinaryTypes.String},
		{Name: "scope_name", Type: arrow.BinaryTypes.String},
		{Name: "scope_version", Type: arrow.BinaryTypes.String},
		{Name: "scope_attrs", Type: attrsType},
		{Name: "scope_dropped_attrs", Type: arrow.PrimitiveTypes.Uint32},
	}
}

var tracesSchema = arrow.NewSchema(append(identityFields(),
	arrow.Field{Name: "trace_id", Type: traceID},
	arrow.Field{Name: "span_id", Type: spanID},
	arrow.Field{Name: "parent_span_id", Type: spanID},
	arrow.Field{Name: "trace_state", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "name", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "kind", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "start_time_unix_nano", Type: tsType},
	arrow.Field{Name: "end_time_unix_nano", Type: tsType},
	arrow.Field{Name: "attrs", Type: attrsType},
	arrow.Field{Name: "dropped_attrs", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "events", Type: arrow.ListOf(eventEntry)},
	arrow.Field{Name: "dropped_events", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "links", Type: arrow.ListOf(linkEntry)},
	arrow.Field{Name: "dropped_links", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "status_code", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "status_message", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "flags", Type: arrow.PrimitiveTypes.Uint32},
), nil)

var logsSchema = arrow.NewSchema(append(identityFields(),
	arrow.Field{Name: "time_unix_nano", Type: tsType},
	arrow.Field{Name: "observed_time_unix_nano", Type: tsType},
	arrow.Field{Name: "severity_number", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "severity_text", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "body_type", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "body_str", Type: arrow.BinaryTypes.String, Nullable: true},
	arrow.Field{Name: "body_int", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	arrow.Field{Name: "body_double", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "body_bool", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	arrow.Field{Name: "body_bytes", Type: arrow.BinaryTypes.Binary, Nullable: true},
	arrow.Field{Name: "attrs", Type: attrsType},
	arrow.Field{Name: "dropped_attrs", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "flags", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "trace_id", Type: traceID},
	arrow.Field{Name: "span_id", Type: spanID},
), nil)

// Metric type tags stored in the "type" column.
const (
	metricTypeGauge int32 = iota + 1
	metricTypeSum
	metricTypeHistogram
	metricTypeExpHistogram
	metricTypeSummary
)

// Number value tags stored in the "num_type" column.
const (
	numTypeNone int32 = iota
	numTypeInt
	numTypeDouble
)

var metricsSchema = arrow.NewSchema(append(identityFields(),
	arrow.Field{Name: "metric_id", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "name", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "description", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "unit", Type: arrow.BinaryTypes.String},
	arrow.Field{Name: "type", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "temporality", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "is_monotonic", Type: arrow.FixedWidthTypes.Boolean},
	arrow.Field{Name: "start_time_unix_nano", Type: tsType},
	arrow.Field{Name: "time_unix_nano", Type: tsType},
	arrow.Field{Name: "attrs", Type: attrsType},
	arrow.Field{Name: "flags", Type: arrow.PrimitiveTypes.Uint32},
	arrow.Field{Name: "num_type", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "num_int", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	arrow.Field{Name: "num_double", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "count", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
	arrow.Field{Name: "sum", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "min", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "max", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "bucket_counts", Type: arrow.ListOf(arrow.PrimitiveTypes.Uint64), Nullable: true},
	arrow.Field{Name: "explicit_bounds", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64), Nullable: true},
	arrow.Field{Name: "exp_scale", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	arrow.Field{Name: "exp_zero_count", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
	arrow.Field{Name: "exp_zero_threshold", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "exp_pos_offset", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	arrow.Field{Name: "exp_pos_counts", Type: arrow.ListOf(arrow.PrimitiveTypes.Uint64), Nullable: true},
	arrow.Field{Name: "exp_neg_offset", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	arrow.Field{Name: "exp_neg_counts", Type: arrow.ListOf(arrow.PrimitiveTypes.Uint64), Nullable: true},
	arrow.Field{Name: "quantiles", Type: arrow.ListOf(quantileEntry), Nullable: true},
), nil)

func schemaFor(signal wire.Signal) *arrow.Schema {
	switch signal {
	case wire.SignalTraces:
		return tracesSchema
	case wire.SignalMetrics:
		return metricsSchema
	case wire.SignalLogs:
		return logsSchema
	default:
		return nil
	}
}
