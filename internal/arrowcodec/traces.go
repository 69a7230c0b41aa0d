// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// Column order of tracesSchema. The first columns are identityFields.
const (
	colResourceID = iota
	colResourceSchemaURL
	colResourceAttrs
	colResourceDroppedAttrs
	colScopeID
	colScopeSchemaURL
	colScopeName
	colScopeVersion
	colScopeAttrs
	colScopeDroppedAttrs
	numIdentityCols
)

const (
	colSpanTraceID = numIdentityCols + iota
	colSpanID
	colSpanParentID
	colSpanTraceState
	colSpanName
	colSpanKind
	colSpanStart
	colSpanEnd
	colSpanAttrs
	colSpanDroppedAttrs
	colSpanEvents
	colSpanDroppedEvents
	colSpanLinks
	colSpanDroppedLinks
	colSpanStatusCode
	colSpanStatusMessage
	colSpanFlags
)

// identityBuilder appends the resource+scope identity columns shared by all
// signal schemas.
type identityBuilder struct {
	resourceID      *array.Uint32Builder
	resourceURL     *array.StringBuilder
	resourceAttrs   *attrsBuilder
	resourceDropped *array.Uint32Builder
	scopeID         *array.Uint32Builder
	scopeURL        *array.StringBuilder
	scopeName       *array.StringBuilder
	scopeVersion    *array.StringBuilder
	scopeAttrs      *attrsBuilder
	scopeDropped    *array.Uint32Builder
}

func newIdentityBuilder(rb *array.RecordBuilder) *identityBuilder {
	return &identityBuilder{
		resourceID:      rb.Field(colResourceID).(*array.Uint32Builder),
		resourceURL:     rb.Field(colResourceSchemaURL).(*array.StringBuilder),
		resourceAttrs:   newAttrsBuilder(rb.Field(colResourceAttrs).(*array.ListBuilder)),
		resourceDropped: rb.Field(colResourceDroppedAttrs).(*array.Uint32Builder),
		scopeID:         rb.Field(colScopeID).(*array.Uint32Builder),
		scopeURL:        rb.Field(colScopeSchemaURL).(*array.StringBuilder),
		scopeName:       rb.Field(colScopeName).(*array.StringBuilder),
		scopeVersion:    rb.Field(colScopeVersion).(*array.StringBuilder),
		scopeAttrs:      newAttrsBuilder(rb.Field(colScopeAttrs).(*array.ListBuilder)),
		scopeDropped:    rb.Field(colScopeDroppedAttrs).(*array.Uint32Builder),
	}
}

func (b *identityBuilder) Append(resourceID uint32, resourceURL string, res pcommon.Resource,
	scopeID uint32, scopeURL string, scope pcommon.InstrumentationScope) error {
	b.resourceID.Append(resourceID)
	b.resourceURL.Append(resourceURL)
	if err := b.resourceAttrs.Append(res.Attributes()); err != nil {
		return err
	}
	b.resourceDropped.Append(res.DroppedAttributesCount())
	b.scopeID.Append(scopeID)
	b.scopeURL.Append(scopeURL)
	b.scopeName.Append(scope.Name())
	b.scopeVersion.Append(scope.Version())
	if err := b.scopeAttrs.Append(scope.Attributes()); err != nil {
		return err
	}
	b.scopeDropped.Append(scope.DroppedAttributesCount())
	return nil
}

// identityColumns reads the resource+scope identity columns back.
type identityColumns struct {
	resourceID      *array.Uint32
	resourceURL     *array.String
	resourceAttrs   *attrsColumn
	resourceDropped *array.Uint32
	scopeID         *array.Uint32
	scopeURL        *array.String
	scopeName       *array.String
	scopeVersion    *array.String
	scopeAttrs      *attrsColumn
	scopeDropped    *array.Uint32
}

func newIdentityColumns(rec arrow.Record) (*identityColumns, error) {
	if rec.NumCols() < numIdentityCols {
		return nil, fmt.Errorf("%w: record has %d columns", ErrCorruptPayload, rec.NumCols())
	}
	resourceAttrs, err := attrsColumnAt(rec, colResourceAttrs)
	if err != nil {
		return nil, err
	}
	scopeAttrs, err := attrsColumnAt(rec, colScopeAttrs)
	if err != nil {
		return nil, err
	}
	c := &identityColumns{
		resourceAttrs: resourceAttrs,
		scopeAttrs:    scopeAttrs,
	}
	var ok bool
	if c.resourceID, ok = rec.Column(colResourceID).(*array.Uint32); !ok {
		return nil, typeError("resource_id")
	}
	if c.resourceURL, ok = rec.Column(colResourceSchemaURL).(*array.String); !ok {
		return nil, typeError("resource_schema_url")
	}
	if c.resourceDropped, ok = rec.Column(colResourceDroppedAttrs).(*array.Uint32); !ok {
		return nil, typeError("resource_dropped_attrs")
	}
	if c.scopeID, ok = rec.Column(colScopeID).(*array.Uint32); !ok {
		return nil, typeError("scope_id")
	}
	if c.scopeURL, ok = rec.Column(colScopeSchemaURL).(*array.String); !ok {
		return nil, typeError("scope_schema_url")
	}
	if c.scopeName, ok = rec.Column(colScopeName).(*array.String); !ok {
		return nil, typeError("scope_name")
	}
	if c.scopeVersion, ok = rec.Column(colScopeVersion).(*array.String); !ok {
		return nil, typeError("scope_version")
	}
	if c.scopeDropped, ok = rec.Column(colScopeDroppedAttrs).(*array.Uint32); !ok {
		return nil, typeError("scope_dropped_attrs")
	}
	return c, nil
}

func (c *identityColumns) readResource(res pcommon.Resource, i int) error {
	if err := c.resourceAttrs.ReadInto(res.Attributes(), i); err != nil {
		return err
	}
	res.SetDroppedAttributesCount(c.resourceDropped.Value(i))
	return nil
}

func (c *identityColumns) readScope(scope pcommon.InstrumentationScope, i int) error {
	scope.SetName(c.scopeName.Value(i))
	scope.SetVersion(c.scopeVersion.Value(i))
	if err := c.scopeAttrs.ReadInto(scope.Attributes(), i); err != nil {
		return err
	}
	scope.SetDroppedAttributesCount(c.scopeDropped.Value(i))
	return nil
}

func attrsColumnAt(rec arrow.Record, i int) (*attrsColumn, error) {
	list, ok := rec.Column(i).(*array.List)
	if !ok {
		return nil, typeError(rec.Schema().Field(i).Name)
	}
	return newAttrsColumn(list)
}

func typeError(col string) error {
	return fmt.Errorf("%w: column %s has wrong type", ErrCorruptPayload, col)
}

// eventsBuilder appends span event lists.
type eventsBuilder struct {
	list    *array.ListBuilder
	entry   *array.StructBuilder
	time    *array.TimestampBuilder
	name    *array.StringBuilder
	attrs   *attrsBuilder
	dropped *array.Uint32Builder
}

func newEventsBuilder(list *array.ListBuilder) *eventsBuilder {
	entry := list.ValueBuilder().(*array.StructBuilder)
	return &eventsBuilder{
		list:    list,
		entry:   entry,
		time:    entry.FieldBuilder(0).(*array.TimestampBuilder),
		name:    entry.FieldBuilder(1).(*array.StringBuilder),
		attrs:   newAttrsBuilder(entry.FieldBuilder(2).(*array.ListBuilder)),
		dropped: entry.FieldBuilder(3).(*array.Uint32Builder),
	}
}

func (b *eventsBuilder) Append(events ptrace.SpanEventSlice) error {
	b.list.Append(true)
	for i := 0; i < events.Len(); i++ {
		ev := events.At(i)
		b.entry.Append(true)
		b.time.Append(arrow.Timestamp(ev.Timestamp()))
		b.name.Append(ev.Name())
		if err := b.attrs.Append(ev.Attributes()); err != nil {
			return err
		}
		b.dropped.Append(ev.DroppedAttributesCount())
	}
	return nil
}

// linksBuilder appends span link lists.
type linksBuilder struct {
	list       *array.ListBuilder
	entry      *array.StructBuilder
	traceID    *array.FixedSizeBinaryBuilder
	spanID     *array.FixedSizeBinaryBuilder
	traceState *array.StringBuilder
	attrs      *attrsBuilder
	dropped    *array.Uint32Builder
}

func newLinksBuilder(list *array.ListBuilder) *linksBuilder {
	entry := list.ValueBuilder().(*array.StructBuilder)
	return &linksBuilder{
		list:       list,
		entry:      entry,
		traceID:    entry.FieldBuilder(0).(*array.FixedSizeBinaryBuilder),
		spanID:     entry.FieldBuilder(1).(*array.FixedSizeBinaryBuilder),
		traceState: entry.FieldBuilder(2).(*array.StringBuilder),
		attrs:      newAttrsBuilder(entry.FieldBuilder(3).(*array.ListBuilder)),
		dropped:    entry.FieldBuilder(4).(*array.Uint32Builder),
	}
}

func (b *linksBuilder) Append(links ptrace.SpanLinkSlice) error {
	b.list.Append(true)
	for i := 0; i < links.Len(); i++ {
		ln := links.At(i)
		b.entry.Append(true)
		tid := ln.TraceID()
		b.traceID.Append(tid[:])
		sid := ln.SpanID()
		b.spanID.Append(sid[:])
		b.traceState.Append(ln.TraceState().AsRaw())
		if err := b.attrs.Append(ln.Attributes()); err != nil {
			return err
		}
		b.dropped.Append(ln.DroppedAttributesCount())
	}
	return nil
}

func encodeTraces(mem memory.Allocator, td ptrace.Traces) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, tracesSchema)
	defer rb.Release()

	identity := newIdentityBuilder(rb)
	traceIDB := rb.Field(colSpanTraceID).(*array.FixedSizeBinaryBuilder)
	spanIDB := rb.Field(colSpanID).(*array.FixedSizeBinaryBuilder)
	parentIDB := rb.Field(colSpanParentID).(*array.FixedSizeBinaryBuilder)
	traceState := rb.Field(colSpanTraceState).(*array.StringBuilder)
	name := rb.Field(colSpanName).(*array.StringBuilder)
	kind := rb.Field(colSpanKind).(*array.Int32Builder)
	start := rb.Field(colSpanStart).(*array.TimestampBuilder)
	end := rb.Field(colSpanEnd).(*array.TimestampBuilder)
	attrs := newAttrsBuilder(rb.Field(colSpanAttrs).(*array.ListBuilder))
	droppedAttrs := rb.Field(colSpanDroppedAttrs).(*array.Uint32Builder)
	events := newEventsBuilder(rb.Field(colSpanEvents).(*array.ListBuilder))
	droppedEvents := rb.Field(colSpanDroppedEvents).(*array.Uint32Builder)
	links := newLinksBuilder(rb.Field(colSpanLinks).(*array.ListBuilder))
	droppedLinks := rb.Field(colSpanDroppedLinks).(*array.Uint32Builder)
	statusCode := rb.Field(colSpanStatusCode).(*array.Int32Builder)
	statusMessage := rb.Field(colSpanStatusMessage).(*array.StringBuilder)
	flags := rb.Field(colSpanFlags).(*array.Uint32Builder)

	var resourceID, scopeID uint32
	rss := td.ResourceSpans()
	for ri := 0; ri < rss.Len(); ri++ {
		rs := rss.At(ri)
		resourceID++
		sss := rs.ScopeSpans()
		for si := 0; si < sss.Len(); si++ {
			ss := sss.At(si)
			scopeID++
			spans := ss.Spans()
			for pi := 0; pi < spans.Len(); pi++ {
				span := spans.At(pi)
				err := identity.Append(resourceID, rs.SchemaUrl(), rs.Resource(),
					scopeID, ss.SchemaUrl(), ss.Scope())
				if err != nil {
					return nil, err
				}
				tid := span.TraceID()
				traceIDB.Append(tid[:])
				sid := span.SpanID()
				spanIDB.Append(sid[:])
				pid := span.ParentSpanID()
				parentIDB.Append(pid[:])
				traceState.Append(span.TraceState().AsRaw())
				name.Append(span.Name())
				kind.Append(int32(span.Kind()))
				start.Append(arrow.Timestamp(span.StartTimestamp()))
				end.Append(arrow.Timestamp(span.EndTimestamp()))
				if err := attrs.Append(span.Attributes()); err != nil {
					return nil, err
				}
				droppedAttrs.Append(span.DroppedAttributesCount())
				if err := events.Append(span.Events()); err != nil {
					return nil, err
				}
				droppedEvents.Append(span.DroppedEventsCount())
				if err := links.Append(span.Links()); err != nil {
					return nil, err
				}
				droppedLinks.Append(span.DroppedLinksCount())
				statusCode.Append(int32(span.Status().Code()))
				statusMessage.Append(span.Status().Message())
				flags.Append(span.Flags())
			}
		}
	}

	return rb.NewRecord(), nil
}

func decodeTraces(rec arrow.Record) (ptrace.Traces, error) {
	td := ptrace.NewTraces()
	identity, err := newIdentityColumns(rec)
	if err != nil {
		return td, err
	}

	traceIDs := rec.Column(colSpanTraceID).(*array.FixedSizeBinary)
	spanIDs := rec.Column(colSpanID).(*array.FixedSizeBinary)
	parentIDs := rec.Column(colSpanParentID).(*array.FixedSizeBinary)
	traceStates := rec.Column(colSpanTraceState).(*array.String)
	names := rec.Column(colSpanName).(*array.String)
	kinds := rec.Column(colSpanKind).(*array.Int32)
	starts := rec.Column(colSpanStart).(*array.Timestamp)
	ends := rec.Column(colSpanEnd).(*array.Timestamp)
	attrs, err := attrsColumnAt(rec, colSpanAttrs)
	if err != nil {
		return td, err
	}
	droppedAttrs := rec.Column(colSpanDroppedAttrs).(*array.Uint32)
	events := rec.Column(colSpanEvents).(*array.List)
	droppedEvents := rec.Column(colSpanDroppedEvents).(*array.Uint32)
	links := rec.Column(colSpanLinks).(*array.List)
	droppedLinks := rec.Column(colSpanDroppedLinks).(*array.Uint32)
	statusCodes := rec.Column(colSpanStatusCode).(*array.Int32)
	statusMessages := rec.Column(colSpanStatusMessage).(*array.String)
	flags := rec.Column(colSpanFlags).(*array.Uint32)

	eventCols, err := newEventColumns(events)
	if err != nil {
		return td, err
	}
	linkCols, err := newLinkColumns(links)
	if err != nil {
		return td, err
	}

	var rs ptrace.ResourceSpans
	var ss ptrace.ScopeSpans
	lastResource, lastScope := int64(-1), int64(-1)
	for i := 0; i < int(rec.NumRows()); i++ {
		if rid := int64(identity.resourceID.Value(i)); rid != lastResource {
			rs = td.ResourceSpans().AppendEmpty()
			rs.SetSchemaUrl(identity.resourceURL.Value(i))
			if err := identity.readResource(rs.Resource(), i); err != nil {
				return td, err
			}
			lastResource = rid
			lastScope = -1
		}
		if sid := int64(identity.scopeID.Value(i)); sid != lastScope {
			ss = rs.ScopeSpans().AppendEmpty()
			ss.SetSchemaUrl(identity.scopeURL.Value(i))
			if err := identity.readScope(ss.Scope(), i); err != nil {
				return td, err
			}
			lastScope = sid
		}

		span := ss.Spans().AppendEmpty()
		span.SetTraceID(toTraceID(traceIDs.Value(i)))
		span.SetSpanID(toSpanID(spanIDs.Value(i)))
		span.SetParentSpanID(toSpanID(parentIDs.Value(i)))
		span.TraceState().FromRaw(traceStates.Value(i))
		span.SetName(names.Value(i))
		span.SetKind(ptrace.SpanKind(kinds.Value(i)))
		span.SetStartTimestamp(pcommon.Timestamp(starts.Value(i)))
		span.SetEndTimestamp(pcommon.Timestamp(ends.Value(i)))
		if err := attrs.ReadInto(span.Attributes(), i); err != nil {
			return td, err
		}
		span.SetDroppedAttributesCount(droppedAttrs.Value(i))
		if err := eventCols.ReadInto(span.Events(), i); err != nil {
			return td, err
		}
		span.SetDroppedEventsCount(droppedEvents.Value(i))
		if err := linkCols.ReadInto(span.Links(), i); err != nil {
			return td, err
		}
		span.SetDroppedLinksCount(droppedLinks.Value(i))
		span.Status().SetCode(ptrace.StatusCode(statusCodes.Value(i)))
		span.Status().SetMessage(statusMessages.Value(i))
		span.SetFlags(flags.Value(i))
	}
	return td, nil
}

type eventColumns struct {
	list    *array.List
	time    *array.Timestamp
	name    *array.String
	attrs   *attrsColumn
	dropped *array.Uint32
}

func newEventColumns(list *array.List) (*eventColumns, error) {
	entry, ok := list.ListValues().(*array.Struct)
	if !ok {
		return nil, typeError("events")
	}
	attrsList, ok := entry.Field(2).(*array.List)
	if !ok {
		return nil, typeError("events.attrs")
	}
	attrs, err := newAttrsColumn(attrsList)
	if err != nil {
		return nil, err
	}
	c := &eventColumns{list: list, attrs: attrs}
	if c.time, ok = entry.Field(0).(*array.Timestamp); !ok {
		return nil, typeError("events.time_unix_nano")
	}
	if c.name, ok = entry.Field(1).(*array.String); !ok {
		return nil, typeError("events.name")
	}
	if c.dropped, ok = entry.Field(3).(*array.Uint32); !ok {
		return nil, typeError("events.dropped_attrs")
	}
	return c, nil
}

func (c *eventColumns) ReadInto(events ptrace.SpanEventSlice, i int) error {
	start, end := c.list.ValueOffsets(i)
	for j := int(start); j < int(end); j++ {
		ev := events.AppendEmpty()
		ev.SetTimestamp(pcommon.Timestamp(c.time.Value(j)))
		ev.SetName(c.name.Value(j))
		if err := c.attrs.ReadInto(ev.Attributes(), j); err != nil {
			return err
		}
		ev.SetDroppedAttributesCount(c.dropped.Value(j))
	}
	return nil
}

type linkColumns struct {
	list       *array.List
	traceID    *array.FixedSizeBinary
	spanID     *array.FixedSizeBinary
	traceState *array.String
	attrs      *attrsColumn
	dropped    *array.Uint32
}

func newLinkColumns(list *array.List) (*linkColumns, error) {
	entry, ok := list.ListValues().(*array.Struct)
	if !ok {
		return nil, typeError("links")
	}
	attrsList, ok := entry.Field(3).(*array.List)
	if !ok {
		return nil, typeError("links.attrs")
	}
	attrs, err := newAttrsColumn(attrsList)
	if err != nil {
		return nil, err
	}
	c := &linkColumns{list: list, attrs: attrs}
	if c.traceID, ok = entry.Field(0).(*array.FixedSizeBinary); !ok {
		return nil, typeError("links.trace_id")
	}
	if c.spanID, ok = entry.Field(1).(*array.FixedSizeBinary); !ok {
		return nil, typeError("links.span_id")
	}
	if c.traceState, ok = entry.Field(2).(*array.String); !ok {
		return nil, typeError("links.trace_state")
	}
	if c.dropped, ok = entry.Field(4).(*array.Uint32); !ok {
		return nil, typeError("links.dropped_attrs")
	}
	return c, nil
}

func (c *linkColumns) ReadInto(links ptrace.SpanLinkSlice, i int) error {
	start, end := c.list.ValueOffsets(i)
	for j := int(start); j < int(end); j++ {
		ln := links.AppendEmpty()
		ln.SetTraceID(toTraceID(c.traceID.Value(j)))
		ln.SetSpanID(toSpanID(c.spanID.Value(j)))
		ln.TraceState().FromRaw(c.traceState.Value(j))
		if err := c.attrs.ReadInto(ln.Attributes(), j); err != nil {
			return err
		}
		ln.SetDroppedAttributesCount(c.dropped.Value(j))
	}
	return nil
}

func toTraceID(b []byte) pcommon.TraceID {
	var id pcommon.TraceID
	copy(id[:], b)
	return id
}

func toSpanID(b []byte) pcommon.SpanID {
	var id pcommon.SpanID
	copy(id[:], b)
	return id
}
