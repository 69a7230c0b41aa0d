// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"go.opentelemetry.io/collector/pdata/pcommon"
)

// attrsBuilder appends pcommon.Map values to a list-of-struct column.
// Primitive values land in typed fields; nested map and slice values are
// carried as JSON, which keeps the column layout flat at the cost of the
// int/double distinction for non-integral nested numbers.
type attrsBuilder struct {
	list  *array.ListBuilder
	entry *array.StructBuilder
	key   *array.StringBuilder
	typ   *array.Int32Builder
	str   *array.StringBuilder
	i64   *array.Int64Builder
	f64   *array.Float64Builder
	boo   *array.BooleanBuilder
	bin   *array.BinaryBuilder
}

func newAttrsBuilder(list *array.ListBuilder) *attrsBuilder {
	entry := list.ValueBuilder().(*array.StructBuilder)
	return &attrsBuilder{
		list:  list,
		entry: entry,
		key:   entry.FieldBuilder(0).(*array.StringBuilder),
		typ:   entry.FieldBuilder(1).(*array.Int32Builder),
		str:   entry.FieldBuilder(2).(*array.StringBuilder),
		i64:   entry.FieldBuilder(3).(*array.Int64Builder),
		f64:   entry.FieldBuilder(4).(*array.Float64Builder),
		boo:   entry.FieldBuilder(5).(*array.BooleanBuilder),
		bin:   entry.FieldBuilder(6).(*array.BinaryBuilder),
	}
}

func (b *attrsBuilder) Append(m pcommon.Map) error {
	b.list.Append(true)
	var appendErr error
	m.Range(func(k string, v pcommon.Value) bool {
		if err := b.appendEntry(k, v); err != nil {
			appendErr = err
			return false
		}
		return true
	})
	return appendErr
}

func (b *attrsBuilder) appendEntry(k string, v pcommon.Value) error {
	b.entry.Append(true)
	b.key.Append(k)

	appendNone := func(skip int) {
		nulls := []interface{ AppendNull() }{b.str, b.i64, b.f64, b.boo, b.bin}
		for i, nb := range nulls {
			if i != skip {
				nb.AppendNull()
			}
		}
	}

	switch v.Type() {
	case pcommon.ValueTypeStr:
		b.typ.Append(attrTypeStr)
		b.str.Append(v.Str())
		appendNone(0)
	case pcommon.ValueTypeInt:
		b.typ.Append(attrTypeInt)
		b.i64.Append(v.Int())
		appendNone(1)
	case pcommon.ValueTypeDouble:
		b.typ.Append(attrTypeDouble)
		b.f64.Append(v.Double())
		appendNone(2)
	case pcommon.ValueTypeBool:
		b.typ.Append(attrTypeBool)
		b.boo.Append(v.Bool())
		appendNone(3)
	case pcommon.ValueTypeBytes:
		b.typ.Append(attrTypeBytes)
		b.bin.Append(v.Bytes().AsRaw())
		appendNone(4)
	case pcommon.ValueTypeMap, pcommon.ValueTypeSlice:
		raw, err := json.Marshal(v.AsRaw())
		if err != nil {
			return fmt.Errorf("encoding nested attribute %q: %w", k, err)
		}
		b.typ.Append(attrTypeJSON)
		b.str.Append(string(raw))
		appendNone(0)
	default:
		b.typ.Append(attrTypeEmpty)
		appendNone(-1)
	}
	return nil
}

// attrsColumn reads pcommon.Map values back out of a list-of-struct column.
type attrsColumn struct {
	list *array.List
	key  *array.String
	typ  *array.Int32
	str  *array.String
	i64  *array.Int64
	f64  *array.Float64
	boo  *array.Boolean
	bin  *array.Binary
}

func newAttrsColumn(list *array.List) (*attrsColumn, error) {
	entry, ok := list.ListValues().(*array.Struct)
	if !ok {
		return nil, fmt.Errorf("%w: attrs column is not a struct list", ErrCorruptPayload)
	}
	c := &attrsColumn{list: list}
	if c.key, ok = entry.Field(0).(*array.String); !ok {
		return nil, fmt.Errorf("%w: attrs key field has wrong type", ErrCorruptPayload)
	}
	if c.typ, ok = entry.Field(1).(*array.Int32); !ok {
		return nil, fmt.Errorf("%w: attrs type field has wrong type", ErrCorruptPayload)
	}
	if c.str, ok = entry.Field(2).(*array.String); !ok {
		return nil, fmt.Errorf("%w: attrs str field has wrong type", ErrCorruptPayload)
	}
	if c.i64, ok = entry.Field(3).(*array.Int64); !ok {
		return nil, fmt.Errorf("%w: attrs int field has wrong type", ErrCorruptPayload)
	}
	if c.f64, ok = entry.Field(4).(*array.Float64); !ok {
		return nil, fmt.Errorf("%w: attrs double field has wrong type", ErrCorruptPayload)
	}
	if c.boo, ok = entry.Field(5).(*array.Boolean); !ok {
		return nil, fmt.Errorf("%w: attrs bool field has wrong type", ErrCorruptPayload)
	}
	if c.bin, ok = entry.Field(6).(*array.Binary); !ok {
		return nil, fmt.Errorf("%w: attrs bytes field has wrong type", ErrCorruptPayload)
	}
	return c, nil
}

// ReadInto fills m with the attribute entries of row i.
func (c *attrsColumn) ReadInto(m pcommon.Map, i int) error {
	start, end := c.list.ValueOffsets(i)
	m.EnsureCapacity(int(end - start))
	for j := int(start); j < int(end); j++ {
		k := c.key.Value(j)
		switch c.typ.Value(j) {
		case attrTypeStr:
			m.PutStr(k, c.str.Value(j))
		case attrTypeInt:
			m.PutInt(k, c.i64.Value(j))
		case attrTypeDouble:
			m.PutDouble(k, c.f64.Value(j))
		case attrTypeBool:
			m.PutBool(k, c.boo.Value(j))
		case attrTypeBytes:
			m.PutEmptyBytes(k).FromRaw(c.bin.Value(j))
		case attrTypeJSON:
			raw, err := decodeJSONValue([]byte(c.str.Value(j)))
			if err != nil {
				return fmt.Errorf("%w: nested attribute %q: %v", ErrCorruptPayload, k, err)
			}
			if err := m.PutEmpty(k).FromRaw(raw); err != nil {
				return fmt.Errorf("%w: nested attribute %q: %v", ErrCorruptPayload, k, err)
			}
		case attrTypeEmpty:
			m.PutEmpty(k)
		default:
			return fmt.Errorf("%w: unknown attribute type tag %d", ErrCorruptPayload, c.typ.Value(j))
		}
	}
	return nil
}

// decodeJSONValue parses a nested attribute value, mapping integral JSON
// numbers to int64 and the rest to float64.
func decodeJSONValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeJSON(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeJSON(e)
		}
		return t
	default:
		return v
	}
}
