// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowcodec // import "github.com/arrowbridge/bridge/internal/arrowcodec"

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/pmetric"
)

const (
	colMetricID = numIdentityCols + iota
	colMetricName
	colMetricDescription
	colMetricUnit
	colMetricType
	colMetricTemporality
	colMetricMonotonic
	colMetricStartTime
	colMetricTime
	colMetricAttrs
	colMetricFlags
	colMetricNumType
	colMetricNumInt
	colMetricNumDouble
	colMetricCount
	colMetricSum
	colMetricMin
	colMetricMax
	colMetricBucketCounts
	colMetricExplicitBounds
	colMetricExpScale
	colMetricExpZeroCount
	colMetricExpZeroThreshold
	colMetricExpPosOffset
	colMetricExpPosCounts
	colMetricExpNegOffset
	colMetricExpNegCounts
	colMetricQuantiles
)

// metricsBuilder holds a builder per metricsSchema column. Every appended
// row must touch every column exactly once; the appendNo* helpers null out
// the column groups a data point type does not use.
type metricsBuilder struct {
	identity *identityBuilder

	metricID    *array.Uint32Builder
	name        *array.StringBuilder
	description *array.StringBuilder
	unit        *array.StringBuilder
	typ         *array.Int32Builder
	temporality *array.Int32Builder
	monotonic   *array.BooleanBuilder
	startTime   *array.TimestampBuilder
	time        *array.TimestampBuilder
	attrs       *attrsBuilder
	flags       *array.Uint32Builder

	numType   *array.Int32Builder
	numInt    *array.Int64Builder
	numDouble *array.Float64Builder

	count *array.Uint64Builder
	sum   *array.Float64Builder
	min   *array.Float64Builder
	max   *array.Float64Builder

	bucketCounts      *array.ListBuilder
	bucketCountsV     *array.Uint64Builder
	explicitBounds    *array.ListBuilder
	explicitBoundsV   *array.Float64Builder
	expScale          *array.Int32Builder
	expZeroCount      *array.Uint64Builder
	expZeroThreshold  *array.Float64Builder
	expPosOffset      *array.Int32Builder
	expPosCounts      *array.ListBuilder
	expPosCountsV     *array.Uint64Builder
	expNegOffset      *array.Int32Builder
	expNegCounts      *array.ListBuilder
	expNegCountsV     *array.Uint64Builder
	quantiles         *array.ListBuilder
	quantilesEntry    *array.StructBuilder
	quantilesQuantile *array.Float64Builder
	quantilesValue    *array.Float64Builder
}

func newMetricsBuilder(rb *array.RecordBuilder) *metricsBuilder {
	b := &metricsBuilder{
		identity:         newIdentityBuilder(rb),
		metricID:         rb.Field(colMetricID).(*array.Uint32Builder),
		name:             rb.Field(colMetricName).(*array.StringBuilder),
		description:      rb.Field(colMetricDescription).(*array.StringBuilder),
		unit:             rb.Field(colMetricUnit).(*array.StringBuilder),
		typ:              rb.Field(colMetricType).(*array.Int32Builder),
		temporality:      rb.Field(colMetricTemporality).(*array.Int32Builder),
		monotonic:        rb.Field(colMetricMonotonic).(*array.BooleanBuilder),
		startTime:        rb.Field(colMetricStartTime).(*array.TimestampBuilder),
		time:             rb.Field(colMetricTime).(*array.TimestampBuilder),
		attrs:            newAttrsBuilder(rb.Field(colMetricAttrs).(*array.ListBuilder)),
		flags:            rb.Field(colMetricFlags).(*array.Uint32Builder),
		numType:          rb.Field(colMetricNumType).(*array.Int32Builder),
		numInt:           rb.Field(colMetricNumInt).(*array.Int64Builder),
		numDouble:        rb.Field(colMetricNumDouble).(*array.Float64Builder),
		count:            rb.Field(colMetricCount).(*array.Uint64Builder),
		sum:              rb.Field(colMetricSum).(*array.Float64Builder),
		min:              rb.Field(colMetricMin).(*array.Float64Builder),
		max:              rb.Field(colMetricMax).(*array.Float64Builder),
		bucketCounts:     rb.Field(colMetricBucketCounts).(*array.ListBuilder),
		explicitBounds:   rb.Field(colMetricExplicitBounds).(*array.ListBuilder),
		expScale:         rb.Field(colMetricExpScale).(*array.Int32Builder),
		expZeroCount:     rb.Field(colMetricExpZeroCount).(*array.Uint64Builder),
		expZeroThreshold: rb.Field(colMetricExpZeroThreshold).(*array.Float64Builder),
		expPosOffset:     rb.Field(colMetricExpPosOffset).(*array.Int32Builder),
		expPosCounts:     rb.Field(colMetricExpPosCounts).(*array.ListBuilder),
		expNegOffset:     rb.Field(colMetricExpNegOffset).(*array.Int32Builder),
		expNegCounts:     rb.Field(colMetricExpNegCounts).(*array.ListBuilder),
		quantiles:        rb.Field(colMetricQuantiles).(*array.ListBuilder),
	}
	b.bucketCountsV = b.bucketCounts.ValueBuilder().(*array.Uint64Builder)
	b.explicitBoundsV = b.explicitBounds.ValueBuilder().(*array.Float64Builder)
	b.expPosCountsV = b.expPosCounts.ValueBuilder().(*array.Uint64Builder)
	b.expNegCountsV = b.expNegCounts.ValueBuilder().(*array.Uint64Builder)
	b.quantilesEntry = b.quantiles.ValueBuilder().(*array.StructBuilder)
	b.quantilesQuantile = b.quantilesEntry.FieldBuilder(0).(*array.Float64Builder)
	b.quantilesValue = b.quantilesEntry.FieldBuilder(1).(*array.Float64Builder)
	return b
}

func (b *metricsBuilder) appendMetricInfo(metricID uint32, m pmetric.Metric, typ, temporality int32, monotonic bool) {
	b.metricID.Append(metricID)
	b.name.Append(m.Name())
	b.description.Append(m.Description())
	b.unit.Append(m.Unit())
	b.typ.Append(typ)
	b.temporality.Append(temporality)
	b.monotonic.Append(monotonic)
}

func (b *metricsBuilder) appendNoNumber() {
	b.numType.Append(numTypeNone)
	b.numInt.AppendNull()
	b.numDouble.AppendNull()
}

func (b *metricsBuilder) appendNoAggregate() {
	b.count.AppendNull()
	b.sum.AppendNull()
	b.min.AppendNull()
	b.max.AppendNull()
}

func (b *metricsBuilder) appendNoBuckets() {
	b.bucketCounts.AppendNull()
	b.explicitBounds.AppendNull()
}

func (b *metricsBuilder) appendNoExp() {
	b.expScale.AppendNull()
	b.expZeroCount.AppendNull()
	b.expZeroThreshold.AppendNull()
	b.expPosOffset.AppendNull()
	b.expPosCounts.AppendNull()
	b.expNegOffset.AppendNull()
	b.expNegCounts.AppendNull()
}

func (b *metricsBuilder) appendNoQuantiles() {
	b.quantiles.AppendNull()
}

func (b *metricsBuilder) appendNumberPoint(dp pmetric.NumberDataPoint) error {
	b.startTime.Append(arrow.Timestamp(dp.StartTimestamp()))
	b.time.Append(arrow.Timestamp(dp.Timestamp()))
	if err := b.attrs.Append(dp.Attributes()); err != nil {
		return err
	}
	b.flags.Append(uint32(dp.Flags()))
	switch dp.ValueType() {
	case pmetric.NumberDataPointValueTypeInt:
		b.numType.Append(numTypeInt)
		b.numInt.Append(dp.IntValue())
		b.numDouble.AppendNull()
	case pmetric.NumberDataPointValueTypeDouble:
		b.numType.Append(numTypeDouble)
		b.numInt.AppendNull()
		b.numDouble.Append(dp.DoubleValue())
	default:
		b.appendNoNumber()
	}
	b.appendNoAggregate()
	b.appendNoBuckets()
	b.appendNoExp()
	b.appendNoQuantiles()
	return nil
}

func (b *metricsBuilder) appendHistogramPoint(dp pmetric.HistogramDataPoint) error {
	b.startTime.Append(arrow.Timestamp(dp.StartTimestamp()))
	b.time.Append(arrow.Timestamp(dp.Timestamp()))
	if err := b.attrs.Append(dp.Attributes()); err != nil {
		return err
	}
	b.flags.Append(uint32(dp.Flags()))
	b.appendNoNumber()
	b.count.Append(dp.Count())
	appendOptFloat(b.sum, dp.HasSum(), dp.Sum())
	appendOptFloat(b.min, dp.HasMin(), dp.Min())
	appendOptFloat(b.max, dp.HasMax(), dp.Max())
	b.bucketCounts.Append(true)
	for _, v := range dp.BucketCounts().AsRaw() {
		b.bucketCountsV.Append(v)
	}
	b.explicitBounds.Append(true)
	for _, v := range dp.ExplicitBounds().AsRaw() {
		b.explicitBoundsV.Append(v)
	}
	b.appendNoExp()
	b.appendNoQuantiles()
	return nil
}

func (b *metricsBuilder) appendExpHistogramPoint(dp pmetric.ExponentialHistogramDataPoint) error {
	b.startTime.Append(arrow.Timestamp(dp.StartTimestamp()))
	b.time.Append(arrow.Timestamp(dp.Timestamp()))
	if err := b.attrs.Append(dp.Attributes()); err != nil {
		return err
	}
	b.flags.Append(uint32(dp.Flags()))
	b.appendNoNumber()
	b.count.Append(dp.Count())
	appendOptFloat(b.sum, dp.HasSum(), dp.Sum())
	appendOptFloat(b.min, dp.HasMin(), dp.Min())
	appendOptFloat(b.max, dp.HasMax(), dp.Max())
	b.appendNoBuckets()
	b.expScale.Append(dp.Scale())
	b.expZeroCount.Append(dp.ZeroCount())
	b.expZeroThreshold.Append(dp.ZeroThreshold())
	b.expPosOffset.Append(dp.Positive().Offset())
	b.expPosCounts.Append(true)
	for _, v := range dp.Positive().BucketCounts().AsRaw() {
		b.expPosCountsV.Append(v)
	}
	b.expNegOffset.Append(dp.Negative().Offset())
	b.expNegCounts.Append(true)
	for _, v := range dp.Negative().BucketCounts().AsRaw() {
		b.expNegCountsV.Append(v)
	}
	b.appendNoQuantiles()
	return nil
}

func (b *metricsBuilder) appendSummaryPoint(dp pmetric.SummaryDataPoint) error {
	b.startTime.Append(arrow.Timestamp(dp.StartTimestamp()))
	b.time.Append(arrow.Timestamp(dp.Timestamp()))
	if err := b.attrs.Append(dp.Attributes()); err != nil {
		return err
	}
	b.flags.Append(uint32(dp.Flags()))
	b.appendNoNumber()
	b.count.Append(dp.Count())
	b.sum.Append(dp.Sum())
	b.min.AppendNull()
	b.max.AppendNull()
	b.appendNoBuckets()
	b.appendNoExp()
	b.quantiles.Append(true)
	qvs := dp.QuantileValues()
	for i := 0; i < qvs.Len(); i++ {
		qv := qvs.At(i)
		b.quantilesEntry.Append(true)
		b.quantilesQuantile.Append(qv.Quantile())
		b.quantilesValue.Append(qv.Value())
	}
	return nil
}

func appendOptFloat(b *array.Float64Builder, has bool, v float64) {
	if has {
		b.Append(v)
	} else {
		b.AppendNull()
	}
}

func encodeMetrics(mem memory.Allocator, md pmetric.Metrics) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, metricsSchema)
	defer rb.Release()
	b := newMetricsBuilder(rb)

	var resourceID, scopeID, metricID uint32
	rms := md.ResourceMetrics()
	for ri := 0; ri < rms.Len(); ri++ {
		rm := rms.At(ri)
		resourceID++
		sms := rm.ScopeMetrics()
		for si := 0; si < sms.Len(); si++ {
			sm := sms.At(si)
			scopeID++
			metrics := sm.Metrics()
			for mi := 0; mi < metrics.Len(); mi++ {
				m := metrics.At(mi)
				metricID++
				appendIdentity := func() error {
					return b.identity.Append(resourceID, rm.SchemaUrl(), rm.Resource(),
						scopeID, sm.SchemaUrl(), sm.Scope())
				}
				switch m.Type() {
				case pmetric.MetricTypeGauge:
					dps := m.Gauge().DataPoints()
					for di := 0; di < dps.Len(); di++ {
						if err := appendIdentity(); err != nil {
							return nil, err
						}
						b.appendMetricInfo(metricID, m, metricTypeGauge, 0, false)
						if err := b.appendNumberPoint(dps.At(di)); err != nil {
							return nil, err
						}
					}
				case pmetric.MetricTypeSum:
					sum := m.Sum()
					dps := sum.DataPoints()
					for di := 0; di < dps.Len(); di++ {
						if err := appendIdentity(); err != nil {
							return nil, err
						}
						b.appendMetricInfo(metricID, m, metricTypeSum,
							int32(sum.AggregationTemporality()), sum.IsMonotonic())
						if err := b.appendNumberPoint(dps.At(di)); err != nil {
							return nil, err
						}
					}
				case pmetric.MetricTypeHistogram:
					hist := m.Histogram()
					dps := hist.DataPoints()
					for di := 0; di < dps.Len(); di++ {
						if err := appendIdentity(); err != nil {
							return nil, err
						}
						b.appendMetricInfo(metricID, m, metricTypeHistogram,
							int32(hist.AggregationTemporality()), false)
						if err := b.appendHistogramPoint(dps.At(di)); err != nil {
							return nil, err
						}
					}
				case pmetric.MetricTypeExponentialHistogram:
					hist := m.ExponentialHistogram()
					dps := hist.DataPoints()
					for di := 0; di < dps.Len(); di++ {
						if err := appendIdentity(); err != nil {
							return nil, err
						}
						b.appendMetricInfo(metricID, m, metricTypeExpHistogram,
							int32(hist.AggregationTemporality()), false)
						if err := b.appendExpHistogramPoint(dps.At(di)); err != nil {
							return nil, err
						}
					}
				case pmetric.MetricTypeSummary:
					dps := m.Summary().DataPoints()
					for di := 0; di < dps.Len(); di++ {
						if err := appendIdentity(); err != nil {
							return nil, err
						}
						b.appendMetricInfo(metricID, m, metricTypeSummary, 0, false)
						if err := b.appendSummaryPoint(dps.At(di)); err != nil {
							return nil, err
						}
					}
				default:
					return nil, fmt.Errorf("unsupported metric type %v for %q", m.Type(), m.Name())
				}
			}
		}
	}

	return rb.NewRecord(), nil
}

// metricsColumns reads the metric columns of a decoded record.
type metricsColumns struct {
	identity *identityColumns

	metricID    *array.Uint32
	name        *array.String
	description *array.String
	unit        *array.String
	typ         *array.Int32
	temporality *array.Int32
	monotonic   *array.Boolean
	startTime   *array.Timestamp
	time        *array.Timestamp
	attrs       *attrsColumn
	flags       *array.Uint32

	numType   *array.Int32
	numInt    *array.Int64
	numDouble *array.Float64

	count *array.Uint64
	sum   *array.Float64
	min   *array.Float64
	max   *array.Float64

	bucketCounts     *array.List
	explicitBounds   *array.List
	expScale         *array.Int32
	expZeroCount     *array.Uint64
	expZeroThreshold *array.Float64
	expPosOffset     *array.Int32
	expPosCounts     *array.List
	expNegOffset     *array.Int32
	expNegCounts     *array.List
	quantiles        *array.List
}

func newMetricsColumns(rec arrow.Record) (*metricsColumns, error) {
	identity, err := newIdentityColumns(rec)
	if err != nil {
		return nil, err
	}
	attrs, err := attrsColumnAt(rec, colMetricAttrs)
	if err != nil {
		return nil, err
	}
	return &metricsColumns{
		identity:         identity,
		metricID:         rec.Column(colMetricID).(*array.Uint32),
		name:             rec.Column(colMetricName).(*array.String),
		description:      rec.Column(colMetricDescription).(*array.String),
		unit:             rec.Column(colMetricUnit).(*array.String),
		typ:              rec.Column(colMetricType).(*array.Int32),
		temporality:      rec.Column(colMetricTemporality).(*array.Int32),
		monotonic:        rec.Column(colMetricMonotonic).(*array.Boolean),
		startTime:        rec.Column(colMetricStartTime).(*array.Timestamp),
		time:             rec.Column(colMetricTime).(*array.Timestamp),
		attrs:            attrs,
		flags:            rec.Column(colMetricFlags).(*array.Uint32),
		numType:          rec.Column(colMetricNumType).(*array.Int32),
		numInt:           rec.Column(colMetricNumInt).(*array.Int64),
		numDouble:        rec.Column(colMetricNumDouble).(*array.Float64),
		count:            rec.Column(colMetricCount).(*array.Uint64),
		sum:              rec.Column(colMetricSum).(*array.Float64),
		min:              rec.Column(colMetricMin).(*array.Float64),
		max:              rec.Column(colMetricMax).(*array.Float64),
		bucketCounts:     rec.Column(colMetricBucketCounts).(*array.List),
		explicitBounds:   rec.Column(colMetricExplicitBounds).(*array.List),
		expScale:         rec.Column(colMetricExpScale).(*array.Int32),
		expZeroCount:     rec.Column(colMetricExpZeroCount).(*array.Uint64),
		expZeroThreshold: rec.Column(colMetricExpZeroThreshold).(*array.Float64),
		expPosOffset:     rec.Column(colMetricExpPosOffset).(*array.Int32),
		expPosCounts:     rec.Column(colMetricExpPosCounts).(*array.List),
		expNegOffset:     rec.Column(colMetricExpNegOffset).(*array.Int32),
		expNegCounts:     rec.Column(colMetricExpNegCounts).(*array.List),
		quantiles:        rec.Column(colMetricQuantiles).(*array.List),
	}, nil
}

func (c *metricsColumns) readPointCommon(i int, start, ts func(pcommon.Timestamp), attrs pcommon.Map, flags func(pmetric.DataPointFlags)) error {
	start(pcommon.Timestamp(c.startTime.Value(i)))
	ts(pcommon.Timestamp(c.time.Value(i)))
	if err := c.attrs.ReadInto(attrs, i); err != nil {
		return err
	}
	flags(pmetric.DataPointFlags(c.flags.Value(i)))
	return nil
}

func uint64List(list *array.List, i int) ([]uint64, error) {
	vals, ok := list.ListValues().(*array.Uint64)
	if !ok {
		return nil, typeError("uint64 list")
	}
	start, end := list.ValueOffsets(i)
	out := make([]uint64, 0, end-start)
	for j := int(start); j < int(end); j++ {
		out = append(out, vals.Value(j))
	}
	return out, nil
}

func float64List(list *array.List, i int) ([]float64, error) {
	vals, ok := list.ListValues().(*array.Float64)
	if !ok {
		return nil, typeError("float64 list")
	}
	start, end := list.ValueOffsets(i)
	out := make([]float64, 0, end-start)
	for j := int(start); j < int(end); j++ {
		out = append(out, vals.Value(j))
	}
	return out, nil
}

func decodeMetrics(rec arrow.Record) (pmetric.Metrics, error) {
	md := pmetric.NewMetrics()
	c, err := newMetricsColumns(rec)
	if err != nil {
		return md, err
	}

	var rm pmetric.ResourceMetrics
	var sm pmetric.ScopeMetrics
	var metric pmetric.Metric
	lastResource, lastScope, lastMetric := int64(-1), int64(-1), int64(-1)
	for i := 0; i < int(rec.NumRows()); i++ {
		if rid := int64(c.identity.resourceID.Value(i)); rid != lastResource {
			rm = md.ResourceMetrics().AppendEmpty()
			rm.SetSchemaUrl(c.identity.resourceURL.Value(i))
			if err := c.identity.readResource(rm.Resource(), i); err != nil {
				return md, err
			}
			lastResource = rid
			lastScope = -1
			lastMetric = -1
		}
		if sid := int64(c.identity.scopeID.Value(i)); sid != lastScope {
			sm = rm.ScopeMetrics().AppendEmpty()
			sm.SetSchemaUrl(c.identity.scopeURL.Value(i))
			if err := c.identity.readScope(sm.Scope(), i); err != nil {
				return md, err
			}
			lastScope = sid
			lastMetric = -1
		}

		typ := c.typ.Value(i)
		if mid := int64(c.metricID.Value(i)); mid != lastMetric {
			metric = sm.Metrics().AppendEmpty()
			metric.SetName(c.name.Value(i))
			metric.SetDescription(c.description.Value(i))
			metric.SetUnit(c.unit.Value(i))
			switch typ {
			case metricTypeGauge:
				metric.SetEmptyGauge()
			case metricTypeSum:
				sum := metric.SetEmptySum()
				sum.SetAggregationTemporality(pmetric.AggregationTemporality(c.temporality.Value(i)))
				sum.SetIsMonotonic(c.monotonic.Value(i))
			case metricTypeHistogram:
				hist := metric.SetEmptyHistogram()
				hist.SetAggregationTemporality(pmetric.AggregationTemporality(c.temporality.Value(i)))
			case metricTypeExpHistogram:
				hist := metric.SetEmptyExponentialHistogram()
				hist.SetAggregationTemporality(pmetric.AggregationTemporality(c.temporality.Value(i)))
			case metricTypeSummary:
				metric.SetEmptySummary()
			default:
				return md, fmt.Errorf("%w: unknown metric type tag %d", ErrCorruptPayload, typ)
			}
			lastMetric = mid
		}

		switch typ {
		case metricTypeGauge, metricTypeSum:
			var dp pmetric.NumberDataPoint
			if typ == metricTypeGauge {
				dp = metric.Gauge().DataPoints().AppendEmpty()
			} else {
				dp = metric.Sum().DataPoints().AppendEmpty()
			}
			if err := c.readPointCommon(i, dp.SetStartTimestamp, dp.SetTimestamp, dp.Attributes(), dp.SetFlags); err != nil {
				return md, err
			}
			switch c.numType.Value(i) {
			case numTypeInt:
				dp.SetIntValue(c.numInt.Value(i))
			case numTypeDouble:
				dp.SetDoubleValue(c.numDouble.Value(i))
			}
		case metricTypeHistogram:
			dp := metric.Histogram().DataPoints().AppendEmpty()
			if err := c.readPointCommon(i, dp.SetStartTimestamp, dp.SetTimestamp, dp.Attributes(), dp.SetFlags); err != nil {
				return md, err
			}
			dp.SetCount(c.count.Value(i))
			if !c.sum.IsNull(i) {
				dp.SetSum(c.sum.Value(i))
			}
			if !c.min.IsNull(i) {
				dp.SetMin(c.min.Value(i))
			}
			if !c.max.IsNull(i) {
				dp.SetMax(c.max.Value(i))
			}
			counts, err := uint64List(c.bucketCounts, i)
			if err != nil {
				return md, err
			}
			dp.BucketCounts().FromRaw(counts)
			bounds, err := float64List(c.explicitBounds, i)
			if err != nil {
				return md, err
			}
			dp.ExplicitBounds().FromRaw(bounds)
		case metricTypeExpHistogram:
			dp := metric.ExponentialHistogram().DataPoints().AppendEmpty()
			if err := c.readPointCommon(i, dp.SetStartTimestamp, dp.SetTimestamp, dp.Attributes(), dp.SetFlags); err != nil {
				return md, err
			}
			dp.SetCount(c.count.Value(i))
			if !c.sum.IsNull(i) {
				dp.SetSum(c.sum.Value(i))
			}
			if !c.min.IsNull(i) {
				dp.SetMin(c.min.Value(i))
			}
			if !c.max.IsNull(i) {
				dp.SetMax(c.max.Value(i))
			}
			dp.SetScale(c.expScale.Value(i))
			dp.SetZeroCount(c.expZeroCount.Value(i))
			dp.SetZeroThreshold(c.expZeroThreshold.Value(i))
			dp.Positive().SetOffset(c.expPosOffset.Value(i))
			pos, err := uint64List(c.expPosCounts, i)
			if err != nil {
				return md, err
			}
			dp.Positive().BucketCounts().FromRaw(pos)
			dp.Negative().SetOffset(c.expNegOffset.Value(i))
			neg, err := uint64List(c.expNegCounts, i)
			if err != nil {
				return md, err
			}
			dp.Negative().BucketCounts().FromRaw(neg)
		case metricTypeSummary:
			dp := metric.Summary().DataPoints().AppendEmpty()
			if err := c.readPointCommon(i, dp.SetStartTimestamp, dp.SetTimestamp, dp.Attributes(), dp.SetFlags); err != nil {
				return md, err
			}
			dp.SetCount(c.count.Value(i))
			dp.SetSum(c.sum.Value(i))
			qEntry, ok := c.quantiles.ListValues().(*array.Struct)
			if !ok {
				return md, typeError("quantiles")
			}
			qQuantile, ok := qEntry.Field(0).(*array.Float64)
			if !ok {
				return md, typeError("quantiles.quantile")
			}
			qValue, ok := qEntry.Field(1).(*array.Float64)
			if !ok {
				return md, typeError("quantiles.value")
			}
			start, end := c.quantiles.ValueOffsets(i)
			for j := int(start); j < int(end); j++ {
				qv := dp.QuantileValues().AppendEmpty()
				qv.SetQuantile(qQuantile.Value(j))
				qv.SetValue(qValue.Value(j))
			}
		}
	}
	return md, nil
}
