// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRecordsRoundTrip(t *testing.T) {
	in := &BatchRecords{
		BatchID:  42,
		Signal:   SignalMetrics,
		SchemaID: 7,
		IPCChunk: []byte{0xff, 0x00, 0x01, 0x02},
	}
	b, err := codec{}.Marshal(in)
	require.NoError(t, err)

	out := &BatchRecords{}
	require.NoError(t, codec{}.Unmarshal(b, out))
	assert.Equal(t, in, out)
}

func TestBatchRecordsZeroValue(t *testing.T) {
	b, err := codec{}.Marshal(&BatchRecords{})
	require.NoError(t, err)
	assert.Empty(t, b)

	out := &BatchRecords{BatchID: 9, IPCChunk: []byte{1}}
	require.NoError(t, out.unmarshal(b))
	assert.Equal(t, &BatchRecords{}, out)
}

func TestBatchStatusRoundTrip(t *testing.T) {
	in := &BatchStatus{
		BatchID:      3,
		StatusCode:   StatusPermanent,
		ErrorMessage: "schema mismatch",
	}
	b, err := codec{}.Marshal(in)
	require.NoError(t, err)

	out := &BatchStatus{}
	require.NoError(t, codec{}.Unmarshal(b, out))
	assert.Equal(t, in, out)
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	b, err := codec{}.Marshal(&CapabilitiesResponse{ArrowSupported: true})
	require.NoError(t, err)

	out := &CapabilitiesResponse{}
	require.NoError(t, codec{}.Unmarshal(b, out))
	assert.True(t, out.ArrowSupported)
}

func TestUnmarshalTruncated(t *testing.T) {
	in := &BatchRecords{BatchID: 1, IPCChunk: []byte("0123456789")}
	b := in.marshal(nil)
	assert.Error(t, (&BatchRecords{}).unmarshal(b[:len(b)-3]))
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	_, err := codec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, codec{}.Unmarshal(nil, &struct{}{}))
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "traces", SignalTraces.String())
	assert.Equal(t, "metrics", SignalMetrics.String())
	assert.Equal(t, "logs", SignalLogs.String())
}
