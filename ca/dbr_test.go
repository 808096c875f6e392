package ca

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeNativeDoubleRoundTrip(t *testing.T) {
	want := []float64{1.5, -2.25, 3}
	raw, err := Encode(FieldDouble, want)
	require.NoError(t, err)

	v, err := Decode(FieldDouble, FormatNative, len(want), raw)
	require.NoError(t, err)
	require.Equal(t, want, v.Data)
	require.True(t, v.Stamp.IsZero())
}

func TestDecodeEncodeNativeStringRoundTrip(t *testing.T) {
	want := []string{"abc", "xyz"}
	raw, err := Encode(FieldString, want)
	require.NoError(t, err)
	require.Len(t, raw, 80)

	v, err := Decode(FieldString, FormatNative, len(want), raw)
	require.NoError(t, err)
	require.Equal(t, want, v.Data)
}

func TestDecodeStatusHeaderPopulatesStatusAndSeverity(t *testing.T) {
	buf := make([]byte, 4+4)
	binary.BigEndian.PutUint16(buf[0:2], 5)
	binary.BigEndian.PutUint16(buf[2:4], 2)
	binary.BigEndian.PutUint32(buf[4:8], 0x3f800000) // 1.0f big-endian

	v, err := Decode(FieldFloat, FormatStatus, 1, buf)
	require.NoError(t, err)
	require.Equal(t, int16(5), v.Status)
	require.Equal(t, int16(2), v.Severity)
	require.Equal(t, []float32{1}, v.Data)
}

func TestDecodeTimeHeaderPopulatesStamp(t *testing.T) {
	buf := make([]byte, 4+4+8+4)
	// status/severity
	binary.BigEndian.PutUint16(buf[0:2], 0)
	binary.BigEndian.PutUint16(buf[2:4], 0)
	// epics timestamp: 10 seconds, 0 nsec past the epics epoch
	binary.BigEndian.PutUint32(buf[4:8], 10)
	binary.BigEndian.PutUint32(buf[8:12], 0)
	binary.BigEndian.PutUint32(buf[12:16], 42)

	v, err := Decode(FieldLong, FormatTime, 1, buf)
	require.NoError(t, err)
	require.Equal(t, epicsEpoch.Add(10*time.Second), v.Stamp)
	require.Equal(t, []int32{42}, v.Data)
}

func TestDecodeTruncatedPayloadErrors(t *testing.T) {
	_, err := Decode(FieldDouble, FormatNative, 2, make([]byte, 8))
	require.Error(t, err)
}
