package ca

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// FieldType is the underlying scalar type of a PV's value, independent
// of which DBR_* wire format is requested for it. Values and numbering
// are taken directly from original_source/cothread/dbr.py, which this
// file is data, not design, for — see spec §1.
type FieldType int

const (
	FieldString FieldType = 0
	FieldShort  FieldType = 1
	FieldFloat  FieldType = 2
	FieldEnum   FieldType = 3
	FieldChar   FieldType = 4
	FieldLong   FieldType = 5
	FieldDouble FieldType = 6
)

func (f FieldType) String() string {
	switch f {
	case FieldString:
		return "STRING"
	case FieldShort:
		return "SHORT"
	case FieldFloat:
		return "FLOAT"
	case FieldEnum:
		return "ENUM"
	case FieldChar:
		return "CHAR"
	case FieldLong:
		return "LONG"
	case FieldDouble:
		return "DOUBLE"
	default:
		return fmt.Sprintf("FieldType(%d)", int(f))
	}
}

// Format selects which DBR_* group (native, status, time, graphic,
// control) accompanies a value.
type Format int

const (
	FormatNative Format = iota
	FormatStatus
	FormatTime
	FormatGraphic
	FormatControl
)

// dbrCode reproduces cothread.dbr's DBR_TYPES table: native codes are
// 0-6, and each subsequent group adds a fixed offset per FieldType count
// (7), except CLASS_NAME/STSACK_STRING/PUT_ACK* which sit outside the
// per-type grid entirely.
func dbrCode(ft FieldType, fmtGroup Format) int {
	return int(fmtGroup)*7 + int(ft)
}

// Special non-grid codes, named exactly as original_source/cothread/dbr.py.
const (
	DBRPutAckt       = 35
	DBRPutAcks       = 36
	DBRStsackString  = 37
	DBRClassName     = 38
	DBREnumStr       = 996
	DBRCharBytes     = 997
	DBRCharUnicode   = 998
	DBRCharStr       = 999
)

// epicsEpoch is the EPICS timestamp epoch (1990-01-01T00:00:00Z), used
// by FormatTime decoding, per original_source/cothread/dbr.py's
// EPICS_epoch constant.
var epicsEpoch = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// Value is a decoded DBR payload: Data holds one of []string, []int16
// (short and enum), []float32, []byte, []int32, []float64 depending on
// FieldType, plus whichever status/time/limit metadata the requested
// Format included.
type Value struct {
	Type  FieldType
	Count int
	Data  any

	Status   int16
	Severity int16
	Stamp    time.Time // zero unless Format was FormatTime

	// UpdateCount is filled in by Subscription delivery only: for
	// all_updates subscriptions it is always 1; for coalescing
	// subscriptions it is the number of native updates folded into this
	// delivery (spec §4.7, §8 P4). Zero for values returned by Get/Put.
	UpdateCount int

	// Disconnected marks a synthetic delivery manufactured by a
	// Subscription opened with WithNotifyDisconnect, standing in for a
	// native update while the channel is down (spec §4.7). Data/Status/
	// Severity/Stamp are zero on a Disconnected Value.
	Disconnected bool
}

// Decode parses a DBR wire payload (as delivered by a NativeCA
// array_get_callback) into a Value. The wire format is always
// big-endian, matching EPICS CA's network byte order.
func Decode(ft FieldType, fmtGroup Format, count int, raw []byte) (Value, error) {
	v := Value{Type: ft, Count: count}
	buf := raw

	if fmtGroup != FormatNative {
		if len(buf) < 4 {
			return v, fmt.Errorf("ca: dbr payload too short for status header")
		}
		v.Status = int16(binary.BigEndian.Uint16(buf[0:2]))
		v.Severity = int16(binary.BigEndian.Uint16(buf[2:4]))
		buf = buf[4:]
	}
	if fmtGroup == FormatTime {
		if len(buf) < 8 {
			return v, fmt.Errorf("ca: dbr payload too short for time header")
		}
		secs := binary.BigEndian.Uint32(buf[0:4])
		nsec := binary.BigEndian.Uint32(buf[4:8])
		v.Stamp = epicsEpoch.Add(time.Duration(secs)*time.Second + time.Duration(nsec))
		buf = buf[8:]
	}
	// Graphic/Control groups are decoded like FormatStatus: only the
	// status/severity header is parsed and the value elements are read
	// directly after it. Their display/alarm/control limit fields are
	// not parsed and are not exposed on Value.

	data, err := decodeElements(ft, count, buf)
	if err != nil {
		return v, err
	}
	v.Data = data
	return v, nil
}

func decodeElements(ft FieldType, count int, buf []byte) (any, error) {
	switch ft {
	case FieldString:
		const stride = 40
		out := make([]string, 0, count)
		for i := 0; i < count; i++ {
			if (i+1)*stride > len(buf) {
				return nil, fmt.Errorf("ca: dbr string payload truncated")
			}
			chunk := buf[i*stride : (i+1)*stride]
			n := 0
			for n < len(chunk) && chunk[n] != 0 {
				n++
			}
			out = append(out, string(chunk[:n]))
		}
		return out, nil
	case FieldShort, FieldEnum:
		out := make([]int16, 0, count)
		for i := 0; i < count; i++ {
			if (i+1)*2 > len(buf) {
				return nil, fmt.Errorf("ca: dbr short payload truncated")
			}
			out = append(out, int16(binary.BigEndian.Uint16(buf[i*2:])))
		}
		return out, nil
	case FieldFloat:
		out := make([]float32, 0, count)
		for i := 0; i < count; i++ {
			if (i+1)*4 > len(buf) {
				return nil, fmt.Errorf("ca: dbr float payload truncated")
			}
			out = append(out, math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:])))
		}
		return out, nil
	case FieldChar:
		if count > len(buf) {
			return nil, fmt.Errorf("ca: dbr char payload truncated")
		}
		out := make([]byte, count)
		copy(out, buf[:count])
		return out, nil
	case FieldLong:
		out := make([]int32, 0, count)
		for i := 0; i < count; i++ {
			if (i+1)*4 > len(buf) {
				return nil, fmt.Errorf("ca: dbr long payload truncated")
			}
			out = append(out, int32(binary.BigEndian.Uint32(buf[i*4:])))
		}
		return out, nil
	case FieldDouble:
		out := make([]float64, 0, count)
		for i := 0; i < count; i++ {
			if (i+1)*8 > len(buf) {
				return nil, fmt.Errorf("ca: dbr double payload truncated")
			}
			out = append(out, math.Float64frombits(binary.BigEndian.Uint64(buf[i*8:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ca: unsupported field type %v", ft)
	}
}

// Encode is the inverse of Decode's native-format element encoding, used
// by Put to build the wire payload handed to array_put_callback.
func Encode(ft FieldType, data any) ([]byte, error) {
	switch ft {
	case FieldString:
		vals := data.([]string)
		buf := make([]byte, 40*len(vals))
		for i, s := range vals {
			n := copy(buf[i*40:(i+1)*40-1], s)
			_ = n
		}
		return buf, nil
	case FieldShort, FieldEnum:
		vals := data.([]int16)
		buf := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.BigEndian.PutUint16(buf[i*2:], uint16(v))
		}
		return buf, nil
	case FieldFloat:
		vals := data.([]float32)
		buf := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return buf, nil
	case FieldChar:
		vals := data.([]byte)
		buf := make([]byte, len(vals))
		copy(buf, vals)
		return buf, nil
	case FieldLong:
		vals := data.([]int32)
		buf := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
		}
		return buf, nil
	case FieldDouble:
		vals := data.([]float64)
		buf := make([]byte, 8*len(vals))
		for i, v := range vals {
			binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("ca: unsupported field type %v", ft)
	}
}
