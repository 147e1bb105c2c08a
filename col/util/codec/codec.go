package codec

import (
	"encoding/binary"
	"math"

	"github.com/pingcap/errors"
)

const (
	signMask uint64 = 0x8000000000000000

	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

// Type flags prefix every encoded value so that values of different kinds never compare equal.
const (
	intFlag    byte = 0x03
	floatFlag  byte = 0x05
	stringFlag byte = 0x07
)

var pads = make([]byte, encGroupSize)

// EncodeKey encodes a tuple of key values into a single memcomparable byte string. Two tuples compare (bytewise) in
// the same order as their values compare column by column. Supported values are int64, float64 and string.
func EncodeKey(values ...interface{}) ([]byte, error) {
	var b []byte
	for _, v := range values {
		var err error
		b, err = EncodeValue(b, v)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// EncodeValue appends the memcomparable encoding of a single value to b.
func EncodeValue(b []byte, v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case int64:
		b = append(b, intFlag)
		return EncodeInt(b, x), nil
	case float64:
		b = append(b, floatFlag)
		return EncodeFloat(b, x), nil
	case string:
		b = append(b, stringFlag)
		return append(b, EncodeBytes([]byte(x))...), nil
	}
	return nil, errors.Errorf("codec: unsupported key value %v (%T)", v, v)
}

// EncodeInt appends an int64 so that negative values sort before positive ones.
func EncodeInt(b []byte, v int64) []byte {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], uint64(v)^signMask)
	return append(b, data[:]...)
}

// DecodeInt decodes a value written by EncodeInt and returns the leftover bytes.
func DecodeInt(b []byte) ([]byte, int64, error) {
	if len(b) < 8 {
		return nil, 0, errors.New("insufficient bytes to decode value")
	}
	u := binary.BigEndian.Uint64(b[:8])
	return b[8:], int64(u ^ signMask), nil
}

// EncodeFloat appends a float64 so that the byte order matches numeric order.
func EncodeFloat(b []byte, v float64) []byte {
	u := math.Float64bits(v)
	if v >= 0 {
		u |= signMask
	} else {
		u = ^u
	}
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], u)
	return append(b, data[:]...)
}

// DecodeFloat decodes a value written by EncodeFloat and returns the leftover bytes.
func DecodeFloat(b []byte) ([]byte, float64, error) {
	if len(b) < 8 {
		return nil, 0, errors.New("insufficient bytes to decode value")
	}
	u := binary.BigEndian.Uint64(b[:8])
	if u&signMask > 0 {
		u &= ^signMask
	} else {
		u = ^u
	}
	return b[8:], math.Float64frombits(u), nil
}

// EncodeBytes guarantees the encoded value is in ascending order for comparison,
// encoding with the following rule:
//  [group1][marker1]...[groupN][markerN]
//  group is 8 bytes slice which is padding with 0.
//  marker is `0xFF - padding 0 count`
// For example:
//   [] -> [0, 0, 0, 0, 0, 0, 0, 0, 247]
//   [1, 2, 3] -> [1, 2, 3, 0, 0, 0, 0, 0, 250]
//   [1, 2, 3, 0] -> [1, 2, 3, 0, 0, 0, 0, 0, 251]
//   [1, 2, 3, 4, 5, 6, 7, 8] -> [1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247]
// Refer: https://github.com/facebook/mysql-5.6/wiki/MyRocks-record-format#memcomparable-format
func EncodeBytes(data []byte) []byte {
	dLen := len(data)
	result := make([]byte, 0, (dLen/encGroupSize+1)*(encGroupSize+1))
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			result = append(result, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, pads[:padCount]...)
		}

		marker := encMarker - byte(padCount)
		result = append(result, marker)
	}
	return result
}

// DecodeBytes decodes bytes which is encoded by EncodeBytes before,
// returns the leftover bytes and decoded value if no error.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}

		groupBytes := b[:encGroupSize+1]

		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]

		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", groupBytes)
		}

		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]

		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", groupBytes)
				}
			}
			break
		}
	}
	return b, data, nil
}

// DecodeKey decodes a tuple written by EncodeKey.
func DecodeKey(b []byte) ([]interface{}, error) {
	var values []interface{}
	for len(b) > 0 {
		flag := b[0]
		b = b[1:]
		var err error
		switch flag {
		case intFlag:
			var v int64
			b, v, err = DecodeInt(b)
			values = append(values, v)
		case floatFlag:
			var v float64
			b, v, err = DecodeFloat(b)
			values = append(values, v)
		case stringFlag:
			var v []byte
			b, v, err = DecodeBytes(b)
			values = append(values, string(v))
		default:
			return nil, errors.Errorf("codec: invalid type flag %d", flag)
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return values, nil
}
