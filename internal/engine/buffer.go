package engine

import "encoding/binary"

// The put helpers write one property value into dst and return the size the
// value needs. A nil dst is a size query. A dst shorter than the value is
// rejected with ErrInvalidArgument and left untouched.

// checkDst rejects a non-nil, zero-length destination.
func checkDst(dst []byte) error {
	if dst != nil && len(dst) == 0 {
		return invalidf("zero-length destination")
	}
	return nil
}

func fits(dst []byte, n int) error {
	if len(dst) < n {
		return invalidf("destination holds %d bytes, value needs %d", len(dst), n)
	}
	return nil
}

// putString writes s followed by a NUL.
func putString(dst []byte, s string) (int, error) {
	n := len(s) + 1
	if dst == nil {
		return n, nil
	}
	if err := fits(dst, n); err != nil {
		return n, err
	}
	copy(dst, s)
	dst[len(s)] = 0
	return n, nil
}

func putInt32(dst []byte, v int32) (int, error) {
	if dst == nil {
		return 4, nil
	}
	if err := fits(dst, 4); err != nil {
		return 4, err
	}
	binary.LittleEndian.PutUint32(dst, uint32(v))
	return 4, nil
}

func putUint64(dst []byte, v uint64) (int, error) {
	if dst == nil {
		return 8, nil
	}
	if err := fits(dst, 8); err != nil {
		return 8, err
	}
	binary.LittleEndian.PutUint64(dst, v)
	return 8, nil
}

func putUint64s(dst []byte, vs []uint64) (int, error) {
	n := 8 * len(vs)
	if dst == nil {
		return n, nil
	}
	if err := fits(dst, n); err != nil {
		return n, err
	}
	for i, v := range vs {
		binary.LittleEndian.PutUint64(dst[8*i:], v)
	}
	return n, nil
}

// decodeInt reads a 4- or 8-byte little-endian integer.
func decodeInt(value []byte) (int64, error) {
	switch len(value) {
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(value))), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(value)), nil
	default:
		return 0, invalidf("numeric value must be 4 or 8 bytes, got %d", len(value))
	}
}

// decodeInt32 reads a 4- or 8-byte value that must fit in an int32.
func decodeInt32(value []byte) (int32, error) {
	v, err := decodeInt(value)
	if err != nil {
		return 0, err
	}
	if v < -1<<31 || v > 1<<31-1 {
		return 0, invalidf("value %d out of range", v)
	}
	return int32(v), nil
}

// decodeUint reads a 4- or 8-byte unsigned little-endian integer.
func decodeUint(value []byte) (uint64, error) {
	switch len(value) {
	case 4:
		return uint64(binary.LittleEndian.Uint32(value)), nil
	case 8:
		return binary.LittleEndian.Uint64(value), nil
	default:
		return 0, invalidf("numeric value must be 4 or 8 bytes, got %d", len(value))
	}
}

// EncodeInt32 encodes v the way numeric parameters are passed.
func EncodeInt32(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

// EncodeUint64 encodes v the way 8-byte parameters are passed.
func EncodeUint64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
