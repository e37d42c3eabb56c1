package sqlstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFloat32 converts a float32 slice to a little-endian byte slice, the
// same layout sqlite-vec uses for its BLOB vectors.
func EncodeFloat32(v []float32) ([]byte, error) {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// DecodeFloat32 converts a little-endian byte slice back to a float32 slice.
func DecodeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
