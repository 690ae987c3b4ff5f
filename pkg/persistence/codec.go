// Package persistence implements the binary framing of model files.
//
// A model file is a sequence of CRC32-protected frames, one per section.
// Array payloads are little-endian, 4 bytes per element.
package persistence

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFloat32s serializes a float32 slice as IEEE-754 little-endian words.
func EncodeFloat32s(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeFloat32s is the inverse of EncodeFloat32s.
func DecodeFloat32s(payload []byte) ([]float32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("float32 payload of %d bytes is not word aligned", len(payload))
	}
	values := make([]float32, len(payload)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return values, nil
}

// EncodeUint32s serializes a uint32 slice as little-endian words.
func EncodeUint32s(values []uint32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// DecodeUint32s is the inverse of EncodeUint32s.
func DecodeUint32s(payload []byte) ([]uint32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("uint32 payload of %d bytes is not word aligned", len(payload))
	}
	values := make([]uint32, len(payload)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(payload[i*4:])
	}
	return values, nil
}
