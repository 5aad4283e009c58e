package txout

import (
	"encoding/binary"
	"math"
)

// complexItemSize is the wire size of one complex64 item.
const complexItemSize = 8

// complexToFloat32LE packs samples as interleaved little-endian float32 I/Q pairs.
func complexToFloat32LE(data []complex64) []byte {
	out := make([]byte, len(data)*complexItemSize)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(imag(v)))
	}
	return out
}

// complexToInt8 packs samples as interleaved signed 8 bit I/Q, clipping at full scale.
func complexToInt8(data []complex64) []byte {
	out := make([]byte, len(data)*2)
	for i, v := range data {
		out[i*2] = byte(toInt8(real(v)))
		out[i*2+1] = byte(toInt8(imag(v)))
	}
	return out
}

func toInt8(v float32) int8 {
	s := v * 127
	if s > 127 {
		s = 127
	}
	if s < -127 {
		s = -127
	}
	return int8(s)
}
