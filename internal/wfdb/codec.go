package wfdb

import (
	"encoding/binary"
	"math"
)

// codec decodes a whole sample file into a flat, frame-interleaved stream
// of ADC values. invalid is the format's "no sample" marker.
type codec struct {
	decode  func(data []byte) []int
	invalid int
}

var codecs = map[int]codec{
	16:  {decode: decode16, invalid: math.MinInt16},
	61:  {decode: decode61, invalid: math.MinInt16},
	80:  {decode: decode80, invalid: -128},
	212: {decode: decode212, invalid: -2048},
	32:  {decode: decode32, invalid: math.MinInt32},
}

func decode16(data []byte) []int {
	out := make([]int, len(data)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return out
}

func decode61(data []byte) []int {
	out := make([]int, len(data)/2)
	for i := range out {
		out[i] = int(int16(binary.BigEndian.Uint16(data[2*i:])))
	}
	return out
}

func decode80(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b) - 128
	}
	return out
}

func decode32(data []byte) []int {
	out := make([]int, len(data)/4)
	for i := range out {
		out[i] = int(int32(binary.LittleEndian.Uint32(data[4*i:])))
	}
	return out
}

// decode212 unpacks pairs of 12-bit two's complement samples from three
// bytes: the low nibble of the middle byte belongs to the first sample,
// the high nibble to the second.
func decode212(data []byte) []int {
	out := make([]int, 0, len(data)*2/3)
	i := 0
	for ; i+2 < len(data); i += 3 {
		b0, b1, b2 := int(data[i]), int(data[i+1]), int(data[i+2])
		out = append(out, signExtend12(b0|(b1&0x0f)<<8))
		out = append(out, signExtend12(b2|(b1&0xf0)<<4))
	}
	if len(data)-i == 2 {
		out = append(out, signExtend12(int(data[i])|(int(data[i+1])&0x0f)<<8))
	}
	return out
}

func signExtend12(v int) int {
	if v&0x800 != 0 {
		return v - 0x1000
	}
	return v
}
