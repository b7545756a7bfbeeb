package sample

import (
	"encoding/binary"
	"math"
)

// Converter turns raw bytes into complex samples scaled by 1/fullScale and
// returns the number of samples written.
type Converter func(in []byte, out []complex64, fullScale float32) int

func (k Kind) Converter() Converter {
	switch k {
	case CU8:
		return convertCU8
	case CS8:
		return convertCS8
	case CS16:
		return convertCS16
	case CF32:
		return convertCF32
	}
	return nil
}

func count(in []byte, out []complex64, size int) int {
	n := len(in) / size
	if n > len(out) {
		n = len(out)
	}
	return n
}

func convertCU8(in []byte, out []complex64, fullScale float32) int {
	n := count(in, out, 2)
	for i := 0; i < n; i++ {
		re := (float32(in[2*i]) - 127.5) / fullScale
		im := (float32(in[2*i+1]) - 127.5) / fullScale
		out[i] = complex(re, im)
	}
	return n
}

func convertCS8(in []byte, out []complex64, fullScale float32) int {
	n := count(in, out, 2)
	for i := 0; i < n; i++ {
		re := float32(int8(in[2*i])) / fullScale
		im := float32(int8(in[2*i+1])) / fullScale
		out[i] = complex(re, im)
	}
	return n
}

func convertCS16(in []byte, out []complex64, fullScale float32) int {
	n := count(in, out, 4)
	for i := 0; i < n; i++ {
		re := float32(int16(binary.LittleEndian.Uint16(in[4*i:]))) / fullScale
		im := float32(int16(binary.LittleEndian.Uint16(in[4*i+2:]))) / fullScale
		out[i] = complex(re, im)
	}
	return n
}

func convertCF32(in []byte, out []complex64, fullScale float32) int {
	n := count(in, out, 8)
	for i := 0; i < n; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(in[8*i:])) / fullScale
		im := math.Float32frombits(binary.LittleEndian.Uint32(in[8*i+4:])) / fullScale
		out[i] = complex(re, im)
	}
	return n
}
