package sdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatToSize(t *testing.T) {
	tests := []struct {
		format string
		want   int
	}{
		{FormatCF64, 16},
		{FormatCF32, 8},
		{FormatCS32, 8},
		{FormatCS16, 4},
		{FormatCU16, 4},
		{FormatCS12, 3},
		{FormatCS8, 2},
		{FormatCU8, 2},
		{FormatCS4, 1},
		{"F32", 4},
		{"S16", 2},
		{"U8", 1},
		{"", 0},
		{"C", 0},
		{"CX16", 0},
		{"CSxx", 0},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatToSize(tt.format))
		})
	}
}

func TestErrorCodeStrings(t *testing.T) {
	assert.Equal(t, "TIMEOUT", ErrTimeout.Error())
	assert.Equal(t, "OVERFLOW", ErrOverflow.Error())
	assert.Equal(t, "UNKNOWN_ERROR (-42)", ErrorCode(-42).Error())
}
