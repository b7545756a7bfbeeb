package sdr

import (
	"strconv"
)

// Wire format identifiers. A leading C marks complex (I/Q) samples; the
// letter after it is F for float, S for signed and U for unsigned integers,
// followed by the bit width of one component.
const (
	FormatCF64 = "CF64"
	FormatCF32 = "CF32"
	FormatCS32 = "CS32"
	FormatCU32 = "CU32"
	FormatCS16 = "CS16"
	FormatCU16 = "CU16"
	FormatCS12 = "CS12"
	FormatCU12 = "CU12"
	FormatCS8  = "CS8"
	FormatCU8  = "CU8"
	FormatCS4  = "CS4"
	FormatCU4  = "CU4"
)

// FormatToSize returns the number of bytes taken by one sample of format,
// or 0 when the identifier cannot be parsed.
func FormatToSize(format string) int {
	if format == "" {
		return 0
	}

	complexFactor := 1
	rest := format
	if rest[0] == 'C' {
		complexFactor = 2
		rest = rest[1:]
	}
	if len(rest) < 2 {
		return 0
	}
	switch rest[0] {
	case 'F', 'S', 'U':
	default:
		return 0
	}

	bits, err := strconv.Atoi(rest[1:])
	if err != nil || bits <= 0 {
		return 0
	}
	return (bits * complexFactor) / 8
}
