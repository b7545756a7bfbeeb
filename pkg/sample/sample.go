// Package sample holds the sample encodings the pipeline understands and the
// routines that turn them into normalized complex64 samples.
package sample

type Kind int

const (
	Undefined Kind = iota
	CU8
	CS8
	CS16
	CF32
)

var kindNames = map[Kind]string{
	CU8:  "CU8",
	CS8:  "CS8",
	CS16: "CS16",
	CF32: "CF32",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNDEF"
}

// FromString maps a wire format identifier to a Kind, returning Undefined for
// anything the pipeline cannot convert.
func FromString(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return Undefined
}

// Size is the number of bytes one I/Q sample of k occupies.
func (k Kind) Size() int {
	switch k {
	case CU8, CS8:
		return 2
	case CS16:
		return 4
	case CF32:
		return 8
	}
	return 0
}

// FullScale is the magnitude assumed to map to 1.0 when the device does not
// report one.
func (k Kind) FullScale() float32 {
	switch k {
	case CU8, CS8:
		return 128
	case CS16:
		return 32768
	case CF32:
		return 1
	}
	return 0
}
