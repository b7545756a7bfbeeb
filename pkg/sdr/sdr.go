// Package sdr describes the device access layer that input backends talk to.
// Concrete hardware lives behind Driver implementations registered by name.
package sdr

import (
	"time"
)

type Direction int

const (
	TX Direction = iota
	RX
)

func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// StreamFlags are returned alongside every Read.
type StreamFlags int

const (
	FlagEndBurst StreamFlags = 1 << iota
	FlagHasTime
	FlagEndAbrupt
	FlagOnePacket
	FlagMoreFragments
	FlagWaitTrigger
)

// Device is an open radio. All channel-scoped calls take the direction and
// channel index, mirroring how multi-channel hardware is addressed.
type Device interface {
	DriverKey() string
	HardwareKey() string

	SetSampleRate(dir Direction, channel int, rate float64) error
	GetSampleRate(dir Direction, channel int) float64

	SetFrequency(dir Direction, channel int, freq float64, args Kwargs) error
	GetFrequency(dir Direction, channel int) float64
	SetFrequencyCorrection(dir Direction, channel int, ppm float64) error

	HasDCOffsetMode(dir Direction, channel int) bool
	SetDCOffsetMode(dir Direction, channel int, automatic bool) error

	ListGains(dir Direction, channel int) []string
	SetGain(dir Direction, channel int, value float64) error
	SetGainElement(dir Direction, channel int, name string, value float64) error
	GetGainElement(dir Direction, channel int, name string) float64
	HasGainMode(dir Direction, channel int) bool
	SetGainMode(dir Direction, channel int, automatic bool) error

	ListAntennas(dir Direction, channel int) []string
	SetAntenna(dir Direction, channel int, name string) error
	GetAntenna(dir Direction, channel int) string

	WriteSetting(key, value string) error
	ReadSetting(key string) string

	// GetNativeStreamFormat reports the format the hardware produces without
	// conversion and the value that maps to full scale in that format.
	GetNativeStreamFormat(dir Direction, channel int) (string, float64)
	GetStreamFormats(dir Direction, channel int) []string
	SetupStream(dir Direction, format string, channels []int, args Kwargs) (Stream, error)

	// Close releases the device. Any stream must be closed first.
	Close() error
}

// Stream is bound to the Device that created it.
type Stream interface {
	// MTU is the largest number of samples a single Read delivers.
	MTU() int
	Activate(flags StreamFlags, timeNs int64, numElems int) error
	Deactivate(flags StreamFlags, timeNs int64) error
	// Read fills buf with up to numElems samples in the stream format and
	// waits no longer than timeout. A failed read returns an ErrorCode.
	Read(buf []byte, numElems int, timeout time.Duration) (n int, flags StreamFlags, timeNs int64, err error)
	Close() error
}

// FormatSizer lets a device report its own idea of a format's sample size.
type FormatSizer interface {
	FormatToSize(format string) int
}

// SizeOf returns the size in bytes of one sample of format as seen by dev.
func SizeOf(dev Device, format string) int {
	if fs, ok := dev.(FormatSizer); ok {
		return fs.FormatToSize(format)
	}
	return FormatToSize(format)
}
