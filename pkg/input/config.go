package input

import (
	"fmt"
)

// AutoGain is the Gain value that requests automatic gain control.
const AutoGain = -100.0

// Config describes the device an input should acquire and how to tune it.
// Inputs only read it.
type Config struct {
	// Type selects the backend, "soapysdr" when empty.
	Type string `yaml:"type"`
	// Source is passed to the device layer untouched, e.g. "driver=rtlsdr".
	Source     string  `yaml:"source"`
	SampleRate int     `yaml:"sample_rate"`
	CenterFreq int     `yaml:"center_freq"`
	FreqOffset int     `yaml:"freq_offset"`
	Correction float64 `yaml:"correction"`
	// GainElements ("LNA=20,VGA=10") wins over Gain. When neither is set
	// (Gain == AutoGain) automatic gain is enabled.
	GainElements   string  `yaml:"gain_elements"`
	Gain           float64 `yaml:"gain"`
	Antenna        string  `yaml:"antenna"`
	DeviceSettings string  `yaml:"device_settings"`
}

// TunedFreq is the frequency the device is actually tuned to.
func (c Config) TunedFreq() int {
	return c.CenterFreq + c.FreqOffset
}

func (c Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("%w: device source must be set", ErrConfig)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrConfig, c.SampleRate)
	}
	if c.CenterFreq <= 0 {
		return fmt.Errorf("%w: center frequency must be positive, got %d", ErrConfig, c.CenterFreq)
	}
	if c.TunedFreq() <= 0 {
		return fmt.Errorf("%w: frequency offset %d moves tuning below zero", ErrConfig, c.FreqOffset)
	}
	return nil
}
