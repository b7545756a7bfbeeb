// Package hackrf drives HackRF One boards through libhackrf.
package hackrf

import (
	"fmt"
	"sync"
	"time"

	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/samuel/go-hackrf/hackrf"
)

const (
	DriverName = "hackrf"

	maxSampleRate = 20e6
	transferSize  = 262144
	queueDepth    = 32
	antenna       = "TX/RX"

	gainAMP = "AMP"
	gainLNA = "LNA"
	gainVGA = "VGA"

	maxLNA = 40
	maxVGA = 62
	ampDB  = 14
)

var (
	libMu     sync.Mutex
	libActive bool
)

func libInit() error {
	libMu.Lock()
	defer libMu.Unlock()
	if libActive {
		return nil
	}
	if err := hackrf.Init(); err != nil {
		return err
	}
	libActive = true
	return nil
}

// Exit releases libhackrf if it was initialized. Call it once no device is
// open any more.
func Exit() error {
	libMu.Lock()
	defer libMu.Unlock()
	if !libActive {
		return nil
	}
	libActive = false
	return hackrf.Exit()
}

func init() {
	sdr.Register(DriverName, driver{})
}

type driver struct{}

// Enumerate reports the first board, found by opening it briefly.
func (driver) Enumerate(args sdr.Kwargs) ([]sdr.Kwargs, error) {
	if err := libInit(); err != nil {
		return nil, err
	}
	dev, err := hackrf.Open()
	if err != nil {
		return nil, nil
	}
	dev.Close()
	return []sdr.Kwargs{sdr.KwargsFromMap(map[string]string{
		"driver": DriverName,
		"label":  "HackRF One",
	})}, nil
}

func (driver) Make(args sdr.Kwargs) (sdr.Device, error) {
	if err := libInit(); err != nil {
		return nil, err
	}
	dev, err := hackrf.Open()
	if err != nil {
		return nil, err
	}
	return &Device{
		dev:   dev,
		gains: map[string]float64{gainAMP: 0, gainLNA: 16, gainVGA: 16},
	}, nil
}

type Device struct {
	dev *hackrf.Device

	mu         sync.Mutex
	sampleRate float64
	freq       float64
	ppm        float64
	gains      map[string]float64
}

func (d *Device) DriverKey() string   { return DriverName }
func (d *Device) HardwareKey() string { return "HackRF One" }

func (d *Device) SetSampleRate(dir sdr.Direction, channel int, rate float64) error {
	if rate > maxSampleRate {
		return fmt.Errorf("hackrf: sample rate %.0f > max %.0f", rate, maxSampleRate)
	}
	if err := d.dev.SetSampleRateManual(int(rate), 1); err != nil {
		return err
	}
	if err := d.dev.SetBasebandFilterBandwidth(int(rate)); err != nil {
		return err
	}
	d.mu.Lock()
	d.sampleRate = rate
	d.mu.Unlock()
	return nil
}

func (d *Device) GetSampleRate(dir sdr.Direction, channel int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

func (d *Device) SetFrequency(dir sdr.Direction, channel int, freq float64, args sdr.Kwargs) error {
	d.mu.Lock()
	d.freq = freq
	d.mu.Unlock()
	return d.tune()
}

// tune applies the stored frequency with the ppm correction folded in; the
// board has no correction register of its own.
func (d *Device) tune() error {
	d.mu.Lock()
	corrected := d.freq * (1 + d.ppm/1e6)
	d.mu.Unlock()
	if corrected <= 0 {
		return nil
	}
	return d.dev.SetFreq(uint64(corrected))
}

func (d *Device) GetFrequency(dir sdr.Direction, channel int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freq
}

func (d *Device) SetFrequencyCorrection(dir sdr.Direction, channel int, ppm float64) error {
	d.mu.Lock()
	d.ppm = ppm
	d.mu.Unlock()
	return d.tune()
}

func (d *Device) HasDCOffsetMode(dir sdr.Direction, channel int) bool { return false }

func (d *Device) SetDCOffsetMode(dir sdr.Direction, channel int, automatic bool) error {
	return sdr.ErrNotImpl
}

func (d *Device) ListGains(dir sdr.Direction, channel int) []string {
	return []string{gainAMP, gainLNA, gainVGA}
}

// SetGain spreads an overall gain over LNA first and VGA second.
func (d *Device) SetGain(dir sdr.Direction, channel int, value float64) error {
	lna, vga := splitGain(value)
	if err := d.SetGainElement(dir, channel, gainLNA, lna); err != nil {
		return err
	}
	return d.SetGainElement(dir, channel, gainVGA, vga)
}

func splitGain(value float64) (lna, vga float64) {
	if value < 0 {
		value = 0
	}
	lna = value
	if lna > maxLNA {
		lna = maxLNA
	}
	lna -= float64(int(lna) % 8)
	vga = value - lna
	if vga > maxVGA {
		vga = maxVGA
	}
	vga -= float64(int(vga) % 2)
	return lna, vga
}

func (d *Device) SetGainElement(dir sdr.Direction, channel int, name string, value float64) error {
	var err error
	switch name {
	case gainAMP:
		on := value > 0
		err = d.dev.SetAmpEnable(on)
		value = 0
		if on {
			value = ampDB
		}
	case gainLNA:
		value = clampStep(value, maxLNA, 8)
		err = d.dev.SetLNAGain(int(value))
	case gainVGA:
		value = clampStep(value, maxVGA, 2)
		err = d.dev.SetVGAGain(int(value))
	default:
		return fmt.Errorf("hackrf: unknown gain element %s", name)
	}
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.gains[name] = value
	d.mu.Unlock()
	return nil
}

func clampStep(value, max float64, step int) float64 {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	return float64(int(value) - int(value)%step)
}

func (d *Device) GetGainElement(dir sdr.Direction, channel int, name string) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gains[name]
}

func (d *Device) HasGainMode(dir sdr.Direction, channel int) bool { return false }

func (d *Device) SetGainMode(dir sdr.Direction, channel int, automatic bool) error {
	return sdr.ErrNotImpl
}

func (d *Device) ListAntennas(dir sdr.Direction, channel int) []string {
	return []string{antenna}
}

func (d *Device) SetAntenna(dir sdr.Direction, channel int, name string) error {
	if name != antenna {
		return fmt.Errorf("hackrf: unknown antenna %s", name)
	}
	return nil
}

func (d *Device) GetAntenna(dir sdr.Direction, channel int) string {
	return antenna
}

func (d *Device) WriteSetting(key, value string) error {
	return fmt.Errorf("hackrf: unknown setting %s", key)
}

func (d *Device) ReadSetting(key string) string {
	return ""
}

func (d *Device) GetNativeStreamFormat(dir sdr.Direction, channel int) (string, float64) {
	return sdr.FormatCS8, 128
}

func (d *Device) GetStreamFormats(dir sdr.Direction, channel int) []string {
	return []string{sdr.FormatCS8}
}

func (d *Device) SetupStream(dir sdr.Direction, format string, channels []int, args sdr.Kwargs) (sdr.Stream, error) {
	if dir != sdr.RX {
		return nil, sdr.ErrNotImpl
	}
	if format != sdr.FormatCS8 {
		return nil, fmt.Errorf("hackrf: unsupported stream format %s", format)
	}
	return &Stream{
		dev:   d,
		queue: sdr.NewAsyncQueue(queueDepth, 2),
	}, nil
}

func (d *Device) Close() error {
	return d.dev.Close()
}

type Stream struct {
	dev    *Device
	queue  *sdr.AsyncQueue
	active bool
}

func (s *Stream) MTU() int {
	return transferSize / 2
}

func (s *Stream) Activate(flags sdr.StreamFlags, timeNs int64, numElems int) error {
	if s.active {
		return nil
	}
	s.queue.Reset()
	if err := s.dev.dev.StartRX(func(buf []byte) error {
		s.queue.Push(buf)
		return nil
	}); err != nil {
		return err
	}
	s.active = true
	return nil
}

func (s *Stream) Deactivate(flags sdr.StreamFlags, timeNs int64) error {
	if !s.active {
		return nil
	}
	s.active = false
	return s.dev.dev.StopRX()
}

func (s *Stream) Read(buf []byte, numElems int, timeout time.Duration) (int, sdr.StreamFlags, int64, error) {
	return s.queue.Read(buf, numElems, timeout)
}

func (s *Stream) Close() error {
	err := s.Deactivate(0, 0)
	s.queue.Close()
	return err
}
