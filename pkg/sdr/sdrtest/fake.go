// Package sdrtest provides a scriptable sdr.Device for exercising input
// backends without hardware.
package sdrtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/norasector/turbine-input/pkg/sdr"
)

// ReadResult is one scripted outcome of Stream.Read.
type ReadResult struct {
	Data []byte
	N    int
	Err  error
}

type Device struct {
	NativeFormat    string
	NativeFullScale float64
	Formats         []string
	// Sizes overrides sdr.FormatToSize for the listed formats.
	Sizes map[string]int

	DCOffsetMode bool
	GainMode     bool
	Antenna      string
	Antennas     []string
	GainNames    []string
	Gains        map[string]float64
	// SettingReadback overrides what ReadSetting returns for a key.
	SettingReadback map[string]string

	// Fail makes the named method return the error.
	Fail map[string]error

	StreamMTU   int
	ActivateErr error
	Reads       []ReadResult
	// Exhausted is invoked once the scripted reads run out. Later reads
	// time out after a short sleep.
	Exhausted func()

	mu         sync.Mutex
	calls      []string
	settings   map[string]string
	stream     *Stream
	sampleRate float64
	freq       float64
}

func New() *Device {
	return &Device{
		NativeFormat:    sdr.FormatCS16,
		NativeFullScale: 32768,
		Formats:         []string{sdr.FormatCS16, sdr.FormatCF32},
		Antenna:         "RX",
		Antennas:        []string{"RX", "LNAW"},
		GainNames:       []string{"LNA", "VGA"},
		StreamMTU:       1024,
		Gains:           make(map[string]float64),
	}
}

func (d *Device) record(format string, args ...interface{}) {
	d.mu.Lock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

// Calls returns every recorded call in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *Device) fail(method string) error {
	if d.Fail == nil {
		return nil
	}
	return d.Fail[method]
}

func (d *Device) FormatToSize(format string) int {
	if size, ok := d.Sizes[format]; ok {
		return size
	}
	return sdr.FormatToSize(format)
}

func (d *Device) DriverKey() string   { return "fake" }
func (d *Device) HardwareKey() string { return "fake" }

func (d *Device) SetSampleRate(dir sdr.Direction, channel int, rate float64) error {
	d.record("SetSampleRate(%.0f)", rate)
	if err := d.fail("SetSampleRate"); err != nil {
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
	d.record("SetFrequency(%.0f)", freq)
	if err := d.fail("SetFrequency"); err != nil {
		return err
	}
	d.mu.Lock()
	d.freq = freq
	d.mu.Unlock()
	return nil
}

func (d *Device) GetFrequency(dir sdr.Direction, channel int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freq
}

func (d *Device) SetFrequencyCorrection(dir sdr.Direction, channel int, ppm float64) error {
	d.record("SetFrequencyCorrection(%.2f)", ppm)
	return d.fail("SetFrequencyCorrection")
}

func (d *Device) HasDCOffsetMode(dir sdr.Direction, channel int) bool { return d.DCOffsetMode }

func (d *Device) SetDCOffsetMode(dir sdr.Direction, channel int, automatic bool) error {
	d.record("SetDCOffsetMode(%t)", automatic)
	return d.fail("SetDCOffsetMode")
}

func (d *Device) ListGains(dir sdr.Direction, channel int) []string { return d.GainNames }

func (d *Device) SetGain(dir sdr.Direction, channel int, value float64) error {
	d.record("SetGain(%.1f)", value)
	return d.fail("SetGain")
}

func (d *Device) SetGainElement(dir sdr.Direction, channel int, name string, value float64) error {
	d.record("SetGainElement(%s, %.1f)", name, value)
	if err := d.fail("SetGainElement"); err != nil {
		return err
	}
	d.mu.Lock()
	d.Gains[name] = value
	d.mu.Unlock()
	return nil
}

func (d *Device) GetGainElement(dir sdr.Direction, channel int, name string) float64 {
	d.record("GetGainElement(%s)", name)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Gains[name]
}

func (d *Device) HasGainMode(dir sdr.Direction, channel int) bool { return d.GainMode }

func (d *Device) SetGainMode(dir sdr.Direction, channel int, automatic bool) error {
	d.record("SetGainMode(%t)", automatic)
	return d.fail("SetGainMode")
}

func (d *Device) ListAntennas(dir sdr.Direction, channel int) []string {
	return d.Antennas
}

func (d *Device) SetAntenna(dir sdr.Direction, channel int, name string) error {
	d.record("SetAntenna(%s)", name)
	if err := d.fail("SetAntenna"); err != nil {
		return err
	}
	d.Antenna = name
	return nil
}

func (d *Device) GetAntenna(dir sdr.Direction, channel int) string {
	return d.Antenna
}

func (d *Device) WriteSetting(key, value string) error {
	d.record("WriteSetting(%s, %s)", key, value)
	if err := d.fail("WriteSetting"); err != nil {
		return err
	}
	d.mu.Lock()
	if d.settings == nil {
		d.settings = make(map[string]string)
	}
	d.settings[key] = value
	d.mu.Unlock()
	return nil
}

func (d *Device) ReadSetting(key string) string {
	d.record("ReadSetting(%s)", key)
	if v, ok := d.SettingReadback[key]; ok {
		return v
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings[key]
}

func (d *Device) GetNativeStreamFormat(dir sdr.Direction, channel int) (string, float64) {
	d.record("GetNativeStreamFormat")
	return d.NativeFormat, d.NativeFullScale
}

func (d *Device) GetStreamFormats(dir sdr.Direction, channel int) []string {
	d.record("GetStreamFormats")
	return d.Formats
}

func (d *Device) SetupStream(dir sdr.Direction, format string, channels []int, args sdr.Kwargs) (sdr.Stream, error) {
	d.record("SetupStream(%s)", format)
	if err := d.fail("SetupStream"); err != nil {
		return nil, err
	}
	d.stream = &Stream{dev: d}
	return d.stream, nil
}

func (d *Device) Close() error {
	d.record("Close")
	return nil
}

type Stream struct {
	dev  *Device
	next int
}

func (s *Stream) MTU() int {
	return s.dev.StreamMTU
}

func (s *Stream) Activate(flags sdr.StreamFlags, timeNs int64, numElems int) error {
	s.dev.record("Activate")
	return s.dev.ActivateErr
}

func (s *Stream) Deactivate(flags sdr.StreamFlags, timeNs int64) error {
	s.dev.record("Deactivate")
	return nil
}

func (s *Stream) Read(buf []byte, numElems int, timeout time.Duration) (int, sdr.StreamFlags, int64, error) {
	if s.next >= len(s.dev.Reads) {
		if s.next == len(s.dev.Reads) {
			s.next++
			if s.dev.Exhausted != nil {
				s.dev.Exhausted()
			}
		}
		time.Sleep(time.Millisecond)
		return 0, 0, 0, sdr.ErrTimeout
	}
	r := s.dev.Reads[s.next]
	s.next++
	s.dev.record("Read")
	if r.Err != nil {
		return 0, 0, 0, r.Err
	}
	copy(buf, r.Data)
	return r.N, 0, 0, nil
}

func (s *Stream) Close() error {
	s.dev.record("CloseStream")
	return nil
}
