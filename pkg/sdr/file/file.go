// Package file plays recorded I/Q captures back as if they came from a
// receiver. Raw captures (.cu8, .cs8, .cs16, .cf32) and stereo PCM16 WAV
// files are understood.
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/norasector/turbine-input/pkg/sample"
	"github.com/norasector/turbine-input/pkg/sdr"
)

const (
	DriverName = "file"
	streamMTU  = 16384
)

func init() {
	sdr.Register(DriverName, driver{})
}

type driver struct{}

func (driver) Enumerate(args sdr.Kwargs) ([]sdr.Kwargs, error) {
	path, ok := args.Get("file")
	if !ok {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	kw := sdr.KwargsFromMap(map[string]string{
		"driver": DriverName,
		"file":   path,
		"label":  "File playback: " + filepath.Base(path),
	})
	return []sdr.Kwargs{kw}, nil
}

func (driver) Make(args sdr.Kwargs) (sdr.Device, error) {
	path, ok := args.Get("file")
	if !ok {
		return nil, fmt.Errorf("file: missing file= argument")
	}
	format, ok := args.Get("format")
	if !ok {
		format = formatFromExt(path)
	}
	repeat, _ := args.Get("repeat")
	return Open(path, format, repeat == "true")
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cs8":
		return sdr.FormatCS8
	case ".cs16", ".wav":
		return sdr.FormatCS16
	case ".cf32", ".cfile":
		return sdr.FormatCF32
	}
	return sdr.FormatCU8
}

// Device replays a capture file.
type Device struct {
	path   string
	format string
	kind   sample.Kind
	isWAV  bool

	mu         sync.Mutex
	repeat     bool
	sampleRate float64
	centerFreq float64
	antenna    string
}

func Open(path, format string, repeat bool) (*Device, error) {
	kind := sample.FromString(format)
	if kind == sample.Undefined {
		return nil, fmt.Errorf("file: unsupported format %q", format)
	}
	d := &Device{
		path:    path,
		format:  format,
		kind:    kind,
		repeat:  repeat,
		isWAV:   strings.EqualFold(filepath.Ext(path), ".wav"),
		antenna: "FILE",
	}
	if d.isWAV {
		if kind != sample.CS16 {
			return nil, fmt.Errorf("file: WAV playback only supports CS16, got %s", format)
		}
		src, err := openWAV(path)
		if err != nil {
			return nil, err
		}
		d.sampleRate = float64(src.sampleRate)
		src.Close()
	} else if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) DriverKey() string   { return DriverName }
func (d *Device) HardwareKey() string { return d.path }

func (d *Device) SetSampleRate(dir sdr.Direction, channel int, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("file: invalid sample rate %.0f", rate)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isWAV && d.sampleRate != rate {
		return fmt.Errorf("file: %s was recorded at %.0f S/s, not %.0f", filepath.Base(d.path), d.sampleRate, rate)
	}
	d.sampleRate = rate
	return nil
}

func (d *Device) GetSampleRate(dir sdr.Direction, channel int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

func (d *Device) SetFrequency(dir sdr.Direction, channel int, freq float64, args sdr.Kwargs) error {
	d.mu.Lock()
	d.centerFreq = freq
	d.mu.Unlock()
	return nil
}

func (d *Device) GetFrequency(dir sdr.Direction, channel int) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.centerFreq
}

func (d *Device) SetFrequencyCorrection(dir sdr.Direction, channel int, ppm float64) error {
	return nil
}

func (d *Device) HasDCOffsetMode(dir sdr.Direction, channel int) bool { return false }

func (d *Device) SetDCOffsetMode(dir sdr.Direction, channel int, automatic bool) error {
	return sdr.ErrNotImpl
}

func (d *Device) ListGains(dir sdr.Direction, channel int) []string { return nil }

// Gain calls are accepted and ignored; a recording's levels are fixed.
func (d *Device) SetGain(dir sdr.Direction, channel int, value float64) error { return nil }

func (d *Device) SetGainElement(dir sdr.Direction, channel int, name string, value float64) error {
	return fmt.Errorf("file: no gain element %s", name)
}

func (d *Device) GetGainElement(dir sdr.Direction, channel int, name string) float64 { return 0 }

func (d *Device) HasGainMode(dir sdr.Direction, channel int) bool { return true }

func (d *Device) SetGainMode(dir sdr.Direction, channel int, automatic bool) error { return nil }

func (d *Device) ListAntennas(dir sdr.Direction, channel int) []string {
	return []string{"FILE"}
}

func (d *Device) SetAntenna(dir sdr.Direction, channel int, name string) error {
	if name != "FILE" {
		return fmt.Errorf("file: unknown antenna %s", name)
	}
	return nil
}

func (d *Device) GetAntenna(dir sdr.Direction, channel int) string {
	return d.antenna
}

func (d *Device) WriteSetting(key, value string) error {
	switch key {
	case "repeat":
		repeat, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.repeat = repeat
		d.mu.Unlock()
		return nil
	}
	return fmt.Errorf("file: unknown setting %s", key)
}

func (d *Device) ReadSetting(key string) string {
	switch key {
	case "repeat":
		d.mu.Lock()
		defer d.mu.Unlock()
		return strconv.FormatBool(d.repeat)
	}
	return ""
}

func (d *Device) GetNativeStreamFormat(dir sdr.Direction, channel int) (string, float64) {
	return d.format, float64(d.kind.FullScale())
}

func (d *Device) GetStreamFormats(dir sdr.Direction, channel int) []string {
	return []string{d.format}
}

func (d *Device) SetupStream(dir sdr.Direction, format string, channels []int, args sdr.Kwargs) (sdr.Stream, error) {
	if dir != sdr.RX {
		return nil, sdr.ErrNotImpl
	}
	if format != d.format {
		return nil, fmt.Errorf("file: capture is %s, cannot stream %s", d.format, format)
	}
	d.mu.Lock()
	rate := d.sampleRate
	d.mu.Unlock()
	if rate <= 0 {
		return nil, fmt.Errorf("file: sample rate not set")
	}
	return &Stream{dev: d, elemSize: d.kind.Size(), rate: rate}, nil
}

func (d *Device) Close() error {
	return nil
}

// source is the byte level reader behind a stream.
type source interface {
	io.Reader
	io.Closer
}

type Stream struct {
	dev      *Device
	elemSize int
	rate     float64

	src       source
	started   time.Time
	delivered int64
}

func (s *Stream) MTU() int {
	return streamMTU
}

func (s *Stream) open() error {
	if s.dev.isWAV {
		src, err := openWAV(s.dev.path)
		if err != nil {
			return err
		}
		s.src = src
		return nil
	}
	f, err := os.Open(s.dev.path)
	if err != nil {
		return err
	}
	s.src = f
	return nil
}

func (s *Stream) Activate(flags sdr.StreamFlags, timeNs int64, numElems int) error {
	if s.src != nil {
		return nil
	}
	if err := s.open(); err != nil {
		return err
	}
	s.started = time.Now()
	s.delivered = 0
	return nil
}

func (s *Stream) Deactivate(flags sdr.StreamFlags, timeNs int64) error {
	if s.src == nil {
		return nil
	}
	err := s.src.Close()
	s.src = nil
	return err
}

// Read delivers samples no faster than the configured sample rate.
func (s *Stream) Read(buf []byte, numElems int, timeout time.Duration) (int, sdr.StreamFlags, int64, error) {
	if s.src == nil {
		return 0, 0, 0, sdr.ErrStreamError
	}

	due := s.started.Add(time.Duration(float64(s.delivered) / s.rate * float64(time.Second)))
	if wait := time.Until(due); wait > 0 {
		if wait > timeout {
			time.Sleep(timeout)
			return 0, 0, 0, sdr.ErrTimeout
		}
		time.Sleep(wait)
	}

	want := numElems * s.elemSize
	if want > len(buf) {
		want = len(buf) - len(buf)%s.elemSize
	}
	n, err := io.ReadFull(s.src, buf[:want])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		if n == 0 {
			return s.endOfFile(timeout)
		}
		err = nil
	}
	if err != nil {
		return 0, 0, 0, sdr.ErrStreamError
	}

	elems := n / s.elemSize
	s.delivered += int64(elems)
	return elems, 0, s.timeNs(), nil
}

func (s *Stream) endOfFile(timeout time.Duration) (int, sdr.StreamFlags, int64, error) {
	s.dev.mu.Lock()
	repeat := s.dev.repeat
	s.dev.mu.Unlock()

	if !repeat {
		time.Sleep(timeout)
		return 0, sdr.FlagEndBurst, 0, sdr.ErrStreamError
	}
	if err := s.src.Close(); err != nil {
		return 0, 0, 0, sdr.ErrStreamError
	}
	if err := s.open(); err != nil {
		s.src = nil
		return 0, 0, 0, sdr.ErrStreamError
	}
	return 0, 0, s.timeNs(), nil
}

func (s *Stream) timeNs() int64 {
	return int64(float64(s.delivered) / s.rate * 1e9)
}

func (s *Stream) Close() error {
	return s.Deactivate(0, 0)
}
