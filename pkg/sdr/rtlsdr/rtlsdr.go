// Package rtlsdr drives RTL2832U USB dongles through librtlsdr.
package rtlsdr

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	gsdr "github.com/jpoirier/gortlsdr"
	"github.com/norasector/turbine-input/pkg/sdr"
)

const (
	DriverName = "rtlsdr"

	maxSampleRate = 3.2e6
	asyncBufNum   = 15
	asyncBufLen   = 262144
	queueDepth    = 32
	gainTuner     = "TUNER"
	antennaRX     = "RX"
)

func init() {
	sdr.Register(DriverName, driver{})
}

type driver struct{}

func (driver) Enumerate(args sdr.Kwargs) ([]sdr.Kwargs, error) {
	var ret []sdr.Kwargs
	count := gsdr.GetDeviceCount()
	for i := 0; i < count; i++ {
		manufacturer, product, serial, err := gsdr.GetDeviceUsbStrings(i)
		if err != nil {
			continue
		}
		kw := sdr.KwargsFromMap(map[string]string{
			"driver":       DriverName,
			"index":        strconv.Itoa(i),
			"label":        fmt.Sprintf("%s :: %s", gsdr.GetDeviceName(i), serial),
			"manufacturer": manufacturer,
			"product":      product,
			"serial":       serial,
		})
		if kw.Matches(withoutDriver(args)) {
			ret = append(ret, kw)
		}
	}
	return ret, nil
}

func withoutDriver(args sdr.Kwargs) sdr.Kwargs {
	var kw sdr.Kwargs
	for i := 0; i < args.Len(); i++ {
		if args.Key(i) != "driver" {
			kw.Set(args.Key(i), args.Value(i))
		}
	}
	return kw
}

func (driver) Make(args sdr.Kwargs) (sdr.Device, error) {
	index := 0
	if serial, ok := args.Get("serial"); ok {
		idx, err := gsdr.GetIndexBySerial(serial)
		if err != nil {
			return nil, fmt.Errorf("rtlsdr: no device with serial %s: %w", serial, err)
		}
		index = idx
	} else if v, ok := args.Get("index"); ok {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("rtlsdr: bad index %q: %w", v, err)
		}
		index = idx
	}
	if gsdr.GetDeviceCount() <= index {
		return nil, sdr.ErrNoDevice
	}

	ctx, err := gsdr.Open(index)
	if err != nil {
		return nil, err
	}
	return &Device{
		ctx:      ctx,
		index:    index,
		settings: make(map[string]string),
	}, nil
}

type Device struct {
	ctx   *gsdr.Context
	index int

	mu       sync.Mutex
	gain     float64
	settings map[string]string
}

func (d *Device) DriverKey() string   { return DriverName }
func (d *Device) HardwareKey() string { return gsdr.GetDeviceName(d.index) }

func (d *Device) SetSampleRate(dir sdr.Direction, channel int, rate float64) error {
	if rate > maxSampleRate {
		return fmt.Errorf("rtlsdr: sample rate %.0f > max %.0f", rate, maxSampleRate)
	}
	return d.ctx.SetSampleRate(int(rate))
}

func (d *Device) GetSampleRate(dir sdr.Direction, channel int) float64 {
	return float64(d.ctx.GetSampleRate())
}

func (d *Device) SetFrequency(dir sdr.Direction, channel int, freq float64, args sdr.Kwargs) error {
	return d.ctx.SetCenterFreq(int(freq))
}

func (d *Device) GetFrequency(dir sdr.Direction, channel int) float64 {
	return float64(d.ctx.GetCenterFreq())
}

func (d *Device) SetFrequencyCorrection(dir sdr.Direction, channel int, ppm float64) error {
	p := int(math.Round(ppm))
	if p == 0 {
		// librtlsdr reports an error when the value does not change.
		return nil
	}
	return d.ctx.SetFreqCorrection(p)
}

func (d *Device) HasDCOffsetMode(dir sdr.Direction, channel int) bool { return false }

func (d *Device) SetDCOffsetMode(dir sdr.Direction, channel int, automatic bool) error {
	return sdr.ErrNotImpl
}

func (d *Device) ListGains(dir sdr.Direction, channel int) []string {
	return []string{gainTuner}
}

func (d *Device) SetGain(dir sdr.Direction, channel int, value float64) error {
	return d.SetGainElement(dir, channel, gainTuner, value)
}

// SetGainElement switches the tuner to manual gain and picks the closest
// gain step the tuner supports.
func (d *Device) SetGainElement(dir sdr.Direction, channel int, name string, value float64) error {
	if name != gainTuner {
		return fmt.Errorf("rtlsdr: unknown gain element %s", name)
	}
	if err := d.ctx.SetTunerGainMode(true); err != nil {
		return err
	}
	tenths := int(math.Round(value * 10))
	if gains, err := d.ctx.GetTunerGains(); err == nil && len(gains) > 0 {
		tenths = closest(gains, tenths)
	}
	if err := d.ctx.SetTunerGain(tenths); err != nil {
		return err
	}
	d.mu.Lock()
	d.gain = float64(tenths) / 10
	d.mu.Unlock()
	return nil
}

func closest(steps []int, want int) int {
	best := steps[0]
	for _, s := range steps[1:] {
		if abs(s-want) < abs(best-want) {
			best = s
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (d *Device) GetGainElement(dir sdr.Direction, channel int, name string) float64 {
	if name != gainTuner {
		return 0
	}
	return float64(d.ctx.GetTunerGain()) / 10
}

func (d *Device) HasGainMode(dir sdr.Direction, channel int) bool { return true }

func (d *Device) SetGainMode(dir sdr.Direction, channel int, automatic bool) error {
	return d.ctx.SetTunerGainMode(!automatic)
}

func (d *Device) ListAntennas(dir sdr.Direction, channel int) []string {
	return []string{antennaRX}
}

func (d *Device) SetAntenna(dir sdr.Direction, channel int, name string) error {
	if name != antennaRX {
		return fmt.Errorf("rtlsdr: unknown antenna %s", name)
	}
	return nil
}

func (d *Device) GetAntenna(dir sdr.Direction, channel int) string {
	return antennaRX
}

func (d *Device) WriteSetting(key, value string) error {
	on, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("rtlsdr: setting %s: %w", key, err)
	}
	switch key {
	case "rtl_agc":
		err = d.ctx.SetAgcMode(on)
	case "testmode":
		err = d.ctx.SetTestMode(on)
	case "offset_tune":
		err = d.ctx.SetOffsetTuning(on)
	default:
		return fmt.Errorf("rtlsdr: unknown setting %s", key)
	}
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.settings[key] = strconv.FormatBool(on)
	d.mu.Unlock()
	return nil
}

func (d *Device) ReadSetting(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.settings[key]; ok {
		return v
	}
	return "false"
}

func (d *Device) GetNativeStreamFormat(dir sdr.Direction, channel int) (string, float64) {
	return sdr.FormatCU8, 128
}

func (d *Device) GetStreamFormats(dir sdr.Direction, channel int) []string {
	return []string{sdr.FormatCU8}
}

func (d *Device) SetupStream(dir sdr.Direction, format string, channels []int, args sdr.Kwargs) (sdr.Stream, error) {
	if dir != sdr.RX {
		return nil, sdr.ErrNotImpl
	}
	if format != sdr.FormatCU8 {
		return nil, fmt.Errorf("rtlsdr: unsupported stream format %s", format)
	}
	return &Stream{
		dev:   d,
		queue: sdr.NewAsyncQueue(queueDepth, 2),
	}, nil
}

func (d *Device) Close() error {
	return d.ctx.Close()
}

// Stream runs librtlsdr's async reader and queues its transfers.
type Stream struct {
	dev    *Device
	queue  *sdr.AsyncQueue
	wg     sync.WaitGroup
	active bool
}

func (s *Stream) MTU() int {
	return asyncBufLen / 2
}

func (s *Stream) Activate(flags sdr.StreamFlags, timeNs int64, numElems int) error {
	if s.active {
		return nil
	}
	if err := s.dev.ctx.ResetBuffer(); err != nil {
		return err
	}
	s.queue.Reset()
	s.active = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// ReadAsync blocks until CancelAsync.
		if err := s.dev.ctx.ReadAsync(s.queue.Push, nil, asyncBufNum, asyncBufLen); err != nil {
			s.queue.Close()
		}
	}()
	return nil
}

func (s *Stream) Deactivate(flags sdr.StreamFlags, timeNs int64) error {
	if !s.active {
		return nil
	}
	s.active = false
	err := s.dev.ctx.CancelAsync()
	s.wg.Wait()
	return err
}

func (s *Stream) Read(buf []byte, numElems int, timeout time.Duration) (int, sdr.StreamFlags, int64, error) {
	return s.queue.Read(buf, numElems, timeout)
}

func (s *Stream) Close() error {
	err := s.Deactivate(0, 0)
	s.queue.Close()
	return err
}
