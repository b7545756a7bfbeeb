// Package rtltcp talks to a remote RTL-SDR served by rtl_tcp.
package rtltcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/norasector/turbine-input/pkg/sdr"
)

const (
	DriverName  = "rtltcp"
	DefaultAddr = "127.0.0.1:1234"

	headerMagic  = "RTL0"
	streamMTU    = 65536
	dialTimeout  = 5 * time.Second
	dialAttempts = 4
	gainTuner    = "TUNER"
	antennaRX    = "RX"
)

const (
	cmdSetFreq         = 0x01
	cmdSetSampleRate   = 0x02
	cmdSetGainMode     = 0x03
	cmdSetGain         = 0x04
	cmdSetFreqCorr     = 0x05
	cmdSetTestMode     = 0x07
	cmdSetAGCMode      = 0x08
	cmdSetDirectSample = 0x09
	cmdSetOffsetTuning = 0x0a
	cmdSetBiasTee      = 0x0e
)

var tunerNames = map[uint32]string{
	1: "E4000",
	2: "FC0012",
	3: "FC0013",
	4: "FC2580",
	5: "R820T",
	6: "R828D",
}

var settingCommands = map[string]byte{
	"testmode":    cmdSetTestMode,
	"rtl_agc":     cmdSetAGCMode,
	"direct_samp": cmdSetDirectSample,
	"offset_tune": cmdSetOffsetTuning,
	"biastee":     cmdSetBiasTee,
}

func init() {
	sdr.Register(DriverName, driver{})
}

type driver struct{}

// Enumerate lists the server named by rtltcp=host:port and, with mdns=true,
// any server advertised on the local network.
func (driver) Enumerate(args sdr.Kwargs) ([]sdr.Kwargs, error) {
	var ret []sdr.Kwargs
	if addr, ok := args.Get("rtltcp"); ok {
		ret = append(ret, sdr.KwargsFromMap(map[string]string{
			"driver": DriverName,
			"rtltcp": addr,
			"label":  "rtl_tcp " + addr,
		}))
	}
	if v, _ := args.Get("mdns"); v == "true" {
		hosts, err := Discover(2 * time.Second)
		if err != nil {
			return ret, err
		}
		for _, h := range hosts {
			ret = append(ret, h.Kwargs())
		}
	}
	return ret, nil
}

func (driver) Make(args sdr.Kwargs) (sdr.Device, error) {
	addr, ok := args.Get("rtltcp")
	if !ok || addr == "" {
		addr = DefaultAddr
	}
	return Dial(addr)
}

// Info is the greeting rtl_tcp sends on connect.
type Info struct {
	Magic     string
	Tuner     string
	GainCount uint32
}

type Device struct {
	addr string
	conn net.Conn
	info Info

	mu         sync.Mutex
	sampleRate float64
	freq       float64
	gain       float64
	settings   map[string]string
}

// Dial connects to addr, retrying with exponential backoff, and reads the
// server greeting.
func Dial(addr string) (*Device, error) {
	var conn net.Conn
	op := func() error {
		c, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialAttempts)); err != nil {
		return nil, fmt.Errorf("rtltcp: connect %s: %w", addr, err)
	}

	info, err := readHeader(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Device{
		addr:     addr,
		conn:     conn,
		info:     info,
		settings: make(map[string]string),
	}, nil
}

func readHeader(conn net.Conn) (Info, error) {
	var hdr [12]byte
	if err := conn.SetReadDeadline(time.Now().Add(dialTimeout)); err != nil {
		return Info{}, err
	}
	defer conn.SetReadDeadline(time.Time{})
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return Info{}, fmt.Errorf("rtltcp: reading greeting: %w", err)
	}
	if string(hdr[:4]) != headerMagic {
		return Info{}, fmt.Errorf("rtltcp: bad magic %q", hdr[:4])
	}
	tuner, ok := tunerNames[binary.BigEndian.Uint32(hdr[4:8])]
	if !ok {
		tuner = "unknown"
	}
	return Info{
		Magic:     headerMagic,
		Tuner:     tuner,
		GainCount: binary.BigEndian.Uint32(hdr[8:12]),
	}, nil
}

func (d *Device) Info() Info {
	return d.info
}

func (d *Device) command(cmd byte, param uint32) error {
	var buf [5]byte
	buf[0] = cmd
	binary.BigEndian.PutUint32(buf[1:], param)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.conn.Write(buf[:])
	return err
}

func (d *Device) DriverKey() string   { return DriverName }
func (d *Device) HardwareKey() string { return d.info.Tuner }

func (d *Device) SetSampleRate(dir sdr.Direction, channel int, rate float64) error {
	if err := d.command(cmdSetSampleRate, uint32(rate)); err != nil {
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
	if freq < 0 || freq > math.MaxUint32 {
		return fmt.Errorf("rtltcp: frequency %.0f out of range", freq)
	}
	if err := d.command(cmdSetFreq, uint32(freq)); err != nil {
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
	return d.command(cmdSetFreqCorr, uint32(int32(math.Round(ppm))))
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

func (d *Device) SetGainElement(dir sdr.Direction, channel int, name string, value float64) error {
	if name != gainTuner {
		return fmt.Errorf("rtltcp: unknown gain element %s", name)
	}
	if err := d.command(cmdSetGainMode, 1); err != nil {
		return err
	}
	if err := d.command(cmdSetGain, uint32(int32(math.Round(value*10)))); err != nil {
		return err
	}
	d.mu.Lock()
	d.gain = value
	d.mu.Unlock()
	return nil
}

// GetGainElement returns the last requested gain; rtl_tcp has no way to
// read it back.
func (d *Device) GetGainElement(dir sdr.Direction, channel int, name string) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

func (d *Device) HasGainMode(dir sdr.Direction, channel int) bool { return true }

func (d *Device) SetGainMode(dir sdr.Direction, channel int, automatic bool) error {
	mode := uint32(1)
	if automatic {
		mode = 0
	}
	return d.command(cmdSetGainMode, mode)
}

func (d *Device) ListAntennas(dir sdr.Direction, channel int) []string {
	return []string{antennaRX}
}

func (d *Device) SetAntenna(dir sdr.Direction, channel int, name string) error {
	if name != antennaRX {
		return fmt.Errorf("rtltcp: unknown antenna %s", name)
	}
	return nil
}

func (d *Device) GetAntenna(dir sdr.Direction, channel int) string {
	return antennaRX
}

func (d *Device) WriteSetting(key, value string) error {
	cmd, ok := settingCommands[key]
	if !ok {
		return fmt.Errorf("rtltcp: unknown setting %s", key)
	}
	var param uint32
	if on, err := strconv.ParseBool(value); err == nil {
		if on {
			param = 1
		}
		value = strconv.FormatBool(on)
	} else if n, err := strconv.ParseUint(value, 10, 32); err == nil {
		param = uint32(n)
	} else {
		return fmt.Errorf("rtltcp: setting %s: bad value %q", key, value)
	}
	if err := d.command(cmd, param); err != nil {
		return err
	}
	d.mu.Lock()
	d.settings[key] = value
	d.mu.Unlock()
	return nil
}

func (d *Device) ReadSetting(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings[key]
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
		return nil, fmt.Errorf("rtltcp: unsupported stream format %s", format)
	}
	return &Stream{conn: d.conn}, nil
}

func (d *Device) Close() error {
	return d.conn.Close()
}

// Stream reads samples straight off the connection. rtl_tcp sends data from
// the moment a client connects, so activation has nothing to start.
type Stream struct {
	conn  net.Conn
	carry []byte
}

func (s *Stream) MTU() int {
	return streamMTU
}

func (s *Stream) Activate(flags sdr.StreamFlags, timeNs int64, numElems int) error {
	return nil
}

func (s *Stream) Deactivate(flags sdr.StreamFlags, timeNs int64) error {
	return nil
}

func (s *Stream) Read(buf []byte, numElems int, timeout time.Duration) (int, sdr.StreamFlags, int64, error) {
	want := numElems * 2
	if want > len(buf) {
		want = len(buf) - len(buf)%2
	}
	off := copy(buf, s.carry)
	s.carry = s.carry[:0]

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, 0, 0, sdr.ErrStreamError
	}
	n, err := s.conn.Read(buf[off:want])
	total := off + n
	usable := total - total%2
	s.carry = append(s.carry, buf[usable:total]...)

	if err != nil && usable == 0 {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, 0, 0, sdr.ErrTimeout
		}
		return 0, 0, 0, sdr.ErrStreamError
	}
	return usable / 2, 0, 0, nil
}

func (s *Stream) Close() error {
	return nil
}
