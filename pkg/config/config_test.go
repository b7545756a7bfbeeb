package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/norasector/turbine-input/pkg/input"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
device:
  source: driver=rtlsdr,serial=00000001
  sample_rate: 2400000
  center_freq: 851000000
  freq_offset: -200000
  correction: 1.5
  gain_elements: TUNER=28
  device_settings: biastee=true
channel_capacity: 32
log_level: debug
record_location: /tmp/iq.wav
viz_server:
  port: 8080
  update_interval_ms: 250
influxdb:
  host: http://localhost:8086
  organization: radio
  bucket: iq
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "driver=rtlsdr,serial=00000001", c.Device.Source)
	assert.Equal(t, 2400000, c.Device.SampleRate)
	assert.Equal(t, 850800000, c.Device.TunedFreq())
	assert.Equal(t, 1.5, c.Device.Correction)
	assert.Equal(t, "TUNER=28", c.Device.GainElements)
	assert.Equal(t, input.AutoGain, c.Device.Gain)
	assert.Equal(t, 32, c.ChannelCapacity)
	assert.Equal(t, "/tmp/iq.wav", c.RecordLocation)
	assert.Equal(t, 8080, c.VizServer.Port)
	assert.Equal(t, 250*time.Millisecond, c.VizInterval())
	assert.Equal(t, DefaultFFTSize, c.VizServer.FFTSize)
	assert.Equal(t, "radio", c.InfluxDB.Organization)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseBadYAML(t *testing.T) {
	c := Default()
	err := Parse([]byte("device: [unclosed"), &c)
	assert.ErrorIs(t, err, input.ErrConfig)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Default()
		c.Device.Source = "driver=file"
		c.Device.SampleRate = 48000
		c.Device.CenterFreq = 100e6
		return c
	}

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no source", func(c *Config) { c.Device.Source = "" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"fft not power of two", func(c *Config) { c.VizServer.FFTSize = 1000 }, false},
		{"zero rate", func(c *Config) { c.Device.SampleRate = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.modify(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, input.ErrConfig)
			}
		})
	}
}
