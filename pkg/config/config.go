package config

import (
	"fmt"
	"os"
	"time"

	"github.com/norasector/turbine-input/pkg/input"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const (
	DefaultChannelCapacity = 16
	DefaultVizInterval     = 500 * time.Millisecond
	DefaultFFTSize         = 1024
)

type Config struct {
	Device          input.Config `yaml:"device"`
	ChannelCapacity int          `yaml:"channel_capacity"`
	LogLevel        string       `yaml:"log_level"`
	RecordLocation  string       `yaml:"record_location"`
	VizServer       struct {
		Port             int `yaml:"port"`
		UpdateIntervalMS int `yaml:"update_interval_ms"`
		FFTSize          int `yaml:"fft_size"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

// Default returns a configuration with automatic gain and the stock
// channel and viz settings.
func Default() Config {
	var c Config
	c.Device.Gain = input.AutoGain
	c.ChannelCapacity = DefaultChannelCapacity
	c.LogLevel = zerolog.InfoLevel.String()
	c.VizServer.UpdateIntervalMS = int(DefaultVizInterval / time.Millisecond)
	c.VizServer.FFTSize = DefaultFFTSize
	return c
}

// Load reads path on top of Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("error reading config file: %w", err)
	}
	if err := Parse(contents, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Parse unmarshals contents into c, leaving fields absent from the
// document untouched.
func Parse(contents []byte, c *Config) error {
	if err := yaml.Unmarshal(contents, c); err != nil {
		return fmt.Errorf("%w: error unmarshaling yaml: %v", input.ErrConfig, err)
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = DefaultChannelCapacity
	}
	if c.VizServer.FFTSize <= 0 {
		c.VizServer.FFTSize = DefaultFFTSize
	}
	if c.VizServer.UpdateIntervalMS <= 0 {
		c.VizServer.UpdateIntervalMS = int(DefaultVizInterval / time.Millisecond)
	}
	return nil
}

func (c Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("%w: %v", input.ErrConfig, err)
	}
	return lvl, nil
}

func (c Config) VizInterval() time.Duration {
	return time.Duration(c.VizServer.UpdateIntervalMS) * time.Millisecond
}

func (c Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.VizServer.FFTSize&(c.VizServer.FFTSize-1) != 0 {
		return fmt.Errorf("%w: fft size %d is not a power of two", input.ErrConfig, c.VizServer.FFTSize)
	}
	return nil
}
