package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/norasector/turbine-input/pkg/block"
	"github.com/norasector/turbine-input/pkg/sample"
	"github.com/norasector/turbine-input/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{Source: "driver=rtlsdr", SampleRate: 2400000, CenterFreq: 851000000}

	tests := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing source", func(c *Config) { c.Source = "" }, false},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, false},
		{"negative center", func(c *Config) { c.CenterFreq = -1 }, false},
		{"offset below zero", func(c *Config) { c.FreqOffset = -900000000 }, false},
		{"negative offset", func(c *Config) { c.FreqOffset = -100000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrConfig)
			}
		})
	}
}

func TestTunedFreq(t *testing.T) {
	c := Config{CenterFreq: 851000000, FreqOffset: 250000}
	assert.Equal(t, 851250000, c.TunedFreq())
}

func TestToken(t *testing.T) {
	tok := NewToken(context.Background())
	assert.False(t, tok.Cancelled())

	tok.Cancel()
	tok.Cancel()
	assert.True(t, tok.Cancelled())
	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("token not done after cancel")
	}
	assert.ErrorIs(t, tok.Context().Err(), context.Canceled)
}

func TestTokenFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tok := NewToken(parent)
	cancel()
	<-tok.Done()
	assert.True(t, tok.Cancelled())
}

func TestInitError(t *testing.T) {
	cause := errors.New("usb error")
	err := error(&InitError{Source: "driver=rtlsdr", Op: "setSampleRate", Err: cause})
	assert.Equal(t, "driver=rtlsdr: setSampleRate: usb error", err.Error())
	assert.ErrorIs(t, err, cause)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "setSampleRate", initErr.Op)
}

func TestBase(t *testing.T) {
	metrics := &util.MockWriteAPI{}
	b := NewBase(Config{Source: "driver=file"}, block.NewConnection(1),
		WithLogger(zerolog.Nop()), WithMetrics(metrics))
	assert.Same(t, metrics, b.Metrics)

	out := make([]complex64, 2)
	assert.Equal(t, 0, b.ConvertSampleBuffer([]byte{0, 0}, out), "no converter before format is set")

	b.SetSampleFormat(sample.CS8, 128, 2)
	assert.Equal(t, sample.CS8, b.SampleFormat)
	assert.Equal(t, 2, b.BytesPerSample)
	n := b.ConvertSampleBuffer([]byte{64, 0xc0}, out)
	require.Equal(t, 1, n)
	assert.Equal(t, complex64(complex(0.5, -0.5)), out[0])

	assert.False(t, b.Running())
	b.SetRunning(true)
	assert.True(t, b.Running())
	b.SetRunning(false)
	assert.False(t, b.Running())
}

type nopInput struct {
	*Base
}

func (n *nopInput) Init() error            { return nil }
func (n *nopInput) Run(token *Token) error { return nil }
func (n *nopInput) Destroy()               {}
func (n *nopInput) Common() *Base          { return n.Base }

func TestRegistry(t *testing.T) {
	Register("nop-registry-test", func(cfg Config, out *block.Connection, opts ...Option) Input {
		return &nopInput{Base: NewBase(cfg, out, opts...)}
	})
	assert.Contains(t, Types(), "nop-registry-test")

	in, err := New(Config{Type: "nop-registry-test", Source: "x"}, block.NewConnection(1), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, "x", in.Common().Config.Source)

	_, err = New(Config{Type: "missing"}, block.NewConnection(1))
	assert.ErrorIs(t, err, ErrUnknownType)
}
