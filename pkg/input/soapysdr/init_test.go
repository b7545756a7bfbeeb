package soapysdr

import (
	"errors"
	"testing"

	"github.com/norasector/turbine-input/pkg/block"
	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/sample"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/norasector/turbine-input/pkg/sdr/sdrtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() input.Config {
	return input.Config{
		Source:     "driver=fake",
		SampleRate: 2000000,
		CenterFreq: 10000000,
		FreqOffset: 500,
		Correction: 1.5,
		Gain:       input.AutoGain,
	}
}

func newTestInput(dev *sdrtest.Device, cfg input.Config) *Input {
	open := func(args string) (sdr.Device, error) {
		return dev, nil
	}
	enumerate := func(args sdr.Kwargs) ([]sdr.Kwargs, error) {
		return []sdr.Kwargs{sdr.ParseKwargs("driver=fake,serial=1")}, nil
	}
	in := NewWithOpener(open, enumerate, cfg, block.NewConnection(8), input.WithLogger(zerolog.Nop()))
	in.settle = 0
	return in
}

func TestInitSequence(t *testing.T) {
	dev := sdrtest.New()
	dev.DCOffsetMode = true
	dev.GainMode = true
	dev.StreamMTU = 4096

	in := newTestInput(dev, baseConfig())
	require.NoError(t, in.Init())

	assert.Equal(t, []string{
		"SetSampleRate(2000000)",
		"SetFrequency(10000500)",
		"SetFrequencyCorrection(1.50)",
		"SetDCOffsetMode(true)",
		"SetGainMode(true)",
		"GetNativeStreamFormat",
		"SetupStream(CS16)",
	}, dev.Calls())

	assert.Equal(t, sample.CS16, in.SampleFormat)
	assert.Equal(t, float32(32768), in.FullScale)
	assert.Equal(t, 4, in.BytesPerSample)
	assert.Equal(t, 4096, in.MaxTU)

	assert.Equal(t, input.DeviceInfo{
		Driver:     "fake",
		Hardware:   "fake",
		SampleRate: 2000000,
		Frequency:  10000500,
		Antenna:    "RX",
		Antennas:   []string{"RX", "LNAW"},
		Gains:      []string{"LNA", "VGA"},
	}, in.Device)
}

func TestInitGainPrecedence(t *testing.T) {
	t.Run("elements win over scalar", func(t *testing.T) {
		dev := sdrtest.New()
		cfg := baseConfig()
		cfg.GainElements = "LNA=20,VGA=10"
		cfg.Gain = 30

		require.NoError(t, newTestInput(dev, cfg).Init())
		calls := dev.Calls()
		assert.Contains(t, calls, "SetGainElement(LNA, 20.0)")
		assert.Contains(t, calls, "SetGainElement(VGA, 10.0)")
		assert.NotContains(t, calls, "SetGain(30.0)")
		assert.NotContains(t, calls, "SetGainMode(true)")

		var gainCalls []string
		for _, c := range calls {
			switch c {
			case "SetGainElement(LNA, 20.0)", "GetGainElement(LNA)", "SetGainElement(VGA, 10.0)", "GetGainElement(VGA)":
				gainCalls = append(gainCalls, c)
			}
		}
		assert.Equal(t, []string{
			"SetGainElement(LNA, 20.0)",
			"GetGainElement(LNA)",
			"SetGainElement(VGA, 10.0)",
			"GetGainElement(VGA)",
		}, gainCalls)
	})

	t.Run("scalar", func(t *testing.T) {
		dev := sdrtest.New()
		cfg := baseConfig()
		cfg.Gain = 30

		require.NoError(t, newTestInput(dev, cfg).Init())
		assert.Contains(t, dev.Calls(), "SetGain(30.0)")
		assert.NotContains(t, dev.Calls(), "SetGainMode(true)")
	})

	t.Run("auto unsupported", func(t *testing.T) {
		dev := sdrtest.New()
		dev.GainMode = false

		err := newTestInput(dev, baseConfig()).Init()
		require.Error(t, err)
		assert.True(t, errors.Is(err, sdr.ErrNotImpl))
		assert.NotContains(t, dev.Calls(), "SetGainMode(true)")
		assert.NotContains(t, dev.Calls(), "SetupStream(CS16)")
	})
}

func TestInitRejectsEmptyArgumentStrings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *input.Config)
	}{
		{"gain elements", func(cfg *input.Config) { cfg.GainElements = ",," }},
		{"gain element value", func(cfg *input.Config) { cfg.GainElements = "LNA=loud" }},
		{"device settings", func(cfg *input.Config) {
			cfg.Gain = 10
			cfg.DeviceSettings = " , "
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := sdrtest.New()
			dev.GainMode = true
			cfg := baseConfig()
			tt.mutate(&cfg)

			err := newTestInput(dev, cfg).Init()
			require.Error(t, err)
			assert.True(t, errors.Is(err, input.ErrConfig))

			var initErr *input.InitError
			require.True(t, errors.As(err, &initErr))
			assert.Equal(t, "driver=fake", initErr.Source)
			assert.NotContains(t, dev.Calls(), "SetupStream(CS16)")
			assert.Contains(t, dev.Calls(), "Close")
		})
	}
}

func TestInitSettingMismatchIsNotFatal(t *testing.T) {
	dev := sdrtest.New()
	dev.GainMode = true
	dev.SettingReadback = map[string]string{"biastee": "false"}
	cfg := baseConfig()
	cfg.DeviceSettings = "biastee=true"

	require.NoError(t, newTestInput(dev, cfg).Init())
	assert.Contains(t, dev.Calls(), "WriteSetting(biastee, true)")
	assert.Contains(t, dev.Calls(), "ReadSetting(biastee)")
}

func TestInitWriteSettingFailureIsNotFatal(t *testing.T) {
	dev := sdrtest.New()
	dev.GainMode = true
	dev.Fail = map[string]error{"WriteSetting": errors.New("unknown key")}
	cfg := baseConfig()
	cfg.DeviceSettings = "biastee=true,rfnotch_ctrl=false"

	in := newTestInput(dev, cfg)
	require.NoError(t, in.Init())
	assert.NotNil(t, in.stream)

	calls := dev.Calls()
	assert.Contains(t, calls, "WriteSetting(biastee, true)")
	assert.Contains(t, calls, "ReadSetting(biastee)")
	assert.Contains(t, calls, "WriteSetting(rfnotch_ctrl, false)")
	assert.Contains(t, calls, "ReadSetting(rfnotch_ctrl)")
	assert.Contains(t, calls, "SetupStream(CS16)")
}

func TestInitGainElementsReadBack(t *testing.T) {
	dev := sdrtest.New()
	cfg := baseConfig()
	cfg.GainElements = "LNA=20,VGA=10.5"

	require.NoError(t, newTestInput(dev, cfg).Init())
	assert.Equal(t, map[string]float64{"LNA": 20, "VGA": 10.5}, dev.Gains)

	calls := dev.Calls()
	idx := func(call string) int {
		for i, c := range calls {
			if c == call {
				return i
			}
		}
		t.Fatalf("missing call %s in %v", call, calls)
		return -1
	}
	assert.Equal(t, idx("SetGainElement(LNA, 20.0)")+1, idx("GetGainElement(LNA)"))
	assert.Equal(t, idx("SetGainElement(VGA, 10.5)")+1, idx("GetGainElement(VGA)"))
	assert.NotContains(t, calls, "SetGainMode(true)")
}

func TestInitSetterFailures(t *testing.T) {
	boom := errors.New("device said no")
	tests := []struct {
		method string
		mutate func(cfg *input.Config)
	}{
		{"SetSampleRate", nil},
		{"SetFrequency", nil},
		{"SetFrequencyCorrection", nil},
		{"SetDCOffsetMode", nil},
		{"SetGainMode", nil},
		{"SetGain", func(cfg *input.Config) { cfg.Gain = 20 }},
		{"SetGainElement", func(cfg *input.Config) { cfg.GainElements = "LNA=1" }},
		{"SetAntenna", nil},
		{"SetupStream", nil},
	}
	for _, tt := range tests {
		method := tt.method
		t.Run(method, func(t *testing.T) {
			dev := sdrtest.New()
			dev.DCOffsetMode = true
			dev.GainMode = true
			dev.Fail = map[string]error{method: boom}
			cfg := baseConfig()
			cfg.Antenna = "LNAW"
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			in := newTestInput(dev, cfg)
			err := in.Init()
			require.Error(t, err)
			assert.True(t, errors.Is(err, boom))
			assert.Contains(t, err.Error(), "device said no")
			assert.Contains(t, dev.Calls(), "Close")
			assert.Nil(t, in.dev)
			assert.Nil(t, in.stream)
		})
	}
}

func TestInitOpenFailure(t *testing.T) {
	boom := errors.New("no such device")
	in := NewWithOpener(
		func(string) (sdr.Device, error) { return nil, boom },
		func(sdr.Kwargs) ([]sdr.Kwargs, error) { return nil, nil },
		baseConfig(), block.NewConnection(1), input.WithLogger(zerolog.Nop()))

	err := in.Init()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestInitNoSampleFormat(t *testing.T) {
	dev := sdrtest.New()
	dev.GainMode = true
	dev.NativeFormat = "CS12"
	dev.Formats = []string{"CS12"}

	err := newTestInput(dev, baseConfig()).Init()
	require.Error(t, err)
	assert.True(t, errors.Is(err, input.ErrNoSampleFormat))
	assert.Contains(t, dev.Calls(), "Close")
}

func TestInitAntennaLogged(t *testing.T) {
	dev := sdrtest.New()
	dev.GainMode = true
	cfg := baseConfig()
	cfg.Antenna = "LNAW"

	require.NoError(t, newTestInput(dev, cfg).Init())
	assert.Contains(t, dev.Calls(), "SetAntenna(LNAW)")
	assert.Equal(t, "LNAW", dev.Antenna)
}

func TestProbe(t *testing.T) {
	found := Probe(func(sdr.Kwargs) ([]sdr.Kwargs, error) {
		return []sdr.Kwargs{sdr.ParseKwargs("driver=a"), sdr.ParseKwargs("driver=b,serial=2")}, nil
	}, zerolog.Nop())
	assert.Len(t, found, 2)

	found = Probe(func(sdr.Kwargs) ([]sdr.Kwargs, error) {
		return nil, errors.New("usb busy")
	}, zerolog.Nop())
	assert.Empty(t, found)
}
