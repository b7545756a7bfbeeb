package soapysdr

import (
	"fmt"
	"strconv"

	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/norasector/turbine-input/pkg/util"
)

// Init opens the device and configures it. Every failing step aborts with an
// *input.InitError and leaves the device closed.
func (in *Input) Init() (err error) {
	Probe(in.enumerate, in.Logger)

	cfg := in.Config
	dev, err := in.open(cfg.Source)
	if err != nil {
		return in.fail("could not open device", err)
	}
	in.dev = dev
	defer func() {
		if err != nil {
			in.release()
		}
	}()

	in.Device = input.DeviceInfo{
		Driver:   dev.DriverKey(),
		Hardware: dev.HardwareKey(),
	}
	in.Logger.Info().
		Str("driver", in.Device.Driver).
		Str("hardware", in.Device.Hardware).
		Msg("device opened")

	if err := dev.SetSampleRate(sdr.RX, channel, float64(cfg.SampleRate)); err != nil {
		return in.fail("setSampleRate failed", err)
	}
	in.Device.SampleRate = dev.GetSampleRate(sdr.RX, channel)
	in.Logger.Info().Float64("rate", in.Device.SampleRate).Msg("sample rate set")

	tuned := float64(cfg.TunedFreq())
	if err := dev.SetFrequency(sdr.RX, channel, tuned, sdr.Kwargs{}); err != nil {
		return in.fail("setFrequency failed", err)
	}
	in.Device.Frequency = dev.GetFrequency(sdr.RX, channel)
	in.Logger.Info().Str("freq", util.KHzToString(in.Device.Frequency)).Msg("center frequency set")

	if err := dev.SetFrequencyCorrection(sdr.RX, channel, cfg.Correction); err != nil {
		return in.fail("setFrequencyCorrection failed", err)
	}
	in.Logger.Info().Float64("ppm", cfg.Correction).Msg("frequency correction set")

	if dev.HasDCOffsetMode(sdr.RX, channel) {
		if err := dev.SetDCOffsetMode(sdr.RX, channel, true); err != nil {
			return in.fail("setDCOffsetMode failed", err)
		}
	}

	if err := in.setupGain(dev); err != nil {
		return err
	}

	if cfg.Antenna != "" {
		if err := dev.SetAntenna(sdr.RX, channel, cfg.Antenna); err != nil {
			return in.fail(fmt.Sprintf("could not select antenna %s", cfg.Antenna), err)
		}
	}
	in.Device.Antenna = dev.GetAntenna(sdr.RX, channel)
	in.Device.Antennas = dev.ListAntennas(sdr.RX, channel)
	in.Device.Gains = dev.ListGains(sdr.RX, channel)
	in.Logger.Info().
		Str("antenna", in.Device.Antenna).
		Strs("antennas", in.Device.Antennas).
		Strs("gains", in.Device.Gains).
		Msg("using antenna")

	if cfg.DeviceSettings != "" {
		if err := in.applySettings(dev); err != nil {
			return err
		}
	}

	chosen, err := ChooseSampleFormat(dev, in.Logger)
	if err != nil {
		in.Logger.Error().Msg("could not find a suitable sample format; unable to use this device")
		return in.fail("sample format negotiation failed", err)
	}
	in.SetSampleFormat(chosen.Kind, chosen.FullScale, chosen.SampleSize)
	in.Logger.Debug().
		Stringer("sfmt", chosen.Kind).
		Str("wire_format", chosen.WireFormat).
		Float32("full_scale", chosen.FullScale).
		Int("sample_size", chosen.SampleSize).
		Msg("sample format negotiated")

	stream, err := dev.SetupStream(sdr.RX, chosen.WireFormat, []int{channel}, sdr.Kwargs{})
	if err != nil {
		return in.fail("could not set up stream", err)
	}
	in.stream = stream
	in.MaxTU = stream.MTU()
	if in.MaxTU <= 0 {
		return in.fail("could not set up stream", fmt.Errorf("device reported stream MTU %d", in.MaxTU))
	}
	return nil
}

func (in *Input) fail(op string, err error) error {
	in.Logger.Error().Err(err).Msg(op)
	return &input.InitError{Source: in.Config.Source, Op: op, Err: err}
}

// setupGain applies, in order of precedence, the per-element gains, the
// single gain value, or automatic gain.
func (in *Input) setupGain(dev sdr.Device) error {
	cfg := in.Config
	switch {
	case cfg.GainElements != "":
		gains := sdr.ParseKwargs(cfg.GainElements)
		if gains.Len() < 1 {
			return in.fail("unable to parse gains string", fmt.Errorf("%w: %q must be a sequence of 'name1=value1,name2=value2,...'",
				input.ErrConfig, cfg.GainElements))
		}
		for i := 0; i < gains.Len(); i++ {
			name := gains.Key(i)
			value, err := strconv.ParseFloat(gains.Value(i), 64)
			if err != nil {
				return in.fail("unable to parse gains string", fmt.Errorf("%w: gain element %s: %v", input.ErrConfig, name, err))
			}
			if err := dev.SetGainElement(sdr.RX, channel, name, value); err != nil {
				return in.fail(fmt.Sprintf("could not set gain element %s", name), err)
			}
			in.Logger.Info().
				Str("element", name).
				Float64("gain_db", dev.GetGainElement(sdr.RX, channel, name)).
				Msg("gain element set")
		}

	case cfg.Gain != input.AutoGain:
		if err := dev.SetGain(sdr.RX, channel, cfg.Gain); err != nil {
			return in.fail("could not set gain", err)
		}
		in.Logger.Info().Float64("gain_db", cfg.Gain).Msg("gain set")

	default:
		if !dev.HasGainMode(sdr.RX, channel) {
			return in.fail("device does not support auto gain, please specify gain manually", sdr.ErrNotImpl)
		}
		if err := dev.SetGainMode(sdr.RX, channel, true); err != nil {
			return in.fail("could not enable auto gain", err)
		}
		in.Logger.Info().Msg("auto gain enabled")
	}
	return nil
}

// applySettings writes each vendor setting and reads it back. A value that
// reads back differently is reported but tolerated since drivers may
// normalize what they are given.
func (in *Input) applySettings(dev sdr.Device) error {
	settings := sdr.ParseKwargs(in.Config.DeviceSettings)
	if settings.Len() < 1 {
		return in.fail("unable to parse device settings", fmt.Errorf("%w: %q must be a sequence of 'name1=value1,name2=value2,...'",
			input.ErrConfig, in.Config.DeviceSettings))
	}

	for i := 0; i < settings.Len(); i++ {
		key, want := settings.Key(i), settings.Value(i)
		if err := dev.WriteSetting(key, want); err != nil {
			in.Logger.Warn().Err(err).Str("setting", key).Msg("writing setting failed")
		}
		got := dev.ReadSetting(key)
		if got == want {
			in.Logger.Info().Str("setting", key).Str("value", got).Msg("setting done")
			continue
		}
		in.Logger.Warn().
			Str("setting", key).
			Str("requested", want).
			Str("value", got).
			Msg("setting failed")
	}
	return nil
}
