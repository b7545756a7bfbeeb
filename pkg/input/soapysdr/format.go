package soapysdr

import (
	"fmt"

	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/sample"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/rs/zerolog"
)

// ChosenFormat is the outcome of sample format negotiation.
type ChosenFormat struct {
	Kind       sample.Kind
	WireFormat string
	FullScale  float32
	SampleSize int
}

// usable reports the kind of a wire format and its size on dev, or
// sample.Undefined if the pipeline cannot take it.
func usable(dev sdr.Device, format string) (sample.Kind, int) {
	kind := sample.FromString(format)
	if kind == sample.Undefined {
		return sample.Undefined, 0
	}
	size := sdr.SizeOf(dev, format)
	if size != kind.Size() {
		return sample.Undefined, size
	}
	return kind, size
}

// ChooseSampleFormat picks the receive format. The native format is taken
// when it is known, sized as expected and has a positive full scale, which
// avoids a conversion inside the driver. Otherwise the first usable entry of
// the device's format list wins and is scaled by the kind's fixed constant.
func ChooseSampleFormat(dev sdr.Device, logger zerolog.Logger) (ChosenFormat, error) {
	native, fullScale := dev.GetNativeStreamFormat(sdr.RX, channel)
	if kind, size := usable(dev, native); kind != sample.Undefined && fullScale > 0 {
		logger.Info().
			Str("format", native).
			Float64("full_scale", fullScale).
			Msg("using native sample format")
		return ChosenFormat{
			Kind:       kind,
			WireFormat: native,
			FullScale:  float32(fullScale),
			SampleSize: size,
		}, nil
	}
	logger.Debug().
		Str("format", native).
		Float64("full_scale", fullScale).
		Msg("native sample format not usable")

	formats := dev.GetStreamFormats(sdr.RX, channel)
	if len(formats) == 0 {
		logger.Error().Msg("failed to read supported sample formats")
		return ChosenFormat{}, fmt.Errorf("%w: device lists no stream formats", input.ErrNoSampleFormat)
	}

	for _, format := range formats {
		kind, size := usable(dev, format)
		if kind == sample.Undefined {
			logger.Debug().Str("format", format).Int("size", size).Msg("skipping sample format")
			continue
		}
		chosen := ChosenFormat{
			Kind:       kind,
			WireFormat: format,
			FullScale:  kind.FullScale(),
			SampleSize: size,
		}
		logger.Info().
			Str("format", format).
			Float32("full_scale", chosen.FullScale).
			Msg("using non-native sample format (assuming full scale)")
		return chosen, nil
	}

	return ChosenFormat{}, fmt.Errorf("%w: none of %v is supported", input.ErrNoSampleFormat, formats)
}
