package soapysdr

import (
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/rs/zerolog"
)

// Probe logs every discoverable device with its full argument set. It is
// informational only: failures are logged and whatever was found is
// returned.
func Probe(enumerate Enumerator, logger zerolog.Logger) []sdr.Kwargs {
	devices, err := enumerate(sdr.Kwargs{})
	if err != nil {
		logger.Warn().Err(err).Msg("device enumeration incomplete")
	}
	if len(devices) == 0 {
		logger.Info().Msg("no devices found")
		return nil
	}

	for i, dev := range devices {
		fields := make(map[string]interface{}, dev.Len())
		for j := 0; j < dev.Len(); j++ {
			fields[dev.Key(j)] = dev.Value(j)
		}
		logger.Info().Int("device", i).Fields(fields).Msg("found device")
	}
	return devices
}
