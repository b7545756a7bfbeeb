package main

import (
	"github.com/rs/zerolog/log"

	"github.com/norasector/turbine-input/pkg/input/soapysdr"
	"github.com/norasector/turbine-input/pkg/sdr"
)

// probeDevices logs every device visible to the registered drivers. filter
// is merged into the enumeration arguments, so "mdns=true" also browses for
// network receivers.
func probeDevices(filter string) error {
	extra := sdr.ParseKwargs(filter)
	enumerate := func(args sdr.Kwargs) ([]sdr.Kwargs, error) {
		merged := args.Clone()
		for i := 0; i < extra.Len(); i++ {
			merged.Set(extra.Key(i), extra.Value(i))
		}
		return sdr.Enumerate(merged)
	}

	devices := soapysdr.Probe(enumerate, log.Logger)
	log.Info().Int("count", len(devices)).Strs("drivers", sdr.Drivers()).Msg("probe complete")
	return nil
}
