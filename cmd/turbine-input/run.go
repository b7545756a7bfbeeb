package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/turbine-input/pkg/block"
	"github.com/norasector/turbine-input/pkg/config"
	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/recorder"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/norasector/turbine-input/pkg/util"
	"github.com/norasector/turbine-input/pkg/viz"
)

const segmentReportInterval = time.Second

type status struct {
	Source         string           `json:"source"`
	Format         string           `json:"format"`
	FullScale      float32          `json:"full_scale"`
	BytesPerSample int              `json:"bytes_per_sample"`
	MTU            int              `json:"mtu"`
	SampleRate     int              `json:"sample_rate"`
	TunedFreq      int              `json:"tuned_freq"`
	Running        bool             `json:"running"`
	Device         input.DeviceInfo `json:"device"`
}

func newStatus(base *input.Base) status {
	return status{
		Source:         base.Config.Source,
		Format:         base.SampleFormat.String(),
		FullScale:      base.FullScale,
		BytesPerSample: base.BytesPerSample,
		MTU:            base.MaxTU,
		SampleRate:     base.Config.SampleRate,
		TunedFreq:      base.Config.TunedFreq(),
		Running:        base.Running(),
		Device:         base.Device,
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if cfg.InfluxDB.Host != "" {
		client := influxdb2.NewClient(cfg.InfluxDB.Host, "")
		defer client.Close()
		writeAPI = client.WriteAPI(cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket)
		defer writeAPI.Flush()
	}

	conn := block.NewConnection(cfg.ChannelCapacity)
	in, err := input.New(cfg.Device, conn,
		input.WithLogger(log.Logger),
		input.WithMetrics(writeAPI))
	if err != nil {
		return err
	}

	log.Info().
		Str("source", cfg.Device.Source).
		Str("freq", util.MHzToString(cfg.Device.TunedFreq())).
		Int("sample_rate", cfg.Device.SampleRate).
		Msg("initializing input...")
	if err := in.Init(); err != nil {
		in.Destroy()
		return err
	}
	base := in.Common()

	var rec *recorder.Recorder
	if cfg.RecordLocation != "" {
		rec, err = recorder.New(cfg.RecordLocation, cfg.Device.SampleRate, recorder.WithLogger(log.Logger))
		if err != nil {
			in.Destroy()
			return err
		}
		defer rec.Close()
	}

	token := input.NewToken(context.Background())
	eg, ctx := errgroup.WithContext(token.Context())

	var spectrum *viz.Spectrum
	if cfg.VizServer.Port > 0 {
		spectrum = viz.NewSpectrum(cfg.Device.Source, cfg.VizServer.FFTSize, cfg.Device.SampleRate, cfg.Device.TunedFreq())
		srv := viz.NewServer(cfg.VizServer.Port, cfg.VizInterval(), spectrum,
			viz.WithLogger(log.Logger),
			viz.WithDevices(func() []sdr.Kwargs {
				devs, err := sdr.Enumerate(sdr.Kwargs{})
				if err != nil {
					log.Warn().Err(err).Msg("device enumeration incomplete")
				}
				return devs
			}),
			viz.WithStatus(func() interface{} {
				return newStatus(base)
			}))
		eg.Go(func() error {
			return srv.Run(ctx)
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	eg.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-ctx.Done():
		}
		token.Cancel()
		return nil
	})

	eg.Go(func() error {
		return in.Run(token)
	})

	eg.Go(func() error {
		consume(conn, rec, spectrum, writeAPI, cfg.Device.Source, log.Logger)
		return nil
	})

	err = eg.Wait()
	in.Destroy()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// consume drains the connection until the input shuts it down, feeding the
// optional recorder and spectrum and reporting throughput.
func consume(conn *block.Connection, rec *recorder.Recorder, spectrum *viz.Spectrum, writeAPI api.WriteAPI, source string, logger zerolog.Logger) {
	var (
		segments, samples           int
		totalSegments, totalSamples int
		lastReport                  = time.Now()
		lastSegment                 int
		gaps                        int
	)

	for seg := range conn.Segments() {
		if lastSegment != 0 && seg.SegmentNumber != lastSegment+1 {
			gaps++
		}
		lastSegment = seg.SegmentNumber
		segments++
		samples += len(seg.Data)

		if rec != nil {
			if err := rec.Write(seg); err != nil {
				logger.Error().Err(err).Msg("recording failed, disabling recorder")
				rec.Close()
				rec = nil
			}
		}
		if spectrum != nil {
			spectrum.Append(seg.Data)
		}

		if now := time.Now(); now.Sub(lastReport) >= segmentReportInterval {
			util.WritePoint(writeAPI, "input.segments",
				map[string]string{"source": source},
				map[string]interface{}{
					"segments": segments,
					"samples":  samples,
					"gaps":     gaps,
				})
			totalSegments += segments
			totalSamples += samples
			segments, samples, gaps = 0, 0, 0
			lastReport = now
		}
	}

	logger.Info().
		Int("segments", totalSegments+segments).
		Int("samples", totalSamples+samples).
		Msg("input stream closed")
}
