package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/norasector/turbine-input/pkg/config"
	"github.com/norasector/turbine-input/pkg/sdr/hackrf"

	_ "github.com/norasector/turbine-input/pkg/input/soapysdr"
	_ "github.com/norasector/turbine-input/pkg/sdr/file"
	_ "github.com/norasector/turbine-input/pkg/sdr/rtlsdr"
	_ "github.com/norasector/turbine-input/pkg/sdr/rtltcp"
)

type flags struct {
	configFile     string
	inputType      string
	source         string
	sampleRate     int
	centerFreq     int
	freqOffset     int
	correction     float64
	gain           float64
	gainElements   string
	antenna        string
	deviceSettings string
	record         string
	vizPort        int
	logLevel       string
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	var f flags
	root := &cobra.Command{
		Use:           "turbine-input",
		Short:         "Capture IQ samples from an SDR and stream them downstream",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.PersistentFlags().StringVar(&f.configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.Flags().StringVar(&f.inputType, "type", "", "input backend")
	root.Flags().StringVar(&f.source, "source", "", `device arguments, e.g. "driver=rtlsdr,serial=00000001"`)
	root.Flags().IntVar(&f.sampleRate, "sample-rate", 0, "sample rate in Hz")
	root.Flags().IntVar(&f.centerFreq, "centerfreq", 0, "center frequency in Hz")
	root.Flags().IntVar(&f.freqOffset, "freq-offset", 0, "offset added to the center frequency when tuning, in Hz")
	root.Flags().Float64Var(&f.correction, "correction", 0, "frequency correction in ppm")
	root.Flags().Float64Var(&f.gain, "gain", 0, "overall gain in dB; automatic when unset")
	root.Flags().StringVar(&f.gainElements, "gain-elements", "", `per element gains, e.g. "LNA=20,VGA=10"`)
	root.Flags().StringVar(&f.antenna, "antenna", "", "antenna to select")
	root.Flags().StringVar(&f.deviceSettings, "device-settings", "", `vendor settings, e.g. "biastee=true"`)
	root.Flags().StringVar(&f.record, "record", "", "write the IQ stream to this WAV file")
	root.Flags().IntVar(&f.vizPort, "viz-port", 0, "serve the spectrum monitor on this port")

	probe := &cobra.Command{
		Use:   "probe [args]",
		Short: "List the devices the available drivers can see",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, &f); err != nil {
				return err
			}
			var filter string
			if len(args) == 1 {
				filter = args[0]
			}
			return probeDevices(filter)
		},
	}
	root.AddCommand(probe)

	err := root.Execute()
	if exitErr := hackrf.Exit(); exitErr != nil {
		log.Warn().Err(exitErr).Msg("hackrf library shutdown failed")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("exited program")
	}
}

// loadConfig reads the config file and applies any flags given on the
// command line on top of it.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("type") {
		cfg.Device.Type = f.inputType
	}
	if changed("source") {
		cfg.Device.Source = f.source
	}
	if changed("sample-rate") {
		cfg.Device.SampleRate = f.sampleRate
	}
	if changed("centerfreq") {
		cfg.Device.CenterFreq = f.centerFreq
	}
	if changed("freq-offset") {
		cfg.Device.FreqOffset = f.freqOffset
	}
	if changed("correction") {
		cfg.Device.Correction = f.correction
	}
	if changed("gain") {
		cfg.Device.Gain = f.gain
	}
	if changed("gain-elements") {
		cfg.Device.GainElements = f.gainElements
	}
	if changed("antenna") {
		cfg.Device.Antenna = f.antenna
	}
	if changed("device-settings") {
		cfg.Device.DeviceSettings = f.deviceSettings
	}
	if changed("record") {
		cfg.RecordLocation = f.record
	}
	if changed("viz-port") {
		cfg.VizServer.Port = f.vizPort
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	lvl, err := cfg.Level()
	if err != nil {
		return cfg, err
	}
	log.Logger = log.Logger.Level(lvl)
	return cfg, nil
}
