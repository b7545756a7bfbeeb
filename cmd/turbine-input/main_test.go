package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norasector/turbine-input/pkg/block"
	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/recorder"
	"github.com/norasector/turbine-input/pkg/sample"
	"github.com/norasector/turbine-input/pkg/util"
	"github.com/norasector/turbine-input/pkg/viz"
)

func newFlagCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&f.source, "source", "", "")
	cmd.Flags().Float64Var(&f.gain, "gain", 0, "")
	cmd.Flags().IntVar(&f.centerFreq, "centerfreq", 0, "")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "")
	return cmd
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  source: driver=rtlsdr
  sample_rate: 2400000
  center_freq: 851000000
  gain: 30
`), 0o644))

	var f flags
	f.configFile = path
	cmd := newFlagCommand(&f)
	require.NoError(t, cmd.Flags().Parse([]string{"--source", "driver=hackrf", "--log-level", "warn"}))

	cfg, err := loadConfig(cmd, &f)
	require.NoError(t, err)
	assert.Equal(t, "driver=hackrf", cfg.Device.Source)
	assert.Equal(t, 30.0, cfg.Device.Gain)
	assert.Equal(t, 851000000, cfg.Device.CenterFreq)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigGainDefaultsToAuto(t *testing.T) {
	var f flags
	cmd := newFlagCommand(&f)
	require.NoError(t, cmd.Flags().Parse([]string{"--source", "driver=file", "--centerfreq", "100000000"}))

	cfg, err := loadConfig(cmd, &f)
	require.NoError(t, err)
	assert.Equal(t, input.AutoGain, cfg.Device.Gain)
	assert.Equal(t, 100000000, cfg.Device.CenterFreq)

	require.NoError(t, cmd.Flags().Parse([]string{"--gain", "12.5"}))
	cfg, err = loadConfig(cmd, &f)
	require.NoError(t, err)
	assert.Equal(t, 12.5, cfg.Device.Gain)
}

func TestLoadConfigBadLevel(t *testing.T) {
	var f flags
	cmd := newFlagCommand(&f)
	require.NoError(t, cmd.Flags().Parse([]string{"--log-level", "loud"}))
	_, err := loadConfig(cmd, &f)
	assert.ErrorIs(t, err, input.ErrConfig)
}

func TestConsumeDrainsUntilShutdown(t *testing.T) {
	conn := block.NewConnection(8)
	ctx := context.Background()
	require.NoError(t, conn.Produce(ctx, []complex64{1, 2, 3}))
	require.NoError(t, conn.Produce(ctx, []complex64{4}))
	conn.Shutdown()

	rec, err := recorder.New(filepath.Join(t.TempDir(), "iq.wav"), 1000, recorder.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer rec.Close()
	spectrum := viz.NewSpectrum("test", 4, 1000, 0)

	consume(conn, rec, spectrum, &util.MockWriteAPI{}, "driver=file", zerolog.Nop())

	assert.Equal(t, int64(4), rec.Samples())
}

func TestStatusReportsDevice(t *testing.T) {
	base := input.NewBase(input.Config{Source: "driver=rtlsdr", SampleRate: 2400000, CenterFreq: 851000000, FreqOffset: 100},
		block.NewConnection(1), input.WithLogger(zerolog.Nop()))
	base.SetSampleFormat(sample.CU8, 128, 2)
	base.MaxTU = 131072
	base.Device = input.DeviceInfo{Driver: "rtlsdr", Hardware: "Generic RTL2832U", SampleRate: 2400000, Frequency: 851000100}
	base.SetRunning(true)

	st := newStatus(base)
	assert.Equal(t, "CU8", st.Format)
	assert.Equal(t, 851000100, st.TunedFreq)
	assert.Equal(t, 131072, st.MTU)
	assert.True(t, st.Running)
	assert.Equal(t, "Generic RTL2832U", st.Device.Hardware)
	assert.Equal(t, 851000100.0, st.Device.Frequency)
}
