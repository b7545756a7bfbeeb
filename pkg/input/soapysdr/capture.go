package soapysdr

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/norasector/turbine-input/pkg/util"
)

const statsInterval = time.Second

// captureBuffers hold one MTU of raw samples and its converted form. They
// belong to the capture loop alone.
type captureBuffers struct {
	raw     []byte
	samples []complex64
}

func newCaptureBuffers(mtu, bytesPerSample int) *captureBuffers {
	return &captureBuffers{
		raw:     make([]byte, mtu*bytesPerSample),
		samples: make([]complex64, mtu),
	}
}

func (b *captureBuffers) release() {
	b.raw = nil
	b.samples = nil
}

type captureStats struct {
	reads      int
	readErrors int
	overflows  int
	samples    int
	lastReport time.Time
}

// Run is the capture loop. It returns when token is cancelled or when the
// stream cannot be activated, in which case token is cancelled so the rest
// of the pipeline winds down too. Teardown runs exactly once either way.
func (in *Input) Run(token *input.Token) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	bufs := newCaptureBuffers(in.MaxTU, in.BytesPerSample)
	in.SetRunning(true)
	defer in.shutdown(bufs)

	if err := in.stream.Activate(0, 0, 0); err != nil {
		in.Logger.Error().Err(err).Msg("failed to activate stream")
		token.Cancel()
		return fmt.Errorf("%s: %w: %v", in.Config.Source, input.ErrActivate, err)
	}

	settle := time.NewTimer(in.settle)
	select {
	case <-settle.C:
	case <-token.Done():
		settle.Stop()
	}

	ctx := token.Context()
	errLog := util.NewRateLimiter(time.Second)
	stats := captureStats{lastReport: time.Now()}

	for !token.Cancelled() {
		if now := time.Now(); now.Sub(stats.lastReport) >= statsInterval {
			in.reportStats(&stats, now)
		}

		n, _, _, err := in.stream.Read(bufs.raw, in.MaxTU, readTimeout)
		stats.reads++
		if err != nil {
			stats.readErrors++
			if errors.Is(err, sdr.ErrOverflow) {
				stats.overflows++
			}
			// First failure of a burst is a warning, the rest of the burst
			// goes to debug.
			if errLog.Allow(time.Now()) {
				in.Logger.Warn().
					Str("error", err.Error()).
					Int("suppressed", errLog.Suppressed).
					Msg("readStream failed")
				errLog.Reset()
			} else {
				in.Logger.Debug().Str("error", err.Error()).Msg("readStream failed")
			}
			continue
		}
		if n > in.MaxTU {
			n = in.MaxTU
		}

		converted := in.ConvertSampleBuffer(bufs.raw[:n*in.BytesPerSample], bufs.samples)
		if err := in.Out.Produce(ctx, bufs.samples[:converted]); err != nil {
			// Only cancellation interrupts a blocked push; the loop
			// condition picks it up.
			continue
		}
		stats.samples += converted
	}
	return nil
}

func (in *Input) reportStats(stats *captureStats, now time.Time) {
	util.WritePoint(in.Metrics, "input.capture",
		map[string]string{
			"source": in.Config.Source,
			"format": in.SampleFormat.String(),
		},
		map[string]interface{}{
			"reads":       stats.reads,
			"read_errors": stats.readErrors,
			"overflows":   stats.overflows,
			"samples":     stats.samples,
		})
	stats.reads, stats.readErrors, stats.overflows, stats.samples = 0, 0, 0, 0
	stats.lastReport = now
}

// shutdown tears the input down in a fixed order: deactivate the stream,
// close it, release the device, tell the consumer, mark the input stopped,
// drop the buffers.
func (in *Input) shutdown(bufs *captureBuffers) {
	in.shutdownOnce.Do(func() {
		in.Logger.Debug().Msg("shutdown ordered, signaling consumer shutdown")

		in.step("deactivate")
		if in.stream != nil {
			if err := in.stream.Deactivate(0, 0); err != nil {
				in.Logger.Warn().Err(err).Msg("deactivating stream failed")
			}
		}

		in.step("close")
		if in.stream != nil {
			if err := in.stream.Close(); err != nil {
				in.Logger.Warn().Err(err).Msg("closing stream failed")
			}
			in.stream = nil
		}

		in.step("release")
		if in.dev != nil {
			if err := in.dev.Close(); err != nil {
				in.Logger.Warn().Err(err).Msg("releasing device failed")
			}
			in.dev = nil
		}

		in.step("notify")
		in.Out.Shutdown()

		in.step("stop")
		in.SetRunning(false)

		in.step("free")
		bufs.release()
	})
}

func (in *Input) step(name string) {
	if in.trace != nil {
		in.trace(name)
	}
}
