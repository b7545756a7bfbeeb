// Package recorder writes the downstream IQ stream to a stereo 16-bit WAV
// file, I on the left channel and Q on the right.
package recorder

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	bitDepth  = 16
	numChans  = 2
	pcmFormat = 1
)

type Recorder struct {
	mu      sync.Mutex
	f       *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	samples int64
	logger  zerolog.Logger
}

type Option func(r *Recorder)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func New(path string, sampleRate int, opts ...Option) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	r := &Recorder{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, bitDepth, numChans, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("path", path).Logger()
	r.logger.Info().Int("sample_rate", sampleRate).Msg("recording IQ")
	return r, nil
}

func toPCM(v float32) int {
	s := math.Round(float64(v) * math.MaxInt16)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int(s)
}

func (r *Recorder) Write(seg *types.SegmentComplex64) error {
	if seg == nil || len(seg.Data) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return os.ErrClosed
	}

	n := len(seg.Data) * numChans
	if cap(r.buf.Data) < n {
		r.buf.Data = make([]int, n)
	}
	r.buf.Data = r.buf.Data[:n]
	for i, c := range seg.Data {
		r.buf.Data[2*i] = toPCM(real(c))
		r.buf.Data[2*i+1] = toPCM(imag(c))
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.samples += int64(len(seg.Data))
	return nil
}

func (r *Recorder) Samples() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Close finalizes the WAV header and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	encErr := r.enc.Close()
	fileErr := r.f.Close()
	r.enc = nil
	r.logger.Info().Int64("samples", r.samples).Msg("recording closed")
	if encErr != nil {
		return fmt.Errorf("recorder: %w", encErr)
	}
	return fileErr
}
