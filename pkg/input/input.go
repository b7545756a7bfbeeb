// Package input defines the contract every sample source implements and the
// state shared by all of them.
package input

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-input/pkg/block"
	"github.com/norasector/turbine-input/pkg/sample"
	"github.com/norasector/turbine-input/pkg/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Input is implemented by each backend.
//
// Init acquires and configures the device and must fill the Base fields
// describing the sample stream. Run is the capture loop; it owns the device
// until it returns and always signals Shutdown on the output connection.
// Destroy releases anything Run did not.
type Input interface {
	Init() error
	Run(token *Token) error
	Destroy()
	Common() *Base
}

// Factory creates an Input in its unconfigured state.
type Factory func(cfg Config, out *block.Connection, opts ...Option) Input

// Base is the backend independent part of an input. Backends embed a pointer
// to it.
type Base struct {
	Config Config
	Out    *block.Connection

	// Filled by Init.
	SampleFormat   sample.Kind
	FullScale      float32
	BytesPerSample int
	// MaxTU is the largest number of samples produced per read.
	MaxTU  int
	Device DeviceInfo

	Logger  zerolog.Logger
	Metrics api.WriteAPI

	running int32
	convert sample.Converter
}

// DeviceInfo is what the device reported about itself once configured.
type DeviceInfo struct {
	Driver     string   `json:"driver"`
	Hardware   string   `json:"hardware"`
	SampleRate float64  `json:"sample_rate"`
	Frequency  float64  `json:"frequency"`
	Antenna    string   `json:"antenna"`
	Antennas   []string `json:"antennas"`
	Gains      []string `json:"gains"`
}

type Option func(b *Base)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Base) {
		b.Logger = logger
	}
}

func WithMetrics(writeAPI api.WriteAPI) Option {
	return func(b *Base) {
		b.Metrics = writeAPI
	}
}

func NewBase(cfg Config, out *block.Connection, opts ...Option) *Base {
	b := &Base{
		Config:  cfg,
		Out:     out,
		Logger:  log.Logger,
		Metrics: &util.MockWriteAPI{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.Logger = b.Logger.With().Str("source", cfg.Source).Logger()
	return b
}

// SetSampleFormat records the negotiated format and binds the matching
// converter.
func (b *Base) SetSampleFormat(kind sample.Kind, fullScale float32, bytesPerSample int) {
	b.SampleFormat = kind
	b.FullScale = fullScale
	b.BytesPerSample = bytesPerSample
	b.convert = kind.Converter()
}

// ConvertSampleBuffer converts raw bytes in the negotiated format into out
// and returns the number of samples written.
func (b *Base) ConvertSampleBuffer(in []byte, out []complex64) int {
	if b.convert == nil {
		return 0
	}
	return b.convert(in, out, b.FullScale)
}

func (b *Base) Running() bool {
	return atomic.LoadInt32(&b.running) == 1
}

func (b *Base) SetRunning(running bool) {
	var v int32
	if running {
		v = 1
	}
	atomic.StoreInt32(&b.running, v)
}

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

const DefaultType = "soapysdr"

func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func Types() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	ret := make([]string, 0, len(factories))
	for name := range factories {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// New creates the input registered for cfg.Type.
func New(cfg Config, out *block.Connection, opts ...Option) (Input, error) {
	name := cfg.Type
	if name == "" {
		name = DefaultType
	}
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return f(cfg, out, opts...), nil
}
