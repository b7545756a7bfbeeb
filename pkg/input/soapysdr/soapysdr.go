// Package soapysdr is the input backend for devices reached through the sdr
// driver registry. It opens the device named by the configured source,
// negotiates a sample format, and streams converted samples downstream from
// a dedicated capture loop.
package soapysdr

import (
	"sync"
	"time"

	"github.com/norasector/turbine-input/pkg/block"
	"github.com/norasector/turbine-input/pkg/input"
	"github.com/norasector/turbine-input/pkg/sdr"
)

const (
	Name = "soapysdr"

	readTimeout = time.Second
	settleDelay = 100 * time.Millisecond
	// channel is the only channel this backend receives on.
	channel = 0
)

// Opener opens a device from its argument string.
type Opener func(args string) (sdr.Device, error)

// Enumerator lists the devices visible to the driver layer.
type Enumerator func(args sdr.Kwargs) ([]sdr.Kwargs, error)

func init() {
	input.Register(Name, New)
}

type Input struct {
	*input.Base

	open      Opener
	enumerate Enumerator

	dev    sdr.Device
	stream sdr.Stream

	settle       time.Duration
	shutdownOnce sync.Once
	// trace observes each shutdown step by name.
	trace func(step string)
}

// New is the input.Factory for this backend.
func New(cfg input.Config, out *block.Connection, opts ...input.Option) input.Input {
	return NewWithOpener(sdr.Make, sdr.Enumerate, cfg, out, opts...)
}

func NewWithOpener(open Opener, enumerate Enumerator, cfg input.Config, out *block.Connection, opts ...input.Option) *Input {
	return &Input{
		Base:      input.NewBase(cfg, out, opts...),
		open:      open,
		enumerate: enumerate,
		settle:    settleDelay,
	}
}

func (in *Input) Common() *input.Base {
	return in.Base
}

// Destroy releases the device if the capture loop never ran.
func (in *Input) Destroy() {
	in.release()
}

func (in *Input) release() {
	if in.stream != nil {
		if err := in.stream.Close(); err != nil {
			in.Logger.Warn().Err(err).Msg("closing stream failed")
		}
		in.stream = nil
	}
	if in.dev != nil {
		if err := in.dev.Close(); err != nil {
			in.Logger.Warn().Err(err).Msg("releasing device failed")
		}
		in.dev = nil
	}
}
