package input

import (
	"errors"
	"fmt"
)

var (
	ErrConfig         = errors.New("invalid configuration")
	ErrNoSampleFormat = errors.New("no usable sample format")
	ErrActivate       = errors.New("stream activation failed")
	ErrUnknownType    = errors.New("unknown input type")
)

// InitError is returned by Init for every fatal setup condition. Err holds
// the device's own error or one of the sentinels above.
type InitError struct {
	Source string
	Op     string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
