package sdr

import (
	"errors"
	"fmt"
)

// ErrorCode is a transport level failure reported by a stream call.
type ErrorCode int

const (
	ErrTimeout      ErrorCode = -1
	ErrStreamError  ErrorCode = -2
	ErrCorruption   ErrorCode = -3
	ErrOverflow     ErrorCode = -4
	ErrNotSupported ErrorCode = -5
	ErrTimeError    ErrorCode = -6
	ErrUnderflow    ErrorCode = -7
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrTimeout:
		return "TIMEOUT"
	case ErrStreamError:
		return "STREAM_ERROR"
	case ErrCorruption:
		return "CORRUPTION"
	case ErrOverflow:
		return "OVERFLOW"
	case ErrNotSupported:
		return "NOT_SUPPORTED"
	case ErrTimeError:
		return "TIME_ERROR"
	case ErrUnderflow:
		return "UNDERFLOW"
	}
	return fmt.Sprintf("UNKNOWN_ERROR (%d)", int(e))
}

var (
	ErrNoDevice      = errors.New("no matching device found")
	ErrUnknownDriver = errors.New("unknown driver")
	ErrNotImpl       = errors.New("not supported by this device")
	ErrClosed        = errors.New("device closed")
)
