package si4735

import "errors"

// Errors returned only when the device runs in strict mode. The wire
// traffic of a command that is actually sent is the same in both modes.
var (
	ErrNotPoweredUp     = errors.New("si4735: device is powered down")
	ErrAlreadyPoweredUp = errors.New("si4735: device is already powered up")
	ErrDeviceError      = errors.New("si4735: device reported an error")
)
