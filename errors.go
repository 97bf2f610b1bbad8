package locktimer

import "errors"

var (
	// ErrInvalidConfig is returned for configuration values that cannot be applied.
	ErrInvalidConfig = errors.New("locktimer: invalid configuration")
	// ErrClosed is returned when operating on a closed controller.
	ErrClosed = errors.New("locktimer: controller closed")
)
