package gesture

import "errors"

var (
	// ErrUnknownValue indicates a configuration enum spelling that is not recognized.
	ErrUnknownValue = errors.New("unknown value")

	// ErrInvalidBinding indicates a binding that cannot be matched against any gesture.
	ErrInvalidBinding = errors.New("invalid binding")
)
