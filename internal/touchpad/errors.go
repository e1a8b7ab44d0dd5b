package touchpad

import "errors"

var (
	// ErrSeatAssign indicates the udev seat could not be enumerated.
	ErrSeatAssign = errors.New("failed to assign seat")

	// ErrNoGestureDevice indicates no device on the seat supports multi-finger gestures.
	ErrNoGestureDevice = errors.New("no gesture capable device found")
)
