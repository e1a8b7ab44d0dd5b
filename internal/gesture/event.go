package gesture

import (
	"fmt"
	"time"
)

// Phase is the position of an event within a gesture session.
type Phase int

const (
	PhaseBegin Phase = iota
	PhaseUpdate
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseUpdate:
		return "update"
	case PhaseEnd:
		return "end"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Event is one gesture sub-event as reported by the device layer.
type Event struct {
	Kind    Kind
	Phase   Phase
	Fingers int

	// DX and DY are the centroid motion since the previous event.
	DX, DY float64
	// Scale is the pinch spread relative to the spread at Begin.
	Scale float64
	// AngleDelta is the rotation in degrees since the previous event.
	AngleDelta float64

	// Cancelled is only meaningful on End.
	Cancelled bool

	Time time.Time
}
