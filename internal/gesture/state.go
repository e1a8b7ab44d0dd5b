package gesture

import "time"

// LiveState is the single in-progress gesture. Begin replaces it wholesale;
// End reads it but never clears it.
type LiveState struct {
	Active  bool
	Kind    Kind
	Fingers int

	Direction Direction
	InOut     InOut

	Acceleration float64
	MouseUpDelay time.Duration

	// SessionID correlates the log lines of one gesture session.
	SessionID string
}

func newSwipeState(fingers int, dir Direction, session string) LiveState {
	return LiveState{
		Active:       true,
		Kind:         KindSwipe,
		Fingers:      fingers,
		Direction:    dir,
		Acceleration: DefaultAcceleration,
		MouseUpDelay: DefaultMouseUpDelay,
		SessionID:    session,
	}
}

func newPinchState(fingers int, dir InOut, session string) LiveState {
	return LiveState{
		Active:    true,
		Kind:      KindPinch,
		Fingers:   fingers,
		InOut:     dir,
		SessionID: session,
	}
}

func newHoldState(fingers int, session string) LiveState {
	return LiveState{
		Active:    true,
		Kind:      KindHold,
		Fingers:   fingers,
		SessionID: session,
	}
}

// is reports whether the live slot holds a gesture of kind k.
func (s LiveState) is(k Kind) bool {
	return s.Active && s.Kind == k
}
