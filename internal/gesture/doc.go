// Package gesture classifies touchpad gestures and dispatches configured reactions.
//
// # Overview
//
// The package holds the gesture engine of gestured:
//   - Direction classification of swipe motion into nine compass sectors
//   - A single live-gesture slot tracked across Begin/Update/End events
//   - Binding matching where every matching binding fires, in list order
//
// Bindings are loaded once from configuration and never mutated. Live state is
// owned by the Dispatcher and is only replaced when a new gesture begins.
//
// # Usage
//
//	d := gesture.NewDispatcher(bindings, exec, ptr, logger, m)
//	if err := d.Handle(ctx, gesture.Event{Kind: gesture.KindSwipe, Phase: gesture.PhaseBegin, Fingers: 3}); err != nil {
//	    return err
//	}
//
// # Drag Emulation
//
// A swipe binding whose direction is "any" drives the pointer instead of a
// command: button down on Begin, relative moves on Update scaled by the binding
// acceleration, and a delayed button up on End.
package gesture
