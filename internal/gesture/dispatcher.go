package gesture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/logging"
	"github.com/fyrsmithlabs/gestured/internal/metrics"
)

// PrimaryButton is the pointer button used for drag emulation (X11 numbering).
const PrimaryButton = 1

// Executor runs a command template with the motion parameters of an event.
type Executor interface {
	Execute(ctx context.Context, template string, dx, dy, scale float64) error
}

// Pointer drives a synthetic pointer. Calls are fire-and-continue.
type Pointer interface {
	ButtonDown(button int)
	ButtonUpAfter(button int, delay time.Duration)
	MoveRelative(dx, dy int32)
}

// Dispatcher matches gesture events against the configured bindings and
// invokes every binding that matches. It is not safe for concurrent use; the
// event loop owns it.
type Dispatcher struct {
	bindings Bindings
	exec     Executor
	pointer  Pointer
	logger   *logging.Logger
	metrics  *metrics.Metrics

	live      LiveState
	sessionID func() string
}

// NewDispatcher creates a dispatcher over an immutable binding list.
// logger and m may be nil.
func NewDispatcher(bindings Bindings, exec Executor, pointer Pointer, logger *logging.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		bindings:  bindings,
		exec:      exec,
		pointer:   pointer,
		logger:    logger.Named("dispatch"),
		metrics:   m,
		sessionID: uuid.NewString,
	}
}

// Live returns a copy of the live gesture slot.
func (d *Dispatcher) Live() LiveState {
	return d.live
}

// Handle routes one gesture event. A returned error comes from the command
// executor and is fatal to the event loop.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	d.metrics.RecordEvent(ev.Kind.String(), ev.Phase.String())

	switch ev.Kind {
	case KindHold:
		return d.handleHold(ctx, ev)
	case KindPinch:
		return d.handlePinch(ctx, ev)
	case KindSwipe:
		return d.handleSwipe(ctx, ev)
	default:
		d.logger.Trace(ctx, "ignoring gesture event", zap.Stringer("kind", ev.Kind), zap.Stringer("phase", ev.Phase))
		return nil
	}
}

func (d *Dispatcher) begin(ctx context.Context, state LiveState) context.Context {
	d.live = state
	d.metrics.SetLiveFingers(state.Fingers)
	ctx = logging.WithSessionID(ctx, state.SessionID)
	d.logger.Debug(ctx, "gesture began",
		zap.Stringer("kind", state.Kind),
		zap.Int("fingers", state.Fingers))
	return ctx
}

// session returns ctx tagged with the live session, or false when the live
// slot does not hold a gesture of kind k.
func (d *Dispatcher) session(ctx context.Context, k Kind) (context.Context, bool) {
	if !d.live.is(k) {
		d.logger.Trace(ctx, "no live gesture for event", zap.Stringer("kind", k))
		return ctx, false
	}
	return logging.WithSessionID(ctx, d.live.SessionID), true
}

func (d *Dispatcher) handleHold(ctx context.Context, ev Event) error {
	switch ev.Phase {
	case PhaseBegin:
		d.begin(ctx, newHoldState(ev.Fingers, d.sessionID()))
	case PhaseEnd:
		ctx, ok := d.session(ctx, KindHold)
		if !ok {
			return nil
		}
		for _, b := range d.bindings {
			if b.Kind != KindHold || b.Fingers != d.live.Fingers {
				continue
			}
			if err := d.run(ctx, b, PhaseEnd, b.Action, 0, 0, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) handlePinch(ctx context.Context, ev Event) error {
	switch ev.Phase {
	case PhaseBegin:
		ctx = d.begin(ctx, newPinchState(ev.Fingers, InOutAny, d.sessionID()))
		for _, b := range d.bindings {
			if !d.pinchMatches(b, d.live.InOut) {
				continue
			}
			if err := d.run(ctx, b, PhaseBegin, b.Start, 0, 0, 0); err != nil {
				return err
			}
		}

	case PhaseUpdate:
		ctx, ok := d.session(ctx, KindPinch)
		if !ok {
			return nil
		}
		dir := PinchDirection(ev.Scale)
		for _, b := range d.bindings {
			if !d.pinchMatches(b, dir) {
				continue
			}
			if err := d.run(ctx, b, PhaseUpdate, b.Update, 0, 0, ev.Scale); err != nil {
				return err
			}
		}
		d.live = newPinchState(d.live.Fingers, dir, d.live.SessionID)

	case PhaseEnd:
		ctx, ok := d.session(ctx, KindPinch)
		if !ok {
			return nil
		}
		for _, b := range d.bindings {
			if !d.pinchMatches(b, d.live.InOut) {
				continue
			}
			if err := d.run(ctx, b, PhaseEnd, b.End, 0, 0, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) pinchMatches(b Binding, dir InOut) bool {
	return b.Kind == KindPinch &&
		b.Fingers == d.live.Fingers &&
		(b.InOut == dir || b.InOut == InOutAny)
}

func (d *Dispatcher) handleSwipe(ctx context.Context, ev Event) error {
	switch ev.Phase {
	case PhaseBegin:
		ctx = d.begin(ctx, newSwipeState(ev.Fingers, DirectionAny, d.sessionID()))
		for _, b := range d.bindings {
			if b.Kind != KindSwipe || b.Fingers != d.live.Fingers {
				continue
			}
			if b.IsDrag() {
				d.press(ctx)
			} else if b.Direction == d.live.Direction {
				// Live direction is Any at Begin, so this never fires.
				if err := d.run(ctx, b, PhaseBegin, b.Start, 0, 0, 0); err != nil {
					return err
				}
			}
		}

	case PhaseUpdate:
		ctx, ok := d.session(ctx, KindSwipe)
		if !ok {
			return nil
		}
		dir := Classify(ev.DX, ev.DY)
		for _, b := range d.bindings {
			if b.Kind != KindSwipe || b.Fingers != d.live.Fingers {
				continue
			}
			if b.IsDrag() {
				d.move(ctx, ev.DX*b.Acceleration, ev.DY*b.Acceleration)
			} else if b.Direction == dir {
				if err := d.run(ctx, b, PhaseUpdate, b.Update, ev.DX, ev.DY, 0); err != nil {
					return err
				}
			}
		}
		d.live = newSwipeState(d.live.Fingers, dir, d.live.SessionID)

	case PhaseEnd:
		ctx, ok := d.session(ctx, KindSwipe)
		if !ok {
			return nil
		}
		if ev.Cancelled {
			d.logger.Debug(ctx, "swipe cancelled", zap.Int("fingers", d.live.Fingers))
			return nil
		}
		for _, b := range d.bindings {
			if b.Kind != KindSwipe || b.Fingers != d.live.Fingers {
				continue
			}
			if b.IsDrag() {
				d.release(ctx, b.MouseUpDelay)
			} else if b.Direction == d.live.Direction {
				if err := d.run(ctx, b, PhaseEnd, b.End, 0, 0, 0); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, b Binding, phase Phase, template string, dx, dy, scale float64) error {
	d.logger.Debug(ctx, "running gesture command",
		zap.Stringer("kind", b.Kind),
		zap.Stringer("phase", phase),
		zap.Int("fingers", b.Fingers),
		zap.String("command", template))

	if err := d.exec.Execute(ctx, template, dx, dy, scale); err != nil {
		d.metrics.RecordDispatchError(b.Kind.String())
		return fmt.Errorf("%s %s command %q: %w", b.Kind, phase, template, err)
	}
	d.metrics.RecordDispatch(b.Kind.String(), phase.String(), "command")
	return nil
}

func (d *Dispatcher) press(ctx context.Context) {
	d.logger.Debug(ctx, "drag started", zap.Int("button", PrimaryButton))
	d.pointer.ButtonDown(PrimaryButton)
	d.metrics.RecordDispatch(KindSwipe.String(), PhaseBegin.String(), "pointer")
}

func (d *Dispatcher) move(ctx context.Context, dx, dy float64) {
	d.logger.Trace(ctx, "drag moved", zap.Float64("dx", dx), zap.Float64("dy", dy))
	d.pointer.MoveRelative(int32(dx), int32(dy))
	d.metrics.RecordDispatch(KindSwipe.String(), PhaseUpdate.String(), "pointer")
}

func (d *Dispatcher) release(ctx context.Context, delay time.Duration) {
	d.logger.Debug(ctx, "drag released", zap.Int("button", PrimaryButton), zap.Duration("delay", delay))
	d.pointer.ButtonUpAfter(PrimaryButton, delay)
	d.metrics.RecordDispatch(KindSwipe.String(), PhaseEnd.String(), "pointer")
}
