package touchpad

import (
	"math"
	"syscall"
	"time"

	evdev "github.com/gvalkov/golang-evdev"

	"github.com/fyrsmithlabs/gestured/internal/gesture"
)

const (
	// maxSlots bounds the multitouch slots tracked.
	maxSlots = 10
	// minFingers is the smallest finger count that starts a gesture.
	minFingers = 2
)

// Recognition defaults, in 1000 dpi units where applicable.
const (
	DefaultHoldTimeout    = 180 * time.Millisecond
	DefaultSwipeThreshold = 40.0
	DefaultPinchThreshold = 0.15
)

// RecognizerConfig tunes gesture recognition.
type RecognizerConfig struct {
	HoldTimeout    time.Duration
	SwipeThreshold float64
	// PinchThreshold is the relative spread change that makes a pinch.
	PinchThreshold float64
	Resolution     Resolution

	// Resync reads the pad's current touch state after the kernel dropped
	// events. Nil or failing means every finger is assumed lifted.
	Resync func() (PadState, error)
}

// Contact is the state of one multitouch slot.
type Contact struct {
	Active bool
	X, Y   int32
}

// PadState is the touch state of the pad at one instant.
type PadState struct {
	// Fingers is the finger count reported by the BTN_TOOL_* keys.
	Fingers  int
	Slot     int
	Contacts [maxSlots]Contact
}

func (c RecognizerConfig) withDefaults() RecognizerConfig {
	if c.HoldTimeout <= 0 {
		c.HoldTimeout = DefaultHoldTimeout
	}
	if c.SwipeThreshold <= 0 {
		c.SwipeThreshold = DefaultSwipeThreshold
	}
	if c.PinchThreshold <= 0 {
		c.PinchThreshold = DefaultPinchThreshold
	}
	return c
}

type recState int

const (
	stateIdle recState = iota
	statePending
	stateSwipe
	statePinch
	stateHold
	// stateLift waits for every finger to leave the pad.
	stateLift
)

// point is a centroid in 1000 dpi units.
type point struct {
	x, y float64
}

// Recognizer folds evdev frames into gesture events. It is not safe for
// concurrent use.
type Recognizer struct {
	cfg    RecognizerConfig
	fx, fy float64

	slots   [maxSlots]Contact
	slot    int
	tools   [6]bool
	dropped bool

	state   recState
	fingers int
	since   time.Time
	origin  point
	last    point
	spread0 float64
	scale   float64
}

// NewRecognizer creates a recognizer. Zero config fields take defaults.
func NewRecognizer(cfg RecognizerConfig) *Recognizer {
	cfg = cfg.withDefaults()
	fx, fy := cfg.Resolution.scale()
	return &Recognizer{cfg: cfg, fx: fx, fy: fy}
}

// Feed consumes one evdev event and returns the gesture events completed by it.
// Events only come out on SYN_REPORT. Everything after a SYN_DROPPED up to
// and including the next SYN_REPORT is discarded, then the touch state is
// resynchronised and evaluated as a frame.
func (r *Recognizer) Feed(ev evdev.InputEvent) []gesture.Event {
	switch ev.Type {
	case evdev.EV_SYN:
		switch ev.Code {
		case evdev.SYN_DROPPED:
			r.dropped = true
		case evdev.SYN_REPORT:
			if r.dropped {
				r.dropped = false
				r.resync()
			}
			return r.frame(eventTime(ev.Time))
		}
	case evdev.EV_KEY:
		if r.dropped {
			return nil
		}
		if n := toolFingers(int(ev.Code)); n > 0 {
			r.tools[n] = ev.Value != 0
		}
	case evdev.EV_ABS:
		if r.dropped {
			return nil
		}
		r.abs(int(ev.Code), ev.Value)
	}
	return nil
}

// Deadline reports when a pending gesture turns into a hold.
func (r *Recognizer) Deadline() (time.Time, bool) {
	if r.state != statePending {
		return time.Time{}, false
	}
	return r.since.Add(r.cfg.HoldTimeout), true
}

// Tick promotes a pending gesture to a hold once the timeout has elapsed.
func (r *Recognizer) Tick(now time.Time) []gesture.Event {
	if r.state != statePending || now.Sub(r.since) < r.cfg.HoldTimeout {
		return nil
	}
	return []gesture.Event{r.beginHold(now)}
}

func (r *Recognizer) abs(code int, value int32) {
	switch code {
	case evdev.ABS_MT_SLOT:
		r.slot = int(value)
	case evdev.ABS_MT_TRACKING_ID:
		if c := r.current(); c != nil {
			c.Active = value >= 0
		}
	case evdev.ABS_MT_POSITION_X:
		if c := r.current(); c != nil {
			c.X = value
		}
	case evdev.ABS_MT_POSITION_Y:
		if c := r.current(); c != nil {
			c.Y = value
		}
	}
}

// resync replaces key and slot state with what the pad reports now. A lift
// lost in the dropped window then ends the active gesture.
func (r *Recognizer) resync() {
	r.tools = [6]bool{}
	r.slots = [maxSlots]Contact{}
	if r.cfg.Resync == nil {
		return
	}
	st, err := r.cfg.Resync()
	if err != nil {
		return
	}
	if st.Fingers > 0 && st.Fingers < len(r.tools) {
		r.tools[st.Fingers] = true
	}
	r.slot = st.Slot
	r.slots = st.Contacts
}

func (r *Recognizer) current() *Contact {
	if r.slot < 0 || r.slot >= maxSlots {
		return nil
	}
	return &r.slots[r.slot]
}

func (r *Recognizer) fingerCount() int {
	for n := len(r.tools) - 1; n > 0; n-- {
		if r.tools[n] {
			return n
		}
	}
	return 0
}

// geometry returns the centroid and mean distance from it of the active contacts.
func (r *Recognizer) geometry() (point, float64, bool) {
	var c point
	n := 0
	for _, s := range r.slots {
		if !s.Active {
			continue
		}
		c.x += float64(s.X) * r.fx
		c.y += float64(s.Y) * r.fy
		n++
	}
	if n == 0 {
		return point{}, 0, false
	}
	c.x /= float64(n)
	c.y /= float64(n)

	var spread float64
	for _, s := range r.slots {
		if !s.Active {
			continue
		}
		spread += math.Hypot(float64(s.X)*r.fx-c.x, float64(s.Y)*r.fy-c.y)
	}
	return c, spread / float64(n), true
}

func (r *Recognizer) frame(t time.Time) []gesture.Event {
	n := r.fingerCount()
	center, spread, ok := r.geometry()

	switch r.state {
	case stateIdle:
		if n >= minFingers && ok {
			r.pend(n, t, center, spread)
		}
		return nil

	case stateLift:
		if n == 0 {
			r.state = stateIdle
		}
		return nil

	case statePending:
		if n != r.fingers {
			if n >= minFingers && ok {
				r.pend(n, t, center, spread)
			} else {
				r.state = stateIdle
			}
			return nil
		}
		if !ok {
			return nil
		}
		return r.classify(t, center, spread)
	}

	// An active swipe, pinch or hold.
	if n != r.fingers {
		return r.fingersChanged(n, t, center, spread, ok)
	}
	if !ok {
		return nil
	}

	switch r.state {
	case stateSwipe:
		dx, dy := center.x-r.last.x, center.y-r.last.y
		r.last = center
		if dx == 0 && dy == 0 {
			return nil
		}
		return []gesture.Event{r.event(gesture.KindSwipe, gesture.PhaseUpdate, t, func(e *gesture.Event) {
			e.DX, e.DY = dx, dy
		})}

	case statePinch:
		dx, dy := center.x-r.last.x, center.y-r.last.y
		r.last = center
		scale := spread / r.spread0
		if scale == r.scale && dx == 0 && dy == 0 {
			return nil
		}
		r.scale = scale
		return []gesture.Event{r.event(gesture.KindPinch, gesture.PhaseUpdate, t, func(e *gesture.Event) {
			e.DX, e.DY, e.Scale = dx, dy, scale
		})}

	case stateHold:
		if dist(center, r.origin) <= r.cfg.SwipeThreshold {
			return nil
		}
		// Moving fingers break the hold and may start a swipe or pinch.
		end := r.event(gesture.KindHold, gesture.PhaseEnd, t, func(e *gesture.Event) { e.Cancelled = true })
		r.pend(n, t, center, spread)
		return []gesture.Event{end}
	}
	return nil
}

// classify decides what a pending gesture becomes, if anything yet.
func (r *Recognizer) classify(t time.Time, center point, spread float64) []gesture.Event {
	if r.spread0 > 0 && math.Abs(spread/r.spread0-1) > r.cfg.PinchThreshold {
		r.state = statePinch
		r.last = r.origin
		r.scale = 1
		begin := r.event(gesture.KindPinch, gesture.PhaseBegin, t, nil)
		return append([]gesture.Event{begin}, r.frame(t)...)
	}
	if dist(center, r.origin) > r.cfg.SwipeThreshold {
		r.state = stateSwipe
		r.last = r.origin
		begin := r.event(gesture.KindSwipe, gesture.PhaseBegin, t, nil)
		return append([]gesture.Event{begin}, r.frame(t)...)
	}
	if t.Sub(r.since) >= r.cfg.HoldTimeout {
		return []gesture.Event{r.beginHold(t)}
	}
	return nil
}

// fingersChanged ends the active gesture. Fewer fingers end it normally and
// wait for the pad to clear; more fingers cancel it and start over.
func (r *Recognizer) fingersChanged(n int, t time.Time, center point, spread float64, ok bool) []gesture.Event {
	kind := r.kind()
	if n > r.fingers {
		end := r.event(kind, gesture.PhaseEnd, t, func(e *gesture.Event) { e.Cancelled = true })
		if ok {
			r.pend(n, t, center, spread)
		} else {
			r.state = stateLift
		}
		return []gesture.Event{end}
	}

	end := r.event(kind, gesture.PhaseEnd, t, nil)
	if n == 0 {
		r.state = stateIdle
	} else {
		r.state = stateLift
	}
	return []gesture.Event{end}
}

func (r *Recognizer) beginHold(t time.Time) gesture.Event {
	r.state = stateHold
	return r.event(gesture.KindHold, gesture.PhaseBegin, t, nil)
}

func (r *Recognizer) pend(n int, t time.Time, center point, spread float64) {
	r.state = statePending
	r.fingers = n
	r.since = t
	r.origin = center
	r.last = center
	r.spread0 = spread
	r.scale = 1
}

func (r *Recognizer) kind() gesture.Kind {
	switch r.state {
	case statePinch:
		return gesture.KindPinch
	case stateHold:
		return gesture.KindHold
	default:
		return gesture.KindSwipe
	}
}

func (r *Recognizer) event(k gesture.Kind, p gesture.Phase, t time.Time, fill func(*gesture.Event)) gesture.Event {
	e := gesture.Event{Kind: k, Phase: p, Fingers: r.fingers, Time: t}
	if fill != nil {
		fill(&e)
	}
	return e
}

func dist(a, b point) float64 {
	return math.Hypot(a.x-b.x, a.y-b.y)
}

func toolFingers(code int) int {
	switch code {
	case evdev.BTN_TOOL_FINGER:
		return 1
	case evdev.BTN_TOOL_DOUBLETAP:
		return 2
	case evdev.BTN_TOOL_TRIPLETAP:
		return 3
	case evdev.BTN_TOOL_QUADTAP:
		return 4
	case evdev.BTN_TOOL_QUINTTAP:
		return 5
	}
	return 0
}

func eventTime(tv syscall.Timeval) time.Time {
	return time.Unix(int64(tv.Sec), int64(tv.Usec)*int64(time.Microsecond))
}
