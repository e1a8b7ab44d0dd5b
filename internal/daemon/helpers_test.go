package daemon

import (
	"context"
	"sync"
	"syscall"
	"time"

	evdev "github.com/gvalkov/golang-evdev"

	"github.com/fyrsmithlabs/gestured/internal/gesture"
	"github.com/fyrsmithlabs/gestured/internal/touchpad"
)

// step is one wake of a fakeSource and the batches readable after it.
type step struct {
	wake    touchpad.Wake
	waitErr error
	batches [][]evdev.InputEvent
	readErr error
}

type fakeSource struct {
	mu        sync.Mutex
	steps     []step
	cur       step
	interrupt chan struct{}
	armed     []time.Duration
	closed    bool
	state     touchpad.PadState
	stateErr  error
}

func newFakeSource(steps ...step) *fakeSource {
	return &fakeSource{steps: steps, interrupt: make(chan struct{}, 1)}
}

func (f *fakeSource) Wait() (touchpad.Wake, error) {
	f.mu.Lock()
	if len(f.steps) > 0 {
		f.cur = f.steps[0]
		f.steps = f.steps[1:]
		f.mu.Unlock()
		return f.cur.wake, f.cur.waitErr
	}
	f.mu.Unlock()
	<-f.interrupt
	return touchpad.Wake{Interrupt: true}, nil
}

func (f *fakeSource) ReadPending() ([]evdev.InputEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cur.batches) > 0 {
		b := f.cur.batches[0]
		f.cur.batches = f.cur.batches[1:]
		return b, nil
	}
	return nil, f.cur.readErr
}

func (f *fakeSource) ArmTimer(after time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = append(f.armed, after)
	return nil
}

func (f *fakeSource) Interrupt() error {
	select {
	case f.interrupt <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeSource) Resolution() touchpad.Resolution {
	return touchpad.Resolution{}
}

func (f *fakeSource) State() (touchpad.PadState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.stateErr
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSource) armedTimers() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.armed...)
}

// openWith returns an Options.Open hook yielding src.
func openWith(src *fakeSource, seen *touchpad.DeviceInfo) func(touchpad.DeviceInfo) (Source, error) {
	return func(info touchpad.DeviceInfo) (Source, error) {
		if seen != nil {
			*seen = info
		}
		return src, nil
	}
}

type recordingHandler struct {
	mu  sync.Mutex
	evs []gesture.Event
	err error
}

func (h *recordingHandler) Handle(_ context.Context, ev gesture.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evs = append(h.evs, ev)
	return h.err
}

func (h *recordingHandler) events() []gesture.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]gesture.Event(nil), h.evs...)
}

func input(typ, code uint16, value int32) evdev.InputEvent {
	return evdev.InputEvent{Type: typ, Code: code, Value: value}
}

func dropped() evdev.InputEvent {
	return input(evdev.EV_SYN, evdev.SYN_DROPPED, 0)
}

func syn(at time.Time) evdev.InputEvent {
	ev := input(evdev.EV_SYN, evdev.SYN_REPORT, 0)
	ev.Time = syscall.NsecToTimeval(at.UnixNano())
	return ev
}

// threeFingers is one frame with three contacts 100 units apart starting at (x, y).
func threeFingers(at time.Time, x, y int32) []evdev.InputEvent {
	evs := []evdev.InputEvent{input(evdev.EV_KEY, evdev.BTN_TOOL_TRIPLETAP, 1)}
	for i := int32(0); i < 3; i++ {
		evs = append(evs,
			input(evdev.EV_ABS, evdev.ABS_MT_SLOT, i),
			input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 10+i),
			input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, x+100*i),
			input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, y),
		)
	}
	return append(evs, syn(at))
}

func liftThree(at time.Time) []evdev.InputEvent {
	evs := []evdev.InputEvent{input(evdev.EV_KEY, evdev.BTN_TOOL_TRIPLETAP, 0)}
	for i := int32(0); i < 3; i++ {
		evs = append(evs,
			input(evdev.EV_ABS, evdev.ABS_MT_SLOT, i),
			input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1),
		)
	}
	return append(evs, syn(at))
}

// swipeRight is a three finger swipe of 50 units to the right.
func swipeRight(t0 time.Time) []step {
	return []step{
		{wake: touchpad.Wake{Input: true}, batches: [][]evdev.InputEvent{
			threeFingers(t0, 100, 100),
			threeFingers(t0.Add(10*time.Millisecond), 150, 100),
		}},
		{wake: touchpad.Wake{Input: true}, batches: [][]evdev.InputEvent{
			liftThree(t0.Add(20 * time.Millisecond)),
		}},
	}
}

type staticSeat struct {
	devs []touchpad.DeviceInfo
	err  error
}

func (s staticSeat) Devices() ([]touchpad.DeviceInfo, error) {
	return s.devs, s.err
}
