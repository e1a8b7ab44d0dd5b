package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/gestured/internal/gesture"
	"github.com/fyrsmithlabs/gestured/internal/logging"
	"github.com/fyrsmithlabs/gestured/internal/touchpad"
)

var t0 = time.Unix(1700000000, 0)

func kinds(evs []gesture.Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind.String()+"/"+e.Phase.String())
	}
	return out
}

func runLoop(t *testing.T, l *Loop) (cancel func(), errCh <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	go func() { ch <- l.Run(ctx) }()
	return cancelFn, ch
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not return")
		return nil
	}
}

func TestLoop_InitFindsSeatDevice(t *testing.T) {
	src := newFakeSource()
	var opened touchpad.DeviceInfo
	l := NewLoop(&recordingHandler{}, Options{
		Enumerator: staticSeat{devs: []touchpad.DeviceInfo{
			{Devnode: "/dev/input/event3", Touchpad: false},
			{Devnode: "/dev/input/event7", Name: "SYNA", Touchpad: true},
		}},
		Capability: func(string) (bool, error) { return true, nil },
		Open:       openWith(src, &opened),
	}, logging.NewTestLogger().Logger)

	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, "/dev/input/event7", opened.Devnode)
	assert.Equal(t, "SYNA", l.Device().Name)

	require.NoError(t, l.Close())
	assert.True(t, src.isClosed())
	require.NoError(t, l.Close())
}

func TestLoop_InitDevicePathSkipsProbe(t *testing.T) {
	var opened touchpad.DeviceInfo
	l := NewLoop(&recordingHandler{}, Options{
		DevicePath: "/dev/input/event12",
		Enumerator: staticSeat{err: touchpad.ErrSeatAssign},
		Open:       openWith(newFakeSource(), &opened),
	}, nil)

	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, "/dev/input/event12", opened.Devnode)
}

func TestLoop_InitErrors(t *testing.T) {
	openErr := errors.New("permission denied")
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{
			name: "seat assignment",
			opts: Options{Enumerator: staticSeat{err: touchpad.ErrSeatAssign}},
			want: touchpad.ErrSeatAssign,
		},
		{
			name: "no gesture device",
			opts: Options{
				Enumerator: staticSeat{devs: []touchpad.DeviceInfo{{Devnode: "/dev/input/event1", Touchpad: true}}},
				Capability: func(string) (bool, error) { return false, nil },
			},
			want: touchpad.ErrNoGestureDevice,
		},
		{
			name: "open failure",
			opts: Options{
				DevicePath: "/dev/input/event4",
				Open:       func(touchpad.DeviceInfo) (Source, error) { return nil, openErr },
			},
			want: openErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoop(&recordingHandler{}, tt.opts, nil)
			err := l.Init(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoop_RunBeforeInit(t *testing.T) {
	l := NewLoop(&recordingHandler{}, Options{}, nil)
	assert.Error(t, l.Run(context.Background()))
}

func TestLoop_DispatchesSwipe(t *testing.T) {
	src := newFakeSource(swipeRight(t0)...)
	h := &recordingHandler{}
	l := NewLoop(h, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil)}, nil)
	require.NoError(t, l.Init(context.Background()))

	cancel, errCh := runLoop(t, l)
	require.Eventually(t, func() bool { return len(h.events()) == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitErr(t, errCh))

	evs := h.events()
	assert.Equal(t, []string{"swipe/begin", "swipe/update", "swipe/end"}, kinds(evs))
	assert.InDelta(t, 50, evs[1].DX, 1e-9)
	assert.False(t, evs[2].Cancelled)
}

func TestLoop_HoldFromTimer(t *testing.T) {
	src := newFakeSource(
		step{wake: touchpad.Wake{Input: true}, batches: [][]evdev.InputEvent{threeFingers(t0, 100, 100)}},
		step{wake: touchpad.Wake{Timer: true}},
	)
	var mu sync.Mutex
	clock := []time.Time{t0, t0.Add(200 * time.Millisecond)}
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}
		return n
	}

	h := &recordingHandler{}
	l := NewLoop(h, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil), Now: now}, nil)
	require.NoError(t, l.Init(context.Background()))

	cancel, errCh := runLoop(t, l)
	require.Eventually(t, func() bool { return len(h.events()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitErr(t, errCh))

	assert.Equal(t, []string{"hold/begin"}, kinds(h.events()))
	assert.Equal(t, 3, h.events()[0].Fingers)
	assert.Equal(t, []time.Duration{touchpad.DefaultHoldTimeout, 0}, src.armedTimers())
}

func TestLoop_ReadErrorIsFatal(t *testing.T) {
	src := newFakeSource(step{
		wake:    touchpad.Wake{Input: true},
		batches: [][]evdev.InputEvent{threeFingers(t0, 100, 100)},
		readErr: errors.New("read /dev/input/event7: no such device"),
	})
	l := NewLoop(&recordingHandler{}, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil)}, nil)
	require.NoError(t, l.Init(context.Background()))

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, ErrDeviceRead)
	assert.Contains(t, err.Error(), "no such device")
}

func TestLoop_WaitErrorIsFatal(t *testing.T) {
	src := newFakeSource(step{waitErr: errors.New("poll: bad file descriptor")})
	l := NewLoop(&recordingHandler{}, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil)}, nil)
	require.NoError(t, l.Init(context.Background()))

	assert.ErrorIs(t, l.Run(context.Background()), ErrDeviceRead)
}

func TestLoop_HandlerErrorIsFatal(t *testing.T) {
	boom := errors.New("hold end command \"x\": exit status 127")
	src := newFakeSource(swipeRight(t0)...)
	h := &recordingHandler{err: boom}
	l := NewLoop(h, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil)}, nil)
	require.NoError(t, l.Init(context.Background()))

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, h.events(), 1)
}

func TestLoop_CancelledBeforeRun(t *testing.T) {
	src := newFakeSource(swipeRight(t0)...)
	h := &recordingHandler{}
	l := NewLoop(h, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil)}, nil)
	require.NoError(t, l.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Run(ctx))
	assert.Empty(t, h.events())
}

func TestLoop_DroppedLiftEndsSwipe(t *testing.T) {
	t1 := t0.Add(10 * time.Millisecond)
	lost := append([]evdev.InputEvent{dropped()}, liftThree(t1.Add(10*time.Millisecond))...)
	src := newFakeSource(
		step{wake: touchpad.Wake{Input: true}, batches: [][]evdev.InputEvent{
			threeFingers(t0, 100, 100),
			threeFingers(t1, 150, 100),
		}},
		step{wake: touchpad.Wake{Input: true}, batches: [][]evdev.InputEvent{lost}},
	)
	src.stateErr = errors.New("inappropriate ioctl for device")

	tl := logging.NewTestLogger()
	h := &recordingHandler{}
	l := NewLoop(h, Options{DevicePath: "/dev/input/event7", Open: openWith(src, nil)}, tl.Logger)
	require.NoError(t, l.Init(context.Background()))

	cancel, errCh := runLoop(t, l)
	require.Eventually(t, func() bool { return len(h.events()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitErr(t, errCh))

	evs := h.events()
	assert.Equal(t, []string{"swipe/begin", "swipe/update", "swipe/end"}, kinds(evs))
	assert.False(t, evs[2].Cancelled)
	tl.AssertLogged(t, zapcore.WarnLevel, "cannot resync touch state")
}
