// Package daemon runs the gesture event loop and wires the daemon together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/gesture"
	"github.com/fyrsmithlabs/gestured/internal/logging"
	"github.com/fyrsmithlabs/gestured/internal/touchpad"
)

// ErrDeviceRead indicates the touchpad could not be waited on or read.
var ErrDeviceRead = errors.New("failed to read device events")

// Source is an opened touchpad as seen by the loop.
type Source interface {
	Wait() (touchpad.Wake, error)
	ReadPending() ([]evdev.InputEvent, error)
	ArmTimer(after time.Duration) error
	Interrupt() error
	Resolution() touchpad.Resolution
	State() (touchpad.PadState, error)
	Close() error
}

// Handler consumes gesture events. An error stops the loop.
type Handler interface {
	Handle(ctx context.Context, ev gesture.Event) error
}

// Options configure device discovery and recognition.
type Options struct {
	// DevicePath skips the seat probe when set.
	DevicePath string
	Seat       string
	Recognizer touchpad.RecognizerConfig

	// Enumerator, Capability and Open default to the udev seat, the evdev
	// capability check and touchpad.OpenDevice.
	Enumerator touchpad.Enumerator
	Capability touchpad.CapabilityFunc
	Open       func(info touchpad.DeviceInfo) (Source, error)
	Now        func() time.Time
}

// Loop owns the device, the recognizer and the handler. Init must succeed
// before Run.
type Loop struct {
	handler Handler
	opts    Options
	logger  *logging.Logger

	info  touchpad.DeviceInfo
	src   Source
	rec   *touchpad.Recognizer
	armed time.Time
}

// NewLoop creates an event loop delivering gestures to handler.
func NewLoop(handler Handler, opts Options, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Enumerator == nil {
		opts.Enumerator = touchpad.NewSeat(opts.Seat)
	}
	if opts.Capability == nil {
		opts.Capability = touchpad.HasGestureCapability
	}
	if opts.Open == nil {
		opts.Open = func(info touchpad.DeviceInfo) (Source, error) {
			dev, err := touchpad.OpenDevice(info, touchpad.RestrictedOpener{})
			if err != nil {
				return nil, err
			}
			return dev, nil
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{handler: handler, opts: opts, logger: logger.Named("loop")}
}

// Init finds the gesture device and opens it. Seat enumeration failures wrap
// touchpad.ErrSeatAssign; an exhausted probe returns touchpad.ErrNoGestureDevice.
func (l *Loop) Init(ctx context.Context) error {
	info := touchpad.DeviceInfo{Devnode: l.opts.DevicePath, Touchpad: true}
	if l.opts.DevicePath == "" {
		var err error
		info, err = touchpad.Probe(ctx, l.opts.Enumerator, l.opts.Capability, l.logger)
		if err != nil {
			return fmt.Errorf("probing seat: %w", err)
		}
	}

	src, err := l.opts.Open(info)
	if err != nil {
		return fmt.Errorf("opening %s: %w", info.Devnode, err)
	}

	cfg := l.opts.Recognizer
	cfg.Resolution = src.Resolution()
	cfg.Resync = func() (touchpad.PadState, error) {
		st, err := src.State()
		if err != nil {
			l.logger.Warn(ctx, "cannot resync touch state after dropped events", zap.Error(err))
		}
		return st, err
	}

	l.info = info
	l.src = src
	l.rec = touchpad.NewRecognizer(cfg)

	l.logger.Info(logging.WithDevice(ctx, info.Devnode), "device opened",
		zap.String("name", info.Name),
		zap.Float64("resolution_x", cfg.Resolution.X),
		zap.Float64("resolution_y", cfg.Resolution.Y))
	return nil
}

// Device returns the opened device.
func (l *Loop) Device() touchpad.DeviceInfo {
	return l.info
}

// Run blocks on the device with no timeout, drains every pending event on
// wake and hands recognized gestures to the handler. It returns nil once ctx
// is cancelled; cancellation is noticed between wakes. Read failures wrap
// ErrDeviceRead; handler errors are returned as is.
func (l *Loop) Run(ctx context.Context) error {
	if l.src == nil {
		return errors.New("loop not initialized")
	}
	ctx = logging.WithDevice(ctx, l.info.Devnode)
	stop := context.AfterFunc(ctx, func() {
		if err := l.src.Interrupt(); err != nil {
			l.logger.Warn(ctx, "cannot interrupt device wait", zap.Error(err))
		}
	})
	defer stop()

	for {
		if ctx.Err() != nil {
			l.logger.Info(ctx, "event loop stopped")
			return nil
		}

		wake, err := l.src.Wait()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceRead, err)
		}

		if wake.Timer {
			if err := l.dispatch(ctx, l.rec.Tick(l.opts.Now())); err != nil {
				return err
			}
		}
		if wake.Input {
			if err := l.drain(ctx); err != nil {
				return err
			}
		}
		if err := l.rearm(); err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceRead, err)
		}
	}
}

func (l *Loop) drain(ctx context.Context) error {
	for {
		evs, err := l.src.ReadPending()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceRead, err)
		}
		if len(evs) == 0 {
			return nil
		}
		l.logger.Trace(ctx, "device events", zap.Int("count", len(evs)))
		for _, ev := range evs {
			if err := l.dispatch(ctx, l.rec.Feed(ev)); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, evs []gesture.Event) error {
	for _, ev := range evs {
		if err := l.handler.Handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// rearm points the device timer at the recognizer's hold deadline.
func (l *Loop) rearm() error {
	deadline, ok := l.rec.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if deadline.Equal(l.armed) {
		return nil
	}
	l.armed = deadline
	if !ok {
		return l.src.ArmTimer(0)
	}
	after := deadline.Sub(l.opts.Now())
	if after <= 0 {
		after = time.Nanosecond
	}
	return l.src.ArmTimer(after)
}

// Close releases the device.
func (l *Loop) Close() error {
	if l.src == nil {
		return nil
	}
	err := l.src.Close()
	l.src = nil
	return err
}
