// Package pointer drives a synthetic mouse for drag emulation.
package pointer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bendahl/uinput"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/logging"
)

// Button ids follow X11 numbering.
const (
	ButtonLeft   = 1
	ButtonMiddle = 2
	ButtonRight  = 3
)

const (
	// UinputPath is the kernel's uinput node.
	UinputPath = "/dev/uinput"
	// DeviceName is the name the virtual mouse registers with.
	DeviceName = "gestured virtual pointer"

	queueSize = 64
)

// mouse is the subset of uinput.Mouse the pointer uses.
type mouse interface {
	Move(x, y int32) error
	LeftPress() error
	LeftRelease() error
	MiddlePress() error
	MiddleRelease() error
	RightPress() error
	RightRelease() error
	Close() error
}

// Virtual is a uinput mouse owned by a single worker goroutine. Calls queue
// an operation and return immediately; failures are logged.
type Virtual struct {
	m      mouse
	logger *logging.Logger

	ops  chan func()
	quit chan struct{}
	done chan struct{}
	once sync.Once

	// Owned by the worker.
	held    map[int]bool
	pending map[int]*time.Timer
	gen     map[int]uint64
}

// New creates the uinput mouse. It fails when /dev/uinput is not writable.
func New(logger *logging.Logger) (*Virtual, error) {
	m, err := uinput.CreateMouse(UinputPath, []byte(DeviceName))
	if err != nil {
		return nil, fmt.Errorf("creating virtual mouse: %w", err)
	}
	return newVirtual(m, logger), nil
}

func newVirtual(m mouse, logger *logging.Logger) *Virtual {
	if logger == nil {
		logger = logging.NewNop()
	}
	v := &Virtual{
		m:       m,
		logger:  logger.Named("pointer"),
		ops:     make(chan func(), queueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		held:    make(map[int]bool),
		pending: make(map[int]*time.Timer),
		gen:     make(map[int]uint64),
	}
	go v.run()
	return v
}

func (v *Virtual) run() {
	defer close(v.done)
	for {
		select {
		case op := <-v.ops:
			op()
		case <-v.quit:
			v.shutdown()
			return
		}
	}
}

func (v *Virtual) submit(op func()) {
	select {
	case <-v.quit:
		return
	default:
	}
	select {
	case v.ops <- op:
	case <-v.quit:
	}
}

// ButtonDown presses button. A release still pending from ButtonUpAfter is
// cancelled, so the button stays held.
func (v *Virtual) ButtonDown(button int) {
	v.submit(func() {
		v.cancelRelease(button)
		if v.held[button] {
			return
		}
		if v.press(button) {
			v.held[button] = true
		}
	})
}

// ButtonUpAfter releases button once delay has passed.
func (v *Virtual) ButtonUpAfter(button int, delay time.Duration) {
	v.submit(func() {
		v.cancelRelease(button)
		if delay <= 0 {
			v.releaseHeld(button)
			return
		}
		gen := v.gen[button]
		v.pending[button] = time.AfterFunc(delay, func() {
			v.submit(func() {
				// A ButtonDown since arming bumps the generation.
				if v.gen[button] != gen {
					return
				}
				delete(v.pending, button)
				v.releaseHeld(button)
			})
		})
	})
}

// MoveRelative moves the pointer by (dx, dy).
func (v *Virtual) MoveRelative(dx, dy int32) {
	if dx == 0 && dy == 0 {
		return
	}
	v.submit(func() {
		if err := v.m.Move(dx, dy); err != nil {
			v.logger.Warn(context.Background(), "pointer move failed", zap.Error(err))
		}
	})
}

// Close releases held buttons and destroys the virtual mouse.
func (v *Virtual) Close() error {
	var err error
	v.once.Do(func() {
		close(v.quit)
		<-v.done
		err = v.m.Close()
	})
	return err
}

func (v *Virtual) shutdown() {
	for b, t := range v.pending {
		t.Stop()
		delete(v.pending, b)
	}
	for b := range v.held {
		v.releaseHeld(b)
	}
}

func (v *Virtual) cancelRelease(button int) {
	v.gen[button]++
	if t, ok := v.pending[button]; ok {
		t.Stop()
		delete(v.pending, button)
	}
}

func (v *Virtual) releaseHeld(button int) {
	if !v.held[button] {
		return
	}
	delete(v.held, button)
	v.release(button)
}

func (v *Virtual) press(button int) bool {
	var err error
	switch button {
	case ButtonLeft:
		err = v.m.LeftPress()
	case ButtonMiddle:
		err = v.m.MiddlePress()
	case ButtonRight:
		err = v.m.RightPress()
	default:
		v.logger.Warn(context.Background(), "unsupported pointer button", zap.Int("button", button))
		return false
	}
	if err != nil {
		v.logger.Warn(context.Background(), "pointer press failed", zap.Int("button", button), zap.Error(err))
		return false
	}
	return true
}

func (v *Virtual) release(button int) {
	var err error
	switch button {
	case ButtonLeft:
		err = v.m.LeftRelease()
	case ButtonMiddle:
		err = v.m.MiddleRelease()
	case ButtonRight:
		err = v.m.RightRelease()
	}
	if err != nil {
		v.logger.Warn(context.Background(), "pointer release failed", zap.Int("button", button), zap.Error(err))
	}
}
