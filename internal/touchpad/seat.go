package touchpad

import (
	"context"
	"fmt"
	"sort"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/jochenvg/go-udev"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/logging"
)

// DefaultSeat is the seat udev assigns devices to when ID_SEAT is unset.
const DefaultSeat = "seat0"

// DeviceInfo describes an input event node found on a seat.
type DeviceInfo struct {
	Devnode  string
	Syspath  string
	Name     string
	Seat     string
	Touchpad bool
}

// Enumerator lists the input devices of a seat in device-added order.
type Enumerator interface {
	Devices() ([]DeviceInfo, error)
}

// CapabilityFunc reports whether the device at devnode can track multiple fingers.
type CapabilityFunc func(devnode string) (bool, error)

// Seat enumerates evdev nodes assigned to one udev seat.
type Seat struct {
	name string
	u    udev.Udev
}

// NewSeat returns an enumerator for the named seat. An empty name means seat0.
func NewSeat(name string) *Seat {
	if name == "" {
		name = DefaultSeat
	}
	return &Seat{name: name}
}

// Name returns the seat name.
func (s *Seat) Name() string {
	return s.name
}

// Devices lists the initialized event nodes of the input subsystem that
// belong to this seat, ordered by node name.
func (s *Seat) Devices() ([]DeviceInfo, error) {
	e := s.u.NewEnumerate()
	if e == nil {
		return nil, fmt.Errorf("%w: %s: udev unavailable", ErrSeatAssign, s.name)
	}
	if err := e.AddMatchSubsystem("input"); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSeatAssign, s.name, err)
	}
	if err := e.AddMatchIsInitialized(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSeatAssign, s.name, err)
	}
	devs, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSeatAssign, s.name, err)
	}

	out := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		node := d.Devnode()
		if !strings.HasPrefix(d.Sysname(), "event") || node == "" {
			continue
		}
		seat := d.PropertyValue("ID_SEAT")
		if seat == "" {
			seat = DefaultSeat
		}
		if seat != s.name {
			continue
		}
		info := DeviceInfo{
			Devnode:  node,
			Syspath:  d.Syspath(),
			Seat:     seat,
			Touchpad: d.PropertyValue("ID_INPUT_TOUCHPAD") == "1",
		}
		if p := d.Parent(); p != nil {
			info.Name = strings.Trim(p.SysattrValue("name"), "\"\n")
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool { return eventLess(out[i].Devnode, out[j].Devnode) })
	return out, nil
}

// eventLess orders /dev/input/eventN nodes numerically.
func eventLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Probe walks the seat's devices and returns the first touchpad that can
// track multiple fingers. Devices whose capabilities cannot be read are
// skipped.
func Probe(ctx context.Context, en Enumerator, hasGestures CapabilityFunc, logger *logging.Logger) (DeviceInfo, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	devs, err := en.Devices()
	if err != nil {
		return DeviceInfo{}, err
	}

	for _, info := range devs {
		if !info.Touchpad {
			logger.Trace(ctx, "skipping non-touchpad device", zap.String("devnode", info.Devnode))
			continue
		}
		ok, err := hasGestures(info.Devnode)
		if err != nil {
			logger.Warn(ctx, "cannot read device capabilities",
				zap.String("devnode", info.Devnode), zap.Error(err))
			continue
		}
		if ok {
			logger.Info(ctx, "gesture device found",
				zap.String("devnode", info.Devnode), zap.String("name", info.Name))
			return info, nil
		}
		logger.Debug(ctx, "touchpad lacks multi-finger support", zap.String("devnode", info.Devnode))
	}
	return DeviceInfo{}, ErrNoGestureDevice
}

// HasGestureCapability reports whether the device advertises a two-finger
// tool and multitouch positions.
func HasGestureCapability(devnode string) (bool, error) {
	dev, err := evdev.Open(devnode)
	if err != nil {
		return false, err
	}
	defer dev.File.Close()
	return supportsGestures(dev.Capabilities), nil
}

func supportsGestures(caps map[evdev.CapabilityType][]evdev.CapabilityCode) bool {
	var tool, mt bool
	for ct, codes := range caps {
		for _, c := range codes {
			switch {
			case ct.Type == evdev.EV_KEY && c.Code == evdev.BTN_TOOL_DOUBLETAP:
				tool = true
			case ct.Type == evdev.EV_ABS && c.Code == evdev.ABS_MT_POSITION_X:
				mt = true
			}
		}
	}
	return tool && mt
}
