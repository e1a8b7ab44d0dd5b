package touchpad

import (
	"errors"
	"fmt"
	"os"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// openFlags mirror what a compositor asks for. The opener keeps read access
// and grants write access since O_RDWR is requested.
const openFlags = unix.O_RDWR | unix.O_NONBLOCK | unix.O_CLOEXEC

// Wake tells which sources made Wait return. Several may be set at once.
type Wake struct {
	Input     bool
	Timer     bool
	Interrupt bool
}

// Device is an opened touchpad event node together with the timer and wake
// descriptors the event loop polls alongside it.
type Device struct {
	info   DeviceInfo
	opener Opener
	file   *os.File
	input  *evdev.InputDevice
	res    Resolution

	fd      int
	timerFd int
	wakeFd  int
}

// OpenDevice opens info.Devnode through opener.
func OpenDevice(info DeviceInfo, opener Opener) (*Device, error) {
	if opener == nil {
		opener = RestrictedOpener{}
	}
	f, err := opener.OpenRestricted(info.Devnode, openFlags)
	if err != nil {
		return nil, err
	}

	d := &Device{
		info:    info,
		opener:  opener,
		file:    f,
		input:   &evdev.InputDevice{Fn: info.Devnode, Name: info.Name, File: f},
		fd:      int(f.Fd()),
		timerFd: -1,
		wakeFd:  -1,
	}

	d.timerFd, err = unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("timerfd: %w", err)
	}
	d.wakeFd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	d.res = readResolution(d.fd)
	return d, nil
}

// Info returns the device description.
func (d *Device) Info() DeviceInfo {
	return d.info
}

// Resolution returns the multitouch axis resolution.
func (d *Device) Resolution() Resolution {
	return d.res
}

// State reads the current tool keys and multitouch slots from the kernel.
// It is used to resynchronise after SYN_DROPPED.
func (d *Device) State() (PadState, error) {
	return readPadState(d.fd)
}

// Wait blocks until the device has input, the timer fires or Interrupt is
// called. There is no timeout. EINTR restarts the wait.
func (d *Device) Wait() (Wake, error) {
	fds := []unix.PollFd{
		{Fd: int32(d.fd), Events: unix.POLLIN},
		{Fd: int32(d.timerFd), Events: unix.POLLIN},
		{Fd: int32(d.wakeFd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Wake{}, fmt.Errorf("poll: %w", err)
		}
		break
	}

	var w Wake
	// Errors and hangups surface through the following read.
	w.Input = fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0
	if fds[1].Revents&unix.POLLIN != 0 {
		w.Timer = true
		drainCounter(d.timerFd)
	}
	if fds[2].Revents&unix.POLLIN != 0 {
		w.Interrupt = true
		drainCounter(d.wakeFd)
	}
	return w, nil
}

// ReadPending returns the next batch of pending events without blocking. It
// returns nil once the device has nothing left to read.
func (d *Device) ReadPending() ([]evdev.InputEvent, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("poll: %w", err)
		}
		break
	}
	if fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) == 0 {
		return nil, nil
	}
	return d.input.Read()
}

// ArmTimer makes Wait report Timer once after elapses. A non-positive value
// disarms the timer.
func (d *Device) ArmTimer(after time.Duration) error {
	var spec unix.ItimerSpec
	if after > 0 {
		spec.Value = unix.NsecToTimespec(after.Nanoseconds())
	}
	return unix.TimerfdSettime(d.timerFd, 0, &spec, nil)
}

// Interrupt wakes a blocked Wait. It is safe to call from another goroutine.
func (d *Device) Interrupt() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(d.wakeFd, buf[:])
	return err
}

// Close releases the device node and the helper descriptors.
func (d *Device) Close() error {
	var errs []error
	if d.timerFd >= 0 {
		errs = append(errs, unix.Close(d.timerFd))
		d.timerFd = -1
	}
	if d.wakeFd >= 0 {
		errs = append(errs, unix.Close(d.wakeFd))
		d.wakeFd = -1
	}
	if d.file != nil {
		errs = append(errs, d.opener.CloseRestricted(d.file))
		d.file = nil
	}
	return errors.Join(errs...)
}

// drainCounter resets a timerfd or eventfd after it fired.
func drainCounter(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}
