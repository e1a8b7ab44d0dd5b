package touchpad

import (
	"fmt"
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// keyMax is KEY_MAX from linux/input-event-codes.h.
const keyMax = 0x2ff

var fingerTools = []int{
	evdev.BTN_TOOL_FINGER,
	evdev.BTN_TOOL_DOUBLETAP,
	evdev.BTN_TOOL_TRIPLETAP,
	evdev.BTN_TOOL_QUADTAP,
	evdev.BTN_TOOL_QUINTTAP,
}

// evioCGKey is EVIOCGKEY(len) = _IOC(_IOC_READ, 'E', 0x18, len).
func evioCGKey(size int) uintptr {
	return ioc(iocRead, uint32('E'), 0x18, uint32(size))
}

// evioCGMTSlots is EVIOCGMTSLOTS(len) = _IOC(_IOC_READ, 'E', 0x0a, len).
func evioCGMTSlots(size int) uintptr {
	return ioc(iocRead, uint32('E'), 0x0a, uint32(size))
}

func ioctlBuf(fd int, req uintptr, p unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(p))
	if errno != 0 {
		return errno
	}
	return nil
}

// fingersFromKeys returns the finger count of the highest BTN_TOOL_* key set
// in a EVIOCGKEY bitmap.
func fingersFromKeys(bits []byte) int {
	n := 0
	for _, code := range fingerTools {
		if code/8 >= len(bits) || bits[code/8]&(1<<(code%8)) == 0 {
			continue
		}
		if f := toolFingers(code); f > n {
			n = f
		}
	}
	return n
}

// readMTSlots fills one value per slot for an ABS_MT_* code.
func readMTSlots(fd int, code int) ([maxSlots]int32, error) {
	// struct input_mt_request_layout: the code followed by one value per slot.
	// Slots beyond the device's count are left untouched and read as -1.
	var req [1 + maxSlots]int32
	for i := range req {
		req[i] = -1
	}
	req[0] = int32(code)
	var out [maxSlots]int32
	if err := ioctlBuf(fd, evioCGMTSlots(int(unsafe.Sizeof(req))), unsafe.Pointer(&req[0])); err != nil {
		return out, err
	}
	copy(out[:], req[1:])
	return out, nil
}

// readPadState queries the kernel for the current tool keys and slot values.
func readPadState(fd int) (PadState, error) {
	var st PadState

	var keys [(keyMax + 7) / 8]byte
	if err := ioctlBuf(fd, evioCGKey(len(keys)), unsafe.Pointer(&keys[0])); err != nil {
		return st, fmt.Errorf("EVIOCGKEY: %w", err)
	}
	st.Fingers = fingersFromKeys(keys[:])

	ids, err := readMTSlots(fd, evdev.ABS_MT_TRACKING_ID)
	if err != nil {
		return st, fmt.Errorf("EVIOCGMTSLOTS tracking id: %w", err)
	}
	xs, err := readMTSlots(fd, evdev.ABS_MT_POSITION_X)
	if err != nil {
		return st, fmt.Errorf("EVIOCGMTSLOTS x: %w", err)
	}
	ys, err := readMTSlots(fd, evdev.ABS_MT_POSITION_Y)
	if err != nil {
		return st, fmt.Errorf("EVIOCGMTSLOTS y: %w", err)
	}
	for i := range st.Contacts {
		st.Contacts[i] = Contact{Active: ids[i] >= 0, X: xs[i], Y: ys[i]}
	}

	if slot, err := getAbsInfo(fd, evdev.ABS_MT_SLOT); err == nil {
		st.Slot = int(slot.Value)
	}
	return st, nil
}
