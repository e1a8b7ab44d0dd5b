package touchpad

import (
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// evioCGAbs is EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo).
func evioCGAbs(absCode int) uintptr {
	return ioc(iocRead, uint32('E'), uint32(0x40+absCode), uint32(unsafe.Sizeof(absInfo{})))
}

func getAbsInfo(fd int, absCode int) (absInfo, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGAbs(absCode), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return absInfo{}, errno
	}
	return info, nil
}

// Resolution is the axis resolution in units per millimetre. Zero means unknown.
type Resolution struct {
	X, Y float64
}

// unitsPerMM1000dpi is the resolution of a 1000 dpi device in units/mm.
const unitsPerMM1000dpi = 1000 / 25.4

// scale returns the factors converting raw units to 1000 dpi units.
func (r Resolution) scale() (float64, float64) {
	fx, fy := 1.0, 1.0
	if r.X > 0 {
		fx = unitsPerMM1000dpi / r.X
	}
	if r.Y > 0 {
		fy = unitsPerMM1000dpi / r.Y
	}
	return fx, fy
}

// readResolution queries the multitouch position axes. Failures leave the
// affected axis unknown.
func readResolution(fd int) Resolution {
	var r Resolution
	if x, err := getAbsInfo(fd, evdev.ABS_MT_POSITION_X); err == nil {
		r.X = float64(x.Resolution)
	}
	if y, err := getAbsInfo(fd, evdev.ABS_MT_POSITION_Y); err == nil {
		r.Y = float64(y.Resolution)
	}
	return r
}
