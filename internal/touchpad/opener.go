package touchpad

import (
	"os"

	"golang.org/x/sys/unix"
)

// Opener opens and closes device nodes on behalf of the reader.
type Opener interface {
	OpenRestricted(path string, flags int) (*os.File, error)
	CloseRestricted(f *os.File) error
}

// RestrictedOpener opens devices for reading, adding write access only when
// the caller's flags ask for it. Flags other than the access mode pass through.
type RestrictedOpener struct{}

// OpenRestricted opens path. Errors are *os.PathError values carrying the errno.
func (RestrictedOpener) OpenRestricted(path string, flags int) (*os.File, error) {
	return os.OpenFile(path, accessMode(flags)|flags&^unix.O_ACCMODE, 0)
}

// CloseRestricted closes a file returned by OpenRestricted.
func (RestrictedOpener) CloseRestricted(f *os.File) error {
	return f.Close()
}

// accessMode maps the requested access to O_RDONLY or O_RDWR. A write-only
// request still gets read access.
func accessMode(flags int) int {
	if flags&(unix.O_WRONLY|unix.O_RDWR) != 0 {
		return unix.O_RDWR
	}
	return unix.O_RDONLY
}
