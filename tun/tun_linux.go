//go:build linux

package tun

import (
	"os"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const cloneDevice = "/dev/net/tun"

// CreateDevice opens the clone device and attaches it to the interface
// name, creating the interface if needed. With blocking == false the
// descriptor is opened O_NONBLOCK and may only back a non-blocking queue.
//
// Multi-queue is requested when the running kernel supports it; otherwise a
// warning is logged and the device is created without it. Every failure is
// terminal and nothing is retried.
func CreateDevice(l *logrus.Logger, name string, layer Layer, blocking bool) (*Device, error) {
	if l == nil {
		l = logrus.StandardLogger()
	}

	mode := unix.O_RDWR | unix.O_CLOEXEC
	if !blocking {
		mode |= unix.O_NONBLOCK
	}
	fd, err := unix.Open(cloneDevice, mode, 0)
	if err != nil {
		return nil, &OSError{Op: "open " + cloneDevice, Err: err}
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, &OSError{Op: "ifreq", Err: err}
	}

	var flags uint16 = unix.IFF_TUN
	if layer == L2 {
		flags = unix.IFF_TAP
	}
	flags |= unix.IFF_NO_PI
	if multiQueueSupported(l) {
		flags |= unix.IFF_MULTI_QUEUE
	}
	ifr.SetUint16(flags)

	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, &OSError{Op: "TUNSETIFF", Err: err}
	}

	// The kernel writes the resolved name back into the request.
	resolved := ifr.Name()
	if !utf8.ValidString(resolved) {
		unix.Close(fd)
		return nil, &InterfaceNameError{Raw: []byte(resolved)}
	}

	l.WithField("requested", name).
		WithField("interface", resolved).
		WithField("layer", layer).
		WithField("blocking", blocking).
		Debug("tunnel device attached")

	return &Device{
		File: os.NewFile(uintptr(fd), cloneDevice),
		Name: resolved,
	}, nil
}

func multiQueueSupported(l *logrus.Logger) bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		l.WithError(err).Warn("Unable to read kernel release, multi-queue tun disabled")
		return false
	}

	release := unix.ByteSliceToString(uts.Release[:])
	if !SupportsMultiQueue(release) {
		l.WithField("release", release).
			Warn("Kernel doesn't support multi-queue tun (must be Linux >= 3.8)")
		return false
	}
	return true
}

// SetPersist toggles TUNSETPERSIST. A persistent interface outlives the
// descriptor that created it.
func (d *Device) SetPersist(persist bool) error {
	v := 0
	if persist {
		v = 1
	}
	return d.ioctlInt("TUNSETPERSIST", unix.TUNSETPERSIST, v)
}

// SetOwner hands the interface to uid (TUNSETOWNER).
func (d *Device) SetOwner(uid int) error {
	return d.ioctlInt("TUNSETOWNER", unix.TUNSETOWNER, uid)
}

// SetGroup hands the interface to gid (TUNSETGROUP).
func (d *Device) SetGroup(gid int) error {
	return d.ioctlInt("TUNSETGROUP", unix.TUNSETGROUP, gid)
}

func (d *Device) ioctlInt(op string, req uint, v int) error {
	rc, err := d.File.SyscallConn()
	if err != nil {
		return &OSError{Op: op, Err: err}
	}

	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), req, v)
	}); err != nil {
		return &OSError{Op: op, Err: err}
	}
	if ioctlErr != nil {
		return &OSError{Op: op, Err: ioctlErr}
	}
	return nil
}
