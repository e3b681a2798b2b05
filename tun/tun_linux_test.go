//go:build linux

package tun

import (
	"errors"
	"strings"
	"testing"

	"github.com/am6737/tunio/queue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// createOrSkip skips the test when the environment cannot create tunnel
// devices (no clone device or no CAP_NET_ADMIN).
func createOrSkip(t *testing.T, name string, layer Layer, blocking bool) *Device {
	t.Helper()
	d, err := CreateDevice(logrus.New(), name, layer, blocking)
	if err != nil {
		var osErr *OSError
		if errors.As(err, &osErr) && (errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)) {
			t.Skipf("skipping test: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func fileFlags(t *testing.T, d *Device) int {
	t.Helper()
	rc, err := d.File.SyscallConn()
	require.NoError(t, err)
	var flags int
	var ferr error
	require.NoError(t, rc.Control(func(fd uintptr) {
		flags, ferr = unix.FcntlInt(fd, unix.F_GETFL, 0)
	}))
	require.NoError(t, ferr)
	return flags
}

func TestCreateDevice_ResolvesTemplate(t *testing.T) {
	d := createOrSkip(t, "tun%d", L3, false)

	assert.NotEqual(t, "tun%d", d.Name)
	assert.True(t, strings.HasPrefix(d.Name, "tun"), "got %q", d.Name)
	assert.NotZero(t, fileFlags(t, d)&unix.O_NONBLOCK)
}

func TestCreateDevice_Blocking(t *testing.T) {
	d := createOrSkip(t, "tap%d", L2, true)

	assert.True(t, strings.HasPrefix(d.Name, "tap"), "got %q", d.Name)
	assert.Zero(t, fileFlags(t, d)&unix.O_NONBLOCK)
}

func TestCreateDevice_SecondQueue(t *testing.T) {
	var uts unix.Utsname
	require.NoError(t, unix.Uname(&uts))
	if !SupportsMultiQueue(unix.ByteSliceToString(uts.Release[:])) {
		t.Skip("kernel has no multi-queue tun")
	}

	first := createOrSkip(t, "tun%d", L3, false)
	second := createOrSkip(t, first.Name, L3, false)
	assert.Equal(t, first.Name, second.Name)
}

func TestCreateDevice_NameTooLong(t *testing.T) {
	_, err := CreateDevice(logrus.New(), strings.Repeat("x", unix.IFNAMSIZ), L3, false)
	require.Error(t, err)

	var osErr *OSError
	if errors.As(err, &osErr) && osErr.Op != "ifreq" {
		t.Skipf("clone device unavailable: %v", err)
	}
	require.True(t, errors.As(err, &osErr))
	assert.Equal(t, "ifreq", osErr.Op)
}

func TestDevice_Persist(t *testing.T) {
	d := createOrSkip(t, "tun%d", L3, true)

	require.NoError(t, d.SetPersist(true))
	require.NoError(t, d.SetPersist(false))
}

func TestCreateDevice_FeedsSyncQueue(t *testing.T) {
	d := createOrSkip(t, "tun%d", L3, false)

	q, err := queue.NewSync[queue.NonBlocking](d.File)
	require.NoError(t, err)

	// The interface is down, so nothing is queued for us.
	_, err = q.Read(make([]byte, 1500))
	require.Error(t, err)
	assert.True(t, queue.IsWouldBlock(err))
}
