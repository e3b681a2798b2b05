//go:build linux

package queue

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newPipe returns both ends of a packet-mode pipe, so every write is read
// back as one frame the way a tunnel descriptor delivers them.
func newPipe(t *testing.T, nonblock bool) (r, w *os.File) {
	t.Helper()
	flags := unix.O_CLOEXEC | unix.O_DIRECT
	if nonblock {
		flags |= unix.O_NONBLOCK
	}
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], flags))
	return os.NewFile(uintptr(p[0]), "pipe-r"), os.NewFile(uintptr(p[1]), "pipe-w")
}

func TestSyncQueue_BlockingRoundTrip(t *testing.T) {
	rf, wf := newPipe(t, false)

	r, err := NewSync[Blocking](rf)
	require.NoError(t, err)
	defer r.Close()
	w, err := NewSync[Blocking](wf)
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, r.Blocking())
	assert.True(t, w.Blocking())

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 64)
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestSyncQueue_NonBlockingWouldBlock(t *testing.T) {
	rf, wf := newPipe(t, true)

	r, err := NewSync[NonBlocking](rf)
	require.NoError(t, err)
	defer r.Close()
	defer wf.Close()

	assert.False(t, r.Blocking())

	_, err = r.Read(make([]byte, 64))
	require.Error(t, err)
	assert.True(t, IsWouldBlock(err))

	var osErr *OSError
	require.True(t, errors.As(err, &osErr))
	assert.Equal(t, "read", osErr.Op)
	assert.ErrorIs(t, err, unix.EAGAIN)
}

func TestSyncQueue_ErrorsPropagate(t *testing.T) {
	rf, wf := newPipe(t, true)
	defer wf.Close()

	// Writing to the read end of a pipe is EBADF.
	r, err := NewSync[NonBlocking](rf)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Write([]byte("x"))
	require.Error(t, err)
	assert.False(t, IsWouldBlock(err))
	assert.ErrorIs(t, err, unix.EBADF)
}

func TestSyncQueue_Close(t *testing.T) {
	rf, wf := newPipe(t, true)
	defer wf.Close()

	r, err := NewSync[NonBlocking](rf)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), os.ErrClosed)

	_, err = r.Read(make([]byte, 8))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestIsWouldBlock(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{unix.EAGAIN, true},
		{&OSError{Op: "read", Err: unix.EAGAIN}, true},
		{&OSError{Op: "read", Err: unix.EIO}, false},
		{errors.New("boom"), false},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, IsWouldBlock(test.err), "err %v", test.err)
	}
}
