package queue

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// SyncQueue is a thin forwarder over an owned tunnel descriptor. It does no
// buffering and no retrying. With M = Blocking calls park the calling
// thread; with M = NonBlocking they fail with EAGAIN (see IsWouldBlock).
//
// Concurrent reads, or concurrent writes, on one SyncQueue race at the OS
// level and must be serialized by the caller.
type SyncQueue[M Mode] struct {
	file   *os.File
	fd     int
	closed atomic.Bool
}

// NewSync takes ownership of f. The blocking mode of f must match M; this is
// not checked.
func NewSync[M Mode](f *os.File) (*SyncQueue[M], error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}

	fd := -1
	if err := rc.Control(func(raw uintptr) { fd = int(raw) }); err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}

	return &SyncQueue[M]{file: f, fd: fd}, nil
}

// Blocking reports the queue's mode.
func (q *SyncQueue[M]) Blocking() bool {
	return isBlocking[M]()
}

// Fd returns the underlying descriptor. It stays owned by the queue.
func (q *SyncQueue[M]) Fd() int {
	return q.fd
}

// Read reads one frame into p.
func (q *SyncQueue[M]) Read(p []byte) (int, error) {
	if q.closed.Load() {
		return 0, os.ErrClosed
	}
	for {
		n, err := unix.Read(q.fd, p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		runtime.KeepAlive(q.file)
		if err != nil {
			return 0, &OSError{Op: "read", Err: err}
		}
		return n, nil
	}
}

// Write writes one frame from p.
func (q *SyncQueue[M]) Write(p []byte) (int, error) {
	if q.closed.Load() {
		return 0, os.ErrClosed
	}
	for {
		n, err := unix.Write(q.fd, p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		runtime.KeepAlive(q.file)
		if err != nil {
			return 0, &OSError{Op: "write", Err: err}
		}
		return n, nil
	}
}

// Close closes the descriptor.
func (q *SyncQueue[M]) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return os.ErrClosed
	}
	return q.file.Close()
}
