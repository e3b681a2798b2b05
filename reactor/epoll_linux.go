//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	maxEvents = 128

	readEvents  = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR
	writeEvents = unix.EPOLLOUT | unix.EPOLLHUP | unix.EPOLLERR
)

var _ Reactor = (*Epoll)(nil)

// Epoll is an edge-triggered reactor backed by a single epoll instance and
// one polling goroutine.
type Epoll struct {
	l      *logrus.Logger
	epfd   int
	wakefd int

	mu     sync.Mutex
	regs   map[int]*Registration
	closed bool
	err    error

	exited chan struct{}
}

// New creates the epoll instance and starts polling.
func New(l *logrus.Logger) (*Epoll, error) {
	if l == nil {
		l = logrus.StandardLogger()
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl add eventfd: %w", err)
	}

	e := &Epoll{
		l:      l,
		epfd:   epfd,
		wakefd: wakefd,
		regs:   make(map[int]*Registration),
		exited: make(chan struct{}),
	}
	go e.loop()
	return e, nil
}

// Register adds fd to the reactor with edge-triggered read and write
// interest. The descriptor must already be in non-blocking mode.
//
// A descriptor closed without being deregistered leaves the kernel interest
// list on its own. If its number is reused, the stale registration is shut
// down and replaced.
func (e *Epoll) Register(fd int) (*Registration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if e.err != nil {
		return nil, e.err
	}

	r := newRegistration(fd, e)
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("epoll_ctl add %d: %w", fd, err)
	}
	if stale, ok := e.regs[fd]; ok {
		e.l.WithField("fd", fd).Debug("replacing stale registration")
		stale.shutdown()
	}
	e.regs[fd] = r

	e.l.WithField("fd", fd).Debug("descriptor registered")
	return r, nil
}

func (e *Epoll) remove(r *Registration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fd := r.fd
	if e.regs[fd] != r {
		// Already dropped by Close, or replaced after the fd was reused.
		return nil
	}
	delete(e.regs, fd)
	if e.closed {
		return nil
	}

	err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	// The descriptor may already be closed, in which case the kernel dropped
	// it from the interest list on its own.
	if err != nil && !errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("epoll_ctl del %d: %w", fd, err)
	}

	e.l.WithField("fd", fd).Debug("descriptor deregistered")
	return nil
}

// Close stops the polling goroutine and releases every registration.
func (e *Epoll) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	regs := e.regs
	e.regs = make(map[int]*Registration)
	e.mu.Unlock()

	for _, r := range regs {
		r.shutdown()
	}

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(e.wakefd, buf[:]); err != nil {
		return fmt.Errorf("wake poller: %w", err)
	}
	<-e.exited

	return errors.Join(unix.Close(e.wakefd), unix.Close(e.epfd))
}

func (e *Epoll) loop() {
	defer close(e.exited)

	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(e.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			e.l.WithError(err).Error("epoll_wait failed, stopping reactor")
			e.abort(err)
			return
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)

			if fd == e.wakefd {
				e.mu.Lock()
				closed := e.closed
				e.mu.Unlock()
				if closed {
					return
				}
				continue
			}

			e.mu.Lock()
			r := e.regs[fd]
			e.mu.Unlock()
			if r == nil {
				continue
			}
			r.wake(ev.Events&readEvents != 0, ev.Events&writeEvents != 0)
		}
	}
}

// abort releases waiters when the poll loop dies on its own.
func (e *Epoll) abort(err error) {
	e.mu.Lock()
	e.err = fmt.Errorf("reactor stopped: %w", err)
	regs := e.regs
	e.regs = make(map[int]*Registration)
	e.mu.Unlock()

	for _, r := range regs {
		r.shutdown()
	}
}
