// Package reactor multiplexes readiness notifications for raw file
// descriptors using edge-triggered polling.
//
// A Registration tracks readiness per direction. Readiness is sticky: once
// an edge has been observed it stays set until a holder of a Token for that
// edge clears it, which is how a consumer tells the reactor it has drained
// the descriptor down to a genuine would-block.
package reactor

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Ready once the registration has been
	// deregistered or the reactor has been closed.
	ErrClosed = errors.New("reactor: registration closed")

	// ErrAlreadyRegistered is returned when a descriptor is registered twice
	// with the same reactor.
	ErrAlreadyRegistered = errors.New("reactor: descriptor already registered")
)

// Interest selects a readiness direction.
type Interest uint8

const (
	Readable Interest = iota
	Writable
)

func (i Interest) String() string {
	switch i {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	}
	return "unknown"
}

// Reactor hands out registrations for descriptors.
type Reactor interface {
	Register(fd int) (*Registration, error)
}

type poller interface {
	remove(r *Registration) error
}

type direction struct {
	ready  bool
	tick   uint64
	notify chan struct{}
}

// set records a new edge and wakes every parked waiter.
func (d *direction) set() {
	d.ready = true
	d.tick++
	close(d.notify)
	d.notify = make(chan struct{})
}

// Registration is the reactor-side state of one descriptor.
type Registration struct {
	fd     int
	poller poller

	mu     sync.Mutex
	dirs   [2]direction
	closed bool
	done   chan struct{}
}

func newRegistration(fd int, p poller) *Registration {
	r := &Registration{
		fd:     fd,
		poller: p,
		done:   make(chan struct{}),
	}
	for i := range r.dirs {
		r.dirs[i].notify = make(chan struct{})
	}
	return r
}

// Fd returns the registered descriptor.
func (r *Registration) Fd() int {
	return r.fd
}

// Ready returns a token once the descriptor has been observed ready for the
// given interest. If readiness is already set it returns immediately,
// otherwise the caller is parked until the next edge, ctx is done or the
// registration is closed.
//
// A caller that gives up through ctx leaves no state behind; readiness it
// did not consume stays set for the next caller.
func (r *Registration) Ready(ctx context.Context, interest Interest) (Token, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return Token{}, ErrClosed
		}
		d := &r.dirs[interest]
		if d.ready {
			t := Token{reg: r, interest: interest, tick: d.tick}
			r.mu.Unlock()
			return t, nil
		}
		notify := d.notify
		r.mu.Unlock()

		select {
		case <-notify:
		case <-r.done:
			return Token{}, ErrClosed
		case <-ctx.Done():
			return Token{}, ctx.Err()
		}
	}
}

// wake applies an edge to the given directions.
func (r *Registration) wake(read, write bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if read {
		r.dirs[Readable].set()
	}
	if write {
		r.dirs[Writable].set()
	}
}

// shutdown marks the registration closed and releases all waiters. It
// reports whether this call performed the transition.
func (r *Registration) shutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	r.closed = true
	close(r.done)
	return true
}

// Deregister removes the descriptor from the reactor. Parked and future
// Ready calls fail with ErrClosed. The descriptor itself is not closed.
func (r *Registration) Deregister() error {
	if !r.shutdown() {
		return nil
	}
	return r.poller.remove(r)
}

// Token proves that the descriptor was observed ready for one interest.
// It is a plain value and must not outlive the operation it was issued for.
type Token struct {
	reg      *Registration
	interest Interest
	tick     uint64
}

// Interest returns the direction the token was issued for.
func (t Token) Interest() Interest {
	return t.interest
}

// ClearReady records that the operation performed under the token hit a
// genuine would-block. Readiness is only cleared when no newer edge has
// arrived since the token was issued.
func (t Token) ClearReady() {
	if t.reg == nil {
		return
	}
	r := t.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	d := &r.dirs[t.interest]
	if d.tick == t.tick {
		d.ready = false
	}
}
