// Package queue exposes a tunnel descriptor as a byte-stream packet queue.
//
// SyncQueue forwards reads and writes straight to the kernel. AsyncQueue
// layers a reactor registration on top of a non-blocking SyncQueue and
// turns edge-triggered readiness into context-aware Read and Write calls.
// Which variant a descriptor may back is decided by the Mode type
// parameter, so a blocking queue can never be handed to the reactor.
package queue

import "io"

// Mode is the blocking discriminant of a queue. It is sealed: Blocking and
// NonBlocking are the only implementations.
type Mode interface {
	blocking() bool
}

// Blocking marks queues whose descriptor was opened without O_NONBLOCK.
type Blocking struct{}

func (Blocking) blocking() bool { return true }

// NonBlocking marks queues whose descriptor was opened with O_NONBLOCK.
type NonBlocking struct{}

func (NonBlocking) blocking() bool { return false }

// Queue is implemented by every queue variant.
type Queue interface {
	io.ReadWriteCloser

	// Blocking reports whether calls may park the calling thread.
	Blocking() bool
}

var (
	_ Queue = (*SyncQueue[Blocking])(nil)
	_ Queue = (*SyncQueue[NonBlocking])(nil)
	_ Queue = (*AsyncQueue)(nil)
)

func isBlocking[M Mode]() bool {
	var m M
	return m.blocking()
}
