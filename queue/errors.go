package queue

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrUnimplemented is returned by AsyncQueue.Shutdown. Half-close is not
// supported on tunnel descriptors.
var ErrUnimplemented = errors.New("queue: shutdown not implemented")

// OSError is a failed read or write system call.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

// IsWouldBlock reports whether err is the non-blocking "try again" result.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}
