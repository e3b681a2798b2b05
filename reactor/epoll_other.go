//go:build !linux

package reactor

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Epoll is only available on Linux.
type Epoll struct{}

// New always fails on platforms without epoll.
func New(l *logrus.Logger) (*Epoll, error) {
	return nil, errors.ErrUnsupported
}

func (e *Epoll) Register(fd int) (*Registration, error) {
	return nil, errors.ErrUnsupported
}

func (e *Epoll) Close() error {
	return nil
}
