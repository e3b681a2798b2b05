//go:build !linux

package tun

import "github.com/sirupsen/logrus"

func ConfigureLink(l *logrus.Logger, name string, c LinkConfig) error {
	return ErrUnsupportedPlatform
}

func MTU(name string) (int, error) {
	return 0, ErrUnsupportedPlatform
}
