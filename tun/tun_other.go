//go:build !linux

package tun

import "github.com/sirupsen/logrus"

func CreateDevice(l *logrus.Logger, name string, layer Layer, blocking bool) (*Device, error) {
	return nil, ErrUnsupportedPlatform
}

func (d *Device) SetPersist(persist bool) error { return ErrUnsupportedPlatform }

func (d *Device) SetOwner(uid int) error { return ErrUnsupportedPlatform }

func (d *Device) SetGroup(gid int) error { return ErrUnsupportedPlatform }
