package tun

import (
	"errors"
	"fmt"
	"net"

	"github.com/am6737/tunio/config"
	"github.com/sirupsen/logrus"
)

// NewDevicesFromConfig creates c.Tun.Queues descriptors attached to one
// interface, applies ownership and persistence, and configures the link.
// The first descriptor resolves the name; the others attach to it.
func NewDevicesFromConfig(c *config.Config, l *logrus.Logger) ([]*Device, error) {
	if l == nil {
		l = logrus.StandardLogger()
	}

	layer, err := ParseLayer(c.Tun.Layer)
	if err != nil {
		return nil, err
	}

	link, err := linkConfig(c.Tun)
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, 0, c.Tun.Queues)
	closeAll := func() {
		for _, d := range devices {
			if err := d.Close(); err != nil {
				l.WithError(err).Warn("Failed to close tunnel device")
			}
		}
	}

	name := c.Tun.Dev
	for i := 0; i < c.Tun.Queues; i++ {
		d, err := CreateDevice(l, name, layer, c.Tun.Blocking)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("queue %d: %w", i, err)
		}
		devices = append(devices, d)
		name = d.Name
	}

	first := devices[0]
	if err := applyOwnership(first, c.Tun); err != nil {
		closeAll()
		return nil, err
	}

	if err := ConfigureLink(l, first.Name, link); err != nil {
		closeAll()
		return nil, err
	}

	l.WithField("interface", first.Name).
		WithField("queues", len(devices)).
		WithField("layer", layer).
		Info("Tunnel device is ready")
	return devices, nil
}

func applyOwnership(d *Device, c config.TunConfig) error {
	var errs []error
	if c.Owner >= 0 {
		errs = append(errs, d.SetOwner(c.Owner))
	}
	if c.Group >= 0 {
		errs = append(errs, d.SetGroup(c.Group))
	}
	if c.Persist {
		errs = append(errs, d.SetPersist(true))
	}
	return errors.Join(errs...)
}

func linkConfig(c config.TunConfig) (LinkConfig, error) {
	lc := LinkConfig{MTU: c.MTU, Up: true}

	if c.Addr != "" {
		ip, cidr, err := net.ParseCIDR(c.Addr)
		if err != nil {
			return lc, fmt.Errorf("invalid tun.addr %q: %w", c.Addr, err)
		}
		cidr.IP = ip
		lc.Addr = cidr
	}

	routes, err := ParseRoutes(c.Routes, c.Metric)
	if err != nil {
		return lc, err
	}
	lc.Routes = routes
	return lc, nil
}
