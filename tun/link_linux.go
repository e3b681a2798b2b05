//go:build linux

package tun

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// ConfigureLink sets MTU, address and routes on the named interface and
// optionally brings it up.
func ConfigureLink(l *logrus.Logger, name string, c LinkConfig) error {
	if l == nil {
		l = logrus.StandardLogger()
	}

	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to get link by name: %w", err)
	}

	if c.MTU > 0 {
		if err := netlink.LinkSetMTU(link, c.MTU); err != nil {
			return fmt.Errorf("failed to set MTU: %w", err)
		}
	}

	if c.Addr != nil {
		addr := &netlink.Addr{IPNet: c.Addr}
		if err := netlink.AddrReplace(link, addr); err != nil {
			return fmt.Errorf("failed to set address %s: %w", c.Addr, err)
		}
	}

	if c.Up {
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("failed to set link up: %w", err)
		}
	}

	for _, r := range c.Routes {
		route := &netlink.Route{
			LinkIndex: link.Attrs().Index,
			Dst:       r.Cidr,
			Priority:  r.Metric,
			Scope:     netlink.SCOPE_LINK,
		}
		if err := netlink.RouteAdd(route); err != nil {
			if errors.Is(err, unix.EEXIST) {
				l.WithField("route", r.Cidr).Warn("Route already exists, skipping")
				continue
			}
			return fmt.Errorf("failed to add route %s: %w", r.Cidr, err)
		}
	}

	l.WithField("interface", name).
		WithField("mtu", c.MTU).
		WithField("addr", c.Addr).
		WithField("routes", len(c.Routes)).
		Info("Link configured")
	return nil
}

// MTU returns the current MTU of the named interface.
func MTU(name string) (int, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return 0, fmt.Errorf("failed to get link by name: %w", err)
	}
	return link.Attrs().MTU, nil
}
