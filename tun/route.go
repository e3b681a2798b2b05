package tun

import (
	"fmt"
	"net"
)

// LinkConfig is applied to an interface after it has been created.
type LinkConfig struct {
	// MTU of the interface, left untouched when zero.
	MTU int
	// Addr is assigned to the interface when set.
	Addr *net.IPNet
	// Routes are installed through the interface.
	Routes []Route
	// Up brings the interface up.
	Up bool
}

type Route struct {
	Cidr   *net.IPNet
	Metric int
}

// ParseRoutes parses CIDR strings into routes with the given metric.
func ParseRoutes(cidrs []string, metric int) ([]Route, error) {
	routes := make([]Route, 0, len(cidrs))
	for _, c := range cidrs {
		_, cidr, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("invalid route %q: %w", c, err)
		}
		routes = append(routes, Route{Cidr: cidr, Metric: metric})
	}
	return routes, nil
}
