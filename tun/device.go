package tun

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsupportedPlatform is returned by CreateDevice where no provisioning
// backend exists.
var ErrUnsupportedPlatform = errors.New("tun: platform not supported")

// Layer selects the link layer of the interface.
type Layer int

const (
	// L3 is a TUN interface carrying IP packets.
	L3 Layer = iota
	// L2 is a TAP interface carrying Ethernet frames.
	L2
)

func (l Layer) String() string {
	switch l {
	case L2:
		return "l2"
	case L3:
		return "l3"
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// ParseLayer accepts "l2"/"tap" and "l3"/"tun".
func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "tap":
		return L2, nil
	case "l3", "tun", "":
		return L3, nil
	}
	return 0, fmt.Errorf("unknown layer %q", s)
}

// Device is an attached tunnel descriptor and the name the kernel gave the
// interface. The requested name is never authoritative: templates such as
// "tun%d" are resolved by the kernel.
type Device struct {
	File *os.File
	Name string
}

// Close closes the descriptor. Non-persistent interfaces disappear once
// their last descriptor is closed.
func (d *Device) Close() error {
	return d.File.Close()
}

// OSError is a failed provisioning system call.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("tun: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error {
	return e.Err
}

// InterfaceNameError reports a kernel-returned interface name that is not
// valid text.
type InterfaceNameError struct {
	Raw []byte
}

func (e *InterfaceNameError) Error() string {
	return fmt.Sprintf("tun: interface name %q is not valid utf-8", e.Raw)
}
