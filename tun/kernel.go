package tun

import (
	"strconv"
	"strings"
)

// ParseKernelVersion extracts major and minor from a kernel release string
// such as "6.1.0-18-amd64". Both leading components must be plain numbers.
func ParseKernelVersion(release string) (major, minor int, ok bool) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return 0, 0, false
	}
	return major, minor, true
}

// SupportsMultiQueue reports whether a kernel release has multi-queue
// tun/tap, which landed in 3.8. Unparsable releases are unsupported.
func SupportsMultiQueue(release string) bool {
	major, minor, ok := ParseKernelVersion(release)
	if !ok {
		return false
	}
	return major > 3 || (major == 3 && minor >= 8)
}
