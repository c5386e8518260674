package common

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPort is the highest valid TCP port number.
const MaxPort = 65535

// ParsePort parses a TCP port number given on the command line.
// Port 0 is accepted and asks the kernel for an ephemeral port.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w %q: not a number", ErrInvalidPort, s)
	}
	if port < 0 || port > MaxPort {
		return 0, fmt.Errorf("%w %d: must be between 0 and %d", ErrInvalidPort, port, MaxPort)
	}
	return port, nil
}
