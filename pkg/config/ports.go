package config

import (
	"fmt"
	"strconv"
	"strings"
)

// PortRange is the lower-upper pair parsed from WG_PORTS.
type PortRange struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
}

// ParsePortRange parses a "lower-upper" string.
func ParsePortRange(s string) (PortRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return PortRange{}, fmt.Errorf("port range %q is not of the form lower-upper", s)
	}

	lower, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return PortRange{}, fmt.Errorf("port range %q: invalid lower bound: %w", s, err)
	}
	upper, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return PortRange{}, fmt.Errorf("port range %q: invalid upper bound: %w", s, err)
	}

	if lower < 1 || upper > 65535 {
		return PortRange{}, fmt.Errorf("port range %q exceeds 1-65535", s)
	}
	if lower > upper {
		return PortRange{}, fmt.Errorf("port range %q: lower bound above upper bound", s)
	}

	return PortRange{Lower: lower, Upper: upper}, nil
}

// Contains reports whether port lies within both bounds, inclusive.
func (r PortRange) Contains(port int) bool {
	return port >= r.Lower && port <= r.Upper
}

// String renders the range in WG_PORTS form.
func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Lower, r.Upper)
}
