// Package ports parses and normalizes listening port lists and checks that ports can be bound.
//
// A port list is a comma-separated string such as "8080, 8443s". A trailing
// "s" marks a TLS port. The canonical form is sorted ascending, deduplicated
// and without spaces, so every spelling of one port set normalizes to the
// same string.
package ports

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrNoPorts is returned for an empty port list.
	ErrNoPorts = errors.New("no ports given")
	// ErrInvalidPorts is returned for a malformed port list.
	ErrInvalidPorts = errors.New("invalid port list")
)

// Spec is one listening port.
type Spec struct {
	Port int
	TLS  bool
}

func (s Spec) String() string {
	if s.TLS {
		return strconv.Itoa(s.Port) + "s"
	}
	return strconv.Itoa(s.Port)
}

// Parse parses a port list into canonical order.
func Parse(list string) ([]Spec, error) {
	if strings.TrimSpace(list) == "" {
		return nil, ErrNoPorts
	}

	seen := make(map[int]bool)
	var specs []Spec
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		spec := Spec{}
		if num, ok := strings.CutSuffix(tok, "s"); ok {
			spec.TLS = true
			tok = num
		}

		port, err := strconv.Atoi(tok)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPorts, list)
		}
		spec.Port = port

		if tls, dup := seen[port]; dup {
			if tls != spec.TLS {
				return nil, fmt.Errorf("%w: port %d listed both with and without TLS", ErrInvalidPorts, port)
			}
			continue
		}
		seen[port] = spec.TLS
		specs = append(specs, spec)
	}

	slices.SortFunc(specs, func(a, b Spec) int { return a.Port - b.Port })
	return specs, nil
}

// Format renders specs as a comma-separated list.
func Format(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Normalize returns the canonical form of a port list.
func Normalize(list string) (string, error) {
	specs, err := Parse(list)
	if err != nil {
		return "", err
	}
	return Format(specs), nil
}

// Join renders plain integer ports as a port list. The result is not
// validated; pass it through Normalize.
func Join(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// HasTLS reports whether any spec requires TLS.
func HasTLS(specs []Spec) bool {
	return slices.ContainsFunc(specs, func(s Spec) bool { return s.TLS })
}

// Check checks if a port is available and returns an error if not.
func Check(port int) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	_ = ln.Close()
	return nil
}
