// Package ipn implements the IPN endpoint identifier scheme used by BPv6
// bundles in this implementation: a (node, service) pair written as
// ipn://<node>.<service>.
package ipn

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint is a (node, service) pair. Service 0 denotes "any service on
// node" and is a valid, non-error value.
type Endpoint struct {
	Node    uint64
	Service uint64
}

// IsZero reports whether this endpoint is the null destination (node 0,
// service 0), used as the zero value for "unset" report-to/custodian EIDs.
func (e Endpoint) IsZero() bool {
	return e.Node == 0 && e.Service == 0
}

func (e Endpoint) String() string {
	return fmt.Sprintf("ipn://%d.%d", e.Node, e.Service)
}

// Parse parses a string of the form "ipn://<node>.<service>". The service
// part is optional and defaults to 0.
func Parse(s string) (Endpoint, error) {
	const prefix = "ipn://"
	if !strings.HasPrefix(s, prefix) {
		return Endpoint{}, fmt.Errorf("ipn: address %q must start with %q", s, prefix)
	}
	rest := s[len(prefix):]

	node, service, found := strings.Cut(rest, ".")
	nodeNum, err := strconv.ParseUint(node, 10, 64)
	if err != nil {
		return Endpoint{}, fmt.Errorf("ipn: invalid node number in %q: %w", s, err)
	}
	if !found {
		return Endpoint{Node: nodeNum}, nil
	}
	serviceNum, err := strconv.ParseUint(service, 10, 64)
	if err != nil {
		return Endpoint{}, fmt.Errorf("ipn: invalid service number in %q: %w", s, err)
	}
	return Endpoint{Node: nodeNum, Service: serviceNum}, nil
}
