// Package engine implements the bundle engine (C5): origination,
// reception/forwarding, custody transfer, and expiry sweep, sitting
// between the block codecs (pkg/block), the active table (pkg/active),
// and the storage adapter (pkg/storage).
package engine

import "github.com/dtnagent/bpv6/pkg/ipn"

// DefaultHeaderReserve bounds the worst-case block stacking (Primary +
// CTEB + BIB + a handful of forwarded-without-processing blocks + the
// Payload block header) a single channel reserves ahead of payload bytes
// in its header buffer.
const DefaultHeaderReserve = 512

// Config describes one bundle channel's behavior, mirroring the fields
// spec.md §4.5 lists for a channel: destination, lifetime, fragmentation
// and custody policy, integrity checking, and the admin-record-only mode
// used by a channel that only ever receives status traffic.
type Config struct {
	Destination ipn.Endpoint
	Lifetime    uint64 // seconds; 0 means the bundle never expires
	Originate   bool   // must be true for Send to succeed

	AllowFragmentation bool
	RequestCustody     bool
	IntegrityCheck     bool
	MaxBundleLength    int
	ProcAdminOnly      bool // Receive Ignores anything but administrative records

	// HeaderReserve overrides DefaultHeaderReserve for this channel's
	// per-bundle header buffer. Zero selects the default.
	HeaderReserve int
}

func (c Config) headerReserve() int {
	if c.HeaderReserve > 0 {
		return c.HeaderReserve
	}
	return DefaultHeaderReserve
}
