package bpv6

// Flags accumulates non-fatal conditions observed during a single send or
// receive call — the "separately threaded flags bitset" design note. It is
// distinct from a per-block processing-control-flags byte (see pkg/block),
// which travels on the wire; Flags never does.
type Flags uint16

const (
	// FlagNonCompliant marks a bundle that violated a MUST of the wire
	// format (non-zero dictionary length, custody requested without an
	// accompanying CTEB) but was still processed as far as possible.
	FlagNonCompliant Flags = 1 << iota
	// FlagIncomplete marks a bundle dropped mid-parse, e.g. a block
	// carrying DELETENOPROC or a truncated block codec read.
	FlagIncomplete
	// FlagSdnvOverflow mirrors sdnv.FlagOverflow for a field decoded
	// during block parsing.
	FlagSdnvOverflow
	// FlagSdnvIncomplete mirrors sdnv.FlagIncomplete for a field decoded
	// during block parsing.
	FlagSdnvIncomplete
	// FlagStoreFailure marks a bundle that could not be durably enqueued.
	FlagStoreFailure
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }
