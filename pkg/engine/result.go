package engine

import (
	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/pkg/block"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

// Outcome is everything a caller needs after a Receive call: the result
// code, any accumulated non-fatal flags, and — depending on Result — the
// bits the caller acts on next (spec.md §4.5.3's "the caller" steps).
type Outcome struct {
	Result Result
	Flags  bpv6.Flags

	// SID identifies the bundle this Receive call stored, for
	// PendingForward and PendingCustodyTransfer. The caller passes it to
	// AcceptCustody to allocate a CID and insert an active-table entry.
	SID uint64

	// Payload is the delivered application payload (Delivered) or the raw
	// bytes of a consumed administrative record payload
	// (PendingAcknowledgment).
	Payload []byte

	// DACS is populated for PendingAcknowledgment: the decoded aggregate
	// custody signal the caller should apply via ConsumeDACS.
	DACS *block.DACS

	// Custodian is populated for PendingCustodyTransfer: the endpoint the
	// CTEB names as the party to send the eventual DACS to, once
	// AcceptCustody has allocated a CID for SID.
	Custodian ipn.Endpoint
}

// Result is the outcome of a Receive call, per spec.md §4.5.2.
type Result int

const (
	Delivered Result = iota
	PendingForward
	PendingCustodyTransfer
	PendingAcknowledgment
	Dropped
	Expired
	Ignored
	WrongChannel
	Unsupported
)

func (r Result) String() string {
	switch r {
	case Delivered:
		return "Delivered"
	case PendingForward:
		return "PendingForward"
	case PendingCustodyTransfer:
		return "PendingCustodyTransfer"
	case PendingAcknowledgment:
		return "PendingAcknowledgment"
	case Dropped:
		return "Dropped"
	case Expired:
		return "Expired"
	case Ignored:
		return "Ignored"
	case WrongChannel:
		return "WrongChannel"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}
