package engine

import (
	"context"

	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/sdnv"
	"github.com/dtnagent/bpv6/pkg/block"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

// Receive parses wire as one bundle and either delivers it, queues it for
// forwarding, consumes it as a custody signal, or drops/ignores it, per
// spec.md §4.5.2. now is the current DTN time in milliseconds.
func (c *Channel) Receive(ctx context.Context, wire []byte, now uint64) (*Outcome, error) {
	var sflags sdnv.Flags
	primary := &block.Primary{}
	offset := block.ReadPrimary(wire, primary, true, &sflags)

	if primary.DictLen != 0 {
		return &Outcome{Result: Unsupported, Flags: bpv6.FlagNonCompliant}, bpv6.NewError(bpv6.Unsupported)
	}
	if primary.Lifetime != 0 && now >= (primary.CreateSec+primary.Lifetime)*1000 {
		return &Outcome{Result: Expired}, nil
	}

	var bib *block.BIB
	var cteb *block.CTEB
	var forwarded [][]byte

	for {
		if offset >= len(wire) {
			return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, bpv6.NewError(bpv6.BundleParseErr)
		}
		hdr := block.ReadGenericHeader(wire, offset, &sflags)
		if sflags&sdnv.FlagIncomplete != 0 {
			return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, bpv6.NewError(bpv6.BundleParseErr)
		}

		switch hdr.Type {
		case block.TypePayload:
			return c.receivePayload(ctx, wire, offset, primary, bib, cteb, forwarded)

		case block.TypeBIB:
			bib = &block.BIB{}
			consumed := block.ReadBIB(wire[offset:], bib, true, &sflags)
			offset += consumed

		case block.TypeCTEB:
			cteb = &block.CTEB{}
			consumed := block.ReadCTEB(wire[offset:], cteb, true, &sflags)
			cteb.BlockFlags &^= block.FlagDropNoProc
			offset += consumed

		default:
			blockEnd := hdr.DataAt + int(hdr.Len)
			if blockEnd > len(wire) {
				return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, bpv6.NewError(bpv6.BundleParseErr)
			}
			switch {
			case hdr.BlockFlags&block.FlagDeleteNoProc != 0:
				return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, bpv6.NewError(bpv6.Dropped)
			case hdr.BlockFlags&block.FlagDropNoProc != 0:
				// Excluded from any forwarded copy.
			default:
				raw := append([]byte(nil), wire[offset:blockEnd]...)
				markForwarded(raw, hdr.FlagsAt.Index-offset)
				forwarded = append(forwarded, raw)
			}
			offset = blockEnd
		}
	}
}

// markForwarded sets the FORWARDNOPROC bit on a copied unknown block's
// flags SDNV, in place, at the same field width it was read with.
func markForwarded(raw []byte, flagsIndex int) {
	var flags sdnv.Flags
	field := sdnv.Decode(raw, flagsIndex, &flags)
	field.Value |= uint64(block.FlagForwardedNoProc)
	_ = sdnv.Rewrite(raw, field)
}

// receivePayload implements the back half of spec.md §4.5.2: payload
// parsing, integrity verification, and the forward/deliver/admin-record
// decision tree.
func (c *Channel) receivePayload(ctx context.Context, wire []byte, offset int, primary *block.Primary, bib *block.BIB, cteb *block.CTEB, forwarded [][]byte) (*Outcome, error) {
	var sflags sdnv.Flags
	pay := &block.Payload{}
	dataStart := block.ReadPayload(wire[offset:], pay, true, &sflags) + offset
	dataEnd := dataStart + int(pay.Size)
	if dataEnd > len(wire) {
		return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, bpv6.NewError(bpv6.BundleParseErr)
	}
	payload := wire[dataStart:dataEnd]

	if bib != nil && !bib.Verify(payload) {
		return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, bpv6.NewError(bpv6.Integrity)
	}

	if primary.Destination.Node != c.Local.Node {
		return c.forward(ctx, primary, cteb, bib != nil, forwarded, payload)
	}

	if c.Local.Service != 0 && primary.Destination.Service != c.Local.Service {
		return &Outcome{Result: WrongChannel}, bpv6.NewError(bpv6.WrongChannel)
	}

	if primary.IsAdminRec && len(payload) >= 2 {
		if block.RecordType(payload[0]) != block.AdminACS {
			return &Outcome{Result: Unsupported, Flags: bpv6.FlagNonCompliant}, bpv6.NewError(bpv6.Unsupported)
		}
		var dflags sdnv.Flags
		dacs := block.DecodeDACS(payload, &dflags)
		return &Outcome{Result: PendingAcknowledgment, Payload: payload, DACS: dacs}, nil
	}

	if c.Config.ProcAdminOnly {
		return &Outcome{Result: Ignored}, nil
	}

	// Fragments of the same bundle (spec.md's fragmentation test vector)
	// buffer here until reassembled; custody, below, still acks per
	// fragment, but the application only sees the whole payload once.
	deliverable := payload
	complete := true
	if primary.IsFrag {
		if full := c.reassembleFragment(primary, payload); full != nil {
			deliverable = full
		} else {
			complete = false
		}
	}

	if complete {
		c.muPayload.Lock()
		_, err := c.Store.Enqueue(ctx, c.PayloadHandle, nil, append([]byte(nil), deliverable...))
		c.muPayload.Unlock()
		if err != nil {
			return &Outcome{Result: Dropped, Flags: bpv6.FlagStoreFailure}, bpv6.WrapError(bpv6.FailedStore, err)
		}
	}

	if primary.CstRqst {
		if cteb == nil {
			return &Outcome{Result: Unsupported, Flags: bpv6.FlagNonCompliant, Payload: payload}, bpv6.NewError(bpv6.Unsupported)
		}
		sid, err := c.storeForCustodyHold(ctx, primary, payload)
		if err != nil {
			return &Outcome{Result: Delivered, Payload: payload, Flags: bpv6.FlagStoreFailure}, err
		}
		custodian, _ := ipn.Parse(cteb.Custodian)
		return &Outcome{Result: PendingCustodyTransfer, SID: sid, Payload: payload, Custodian: custodian}, nil
	}

	if !complete {
		return &Outcome{Result: Ignored}, nil
	}
	return &Outcome{Result: Delivered, Payload: deliverable}, nil
}

// forward splices the surviving blocks of a received bundle into a fresh
// outgoing bundle and enqueues it for CLA egress, per spec.md §4.5.2's
// forwarding branch: report-to cleared, custodian set to this node.
func (c *Channel) forward(ctx context.Context, primary *block.Primary, cteb *block.CTEB, wantBIB bool, forwarded [][]byte, payload []byte) (*Outcome, error) {
	wantCTEB := cteb != nil
	next := *primary
	next.ReportTo = ipn.Endpoint{}
	next.Custodian = c.Local

	c.muBundle.Lock()
	built, err := assemble(c.Config.headerReserve(), &next, wantCTEB, c.Local, wantBIB, forwarded, payload)
	if err != nil {
		c.muBundle.Unlock()
		return &Outcome{Result: Dropped, Flags: bpv6.FlagIncomplete}, err
	}
	expiry := bundleExpiry(primary.CreateSec, primary.Lifetime)
	sid, err := c.store(ctx, built, payload, expiry)
	c.muBundle.Unlock()
	if err != nil {
		return &Outcome{Result: Dropped, Flags: bpv6.FlagStoreFailure}, err
	}

	if primary.CstRqst {
		if wantCTEB {
			custodian, _ := ipn.Parse(cteb.Custodian)
			return &Outcome{Result: PendingCustodyTransfer, SID: sid, Custodian: custodian}, nil
		}
		return &Outcome{Result: Unsupported, Flags: bpv6.FlagNonCompliant, SID: sid}, bpv6.NewError(bpv6.Unsupported)
	}
	return &Outcome{Result: PendingForward, SID: sid}, nil
}

// storeForCustodyHold keeps a minimal bookkeeping record for a bundle
// this channel delivered locally under custody request: there is nothing
// left to retransmit over a CLA (the payload already reached the
// application), so no header bytes are kept — only an active-table-ready
// record so AcceptCustody/ConsumeDACS have a SID to act on.
func (c *Channel) storeForCustodyHold(ctx context.Context, primary *block.Primary, payload []byte) (uint64, error) {
	c.muBundle.Lock()
	defer c.muBundle.Unlock()

	sid, err := c.Store.Enqueue(ctx, c.BundleHandle, nil, append([]byte(nil), payload...))
	if err != nil {
		return 0, bpv6.WrapError(bpv6.FailedStore, err)
	}
	c.records[sid] = &record{expiry: bundleExpiry(primary.CreateSec, primary.Lifetime), hasCTEB: true}
	return sid, nil
}
