package engine

import (
	"context"
	"sort"

	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/sdnv"
	"github.com/dtnagent/bpv6/pkg/active"
	"github.com/dtnagent/bpv6/pkg/block"
	"github.com/dtnagent/bpv6/pkg/dtntime"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

// AcceptCustody is step one of spec.md §4.5.3's "the caller" sequence:
// allocate a fresh, strictly increasing CID, remember it against sid so
// Retransmit can patch it into the CTEB on the wire, and insert an
// active-table entry so a later DACS can release it. The bundle remains
// stored even when the active table is full; the caller is told via the
// returned error so it may defer custody acceptance to a later pass.
func (c *Channel) AcceptCustody(sid uint64, deadline uint64) (cid uint64, err error) {
	c.muBundle.Lock()
	rec, ok := c.records[sid]
	if !ok || !rec.hasCTEB {
		c.muBundle.Unlock()
		return 0, bpv6.NewError(bpv6.Unsupported)
	}
	c.nextCID++
	cid = c.nextCID
	rec.cid = cid
	c.muBundle.Unlock()

	if c.Active == nil {
		return cid, bpv6.NewError(bpv6.ActiveTableFull)
	}
	if err := c.Active.Add(cid, active.Entry{SID: sid, Deadline: deadline}, false); err != nil {
		return cid, err
	}
	return cid, nil
}

// ConsumeDACS is step two: release every CID named by d's ranges from the
// active table and relinquish its backing storage object. A CID the
// active table no longer holds (already acked, already expired) is
// logged by the caller and skipped, per spec.md §7's CidNotFound recovery
// ("log, continue"). A DACS whose Succeeded is false releases nothing.
func (c *Channel) ConsumeDACS(d *block.DACS) []error {
	if c.Active == nil || !d.Succeeded {
		return nil
	}
	var errs []error
	for _, r := range d.Ranges {
		for cid := r.Start; cid < r.Start+r.Count; cid++ {
			entry, err := c.Active.Remove(cid)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := c.Store.Relinquish(c.BundleHandle, entry.SID); err != nil {
				errs = append(errs, err)
			}
			c.muBundle.Lock()
			delete(c.records, entry.SID)
			c.muBundle.Unlock()
		}
	}
	return errs
}

// Retransmit retrieves the stored bundle sid from the storage adapter and
// patches in its currently assigned CID — the Go-shaped equivalent of
// spec.md's "rewrite the reserved CID slot in place": the SDNV descriptor
// recorded at assembly time still describes the CID field's offset and
// width in the retrieved header bytes, so patching is a single
// sdnv.Rewrite rather than a re-serialization of the whole bundle.
func (c *Channel) Retransmit(sid uint64) ([]byte, error) {
	obj, err := c.Store.Retrieve(c.BundleHandle, sid)
	if err != nil {
		return nil, err
	}

	c.muBundle.Lock()
	rec, ok := c.records[sid]
	c.muBundle.Unlock()

	header := append([]byte(nil), obj.Meta...)
	if ok && rec.hasCTEB && rec.cid != 0 {
		if err := sdnv.Rewrite(header, sdnv.Field{Value: rec.cid, Index: rec.ctebCIDIndex, Width: rec.ctebCIDWidth}); err != nil {
			return nil, bpv6.WrapError(bpv6.BundleParseErr, err)
		}
	}
	return append(header, obj.Payload...), nil
}

// Sweep is the maintenance entry point of spec.md §4.5.4: every stored
// bundle whose expiry has passed is relinquished from storage and, if it
// was tracked under custody, removed from the active table.
func (c *Channel) Sweep(now uint64) {
	type expiry struct {
		sid uint64
		cid uint64
	}

	c.muBundle.Lock()
	var expired []expiry
	for sid, rec := range c.records {
		if rec.expiry != NeverExpires && now >= rec.expiry {
			expired = append(expired, expiry{sid: sid, cid: rec.cid})
			delete(c.records, sid)
		}
	}
	c.muBundle.Unlock()

	for _, e := range expired {
		_ = c.Store.Relinquish(c.BundleHandle, e.sid)
		if e.cid != 0 && c.Active != nil {
			_, _ = c.Active.Remove(e.cid)
		}
	}
}

// rangesFromCIDs run-length-encodes a set of custody IDs into the
// contiguous [Start,Start+Count) ranges a DACS wire form expects.
func rangesFromCIDs(cids []uint64) []block.CIDRange {
	if len(cids) == 0 {
		return nil
	}
	sorted := append([]uint64(nil), cids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var ranges []block.CIDRange
	cur := block.CIDRange{Start: sorted[0], Count: 1}
	for _, cid := range sorted[1:] {
		if cid == cur.Start+cur.Count {
			cur.Count++
			continue
		}
		ranges = append(ranges, cur)
		cur = block.CIDRange{Start: cid, Count: 1}
	}
	ranges = append(ranges, cur)
	return ranges
}

// EmitDACS originates an aggregate custody signal bundle acknowledging
// cids to custodian, the engine's half of spec.md §4.5.4's "aggregate
// custody form is emitted" behavior. It bypasses Config.Originate: an
// admin-only channel still needs to send its own signals back.
func (c *Channel) EmitDACS(ctx context.Context, custodian ipn.Endpoint, cids []uint64, succeeded bool) error {
	if len(cids) == 0 {
		return nil
	}
	dacs := &block.DACS{Succeeded: succeeded, Ranges: rangesFromCIDs(cids)}
	payload := block.EncodeDACS(dacs)

	primary := &block.Primary{
		IsAdminRec:  true,
		Destination: custodian,
		Source:      c.Local,
		CreateSec:   dtntime.NowSec(),
		CreateSeq:   c.createSeq,
	}

	c.muBundle.Lock()
	defer c.muBundle.Unlock()

	built, err := assemble(c.Config.headerReserve(), primary, false, ipn.Endpoint{}, false, nil, payload)
	if err != nil {
		return err
	}
	if _, err := c.store(ctx, built, payload, NeverExpires); err != nil {
		return err
	}
	c.createSeq++
	return nil
}
