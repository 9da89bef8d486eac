package engine

import (
	"context"
	"math"
	"sync"

	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/sdnv"
	"github.com/dtnagent/bpv6/pkg/active"
	"github.com/dtnagent/bpv6/pkg/block"
	"github.com/dtnagent/bpv6/pkg/dtntime"
	"github.com/dtnagent/bpv6/pkg/ipn"
	"github.com/dtnagent/bpv6/pkg/storage"
)

// NeverExpires marks a record whose bundle's lifetime is 0 (spec.md §3:
// "never expires"), so Sweep never relinquishes it on age alone.
const NeverExpires = math.MaxUint64

// record is this engine's in-memory bookkeeping for one stored bundle —
// the "Stored bundle" of spec.md §3, minus the header bytes themselves
// (those live in the storage adapter; record only keeps what's needed to
// patch a freshly assigned CID into a retrieved copy, and to drive the
// expiry sweep).
type record struct {
	expiry uint64 // ms; NeverExpires if the bundle's lifetime is 0

	hasCTEB      bool
	ctebCIDIndex int
	ctebCIDWidth int
	cid          uint64 // 0 until AcceptCustody assigns one
}

// Channel is one bundle engine channel bound to (local node, local
// service) with the policy in Config. It owns two storage queues (bundle
// headers+payloads awaiting CLA egress, and delivered application
// payloads awaiting Recv) plus, when custody is in play, a reference to
// the node's shared active table.
//
// Lock ordering, per spec.md §5: muBundle before muActive (the active
// table's own internal lock); muPayload is never held while muBundle is
// held.
type Channel struct {
	Local  ipn.Endpoint
	Config Config

	Store         storage.Store
	BundleHandle  storage.Handle
	PayloadHandle storage.Handle
	Active        *active.Table // nil if this channel never requests or accepts custody

	muBundle   sync.Mutex
	createSeq  uint64
	nextCID    uint64
	records    map[uint64]*record // keyed by SID
	reassembly map[fragKey]*reassemblyState

	muPayload sync.Mutex
}

// fragKey identifies the fragments of one originated bundle: per
// spec.md, fragments of the same bundle share source and create time.
type fragKey struct {
	source    ipn.Endpoint
	createSec uint64
	createSeq uint64
}

// reassemblyState accumulates fragments until every byte of
// [0, total) has arrived.
type reassemblyState struct {
	total    uint64
	pieces   map[uint64][]byte // fragment offset -> bytes
	received uint64
}

// reassembleFragment folds one arriving fragment into this bundle's
// reassembly buffer (keyed by source + creation time, per spec.md's
// fragmentation test vector) and returns the full payload once every
// byte of [0, PayLen) has arrived, or nil while fragments are still
// outstanding.
func (c *Channel) reassembleFragment(primary *block.Primary, payload []byte) []byte {
	c.muBundle.Lock()
	defer c.muBundle.Unlock()

	if c.reassembly == nil {
		c.reassembly = make(map[fragKey]*reassemblyState)
	}
	key := fragKey{source: primary.Source, createSec: primary.CreateSec, createSeq: primary.CreateSeq}
	st, ok := c.reassembly[key]
	if !ok {
		st = &reassemblyState{total: primary.PayLen, pieces: make(map[uint64][]byte)}
		c.reassembly[key] = st
	}
	if _, dup := st.pieces[primary.FragOffset]; !dup {
		st.pieces[primary.FragOffset] = append([]byte(nil), payload...)
		st.received += uint64(len(payload))
	}
	if st.received < st.total {
		return nil
	}
	delete(c.reassembly, key)

	full := make([]byte, 0, st.total)
	var off uint64
	for off < st.total {
		piece, ok := st.pieces[off]
		if !ok {
			return nil // gap: fragments didn't tile [0, total) contiguously
		}
		full = append(full, piece...)
		off += uint64(len(piece))
	}
	return full
}

// New creates a channel bound to local, bound to store for both its
// bundle and payload queues, and backed by active for custody tracking
// (may be nil if neither Config.RequestCustody nor custody acceptance on
// receive is ever exercised).
func New(local ipn.Endpoint, cfg Config, store storage.Store, active *active.Table) (*Channel, error) {
	bundleHandle, err := store.Create("")
	if err != nil {
		return nil, bpv6.WrapError(bpv6.FailedStore, err)
	}
	payloadHandle, err := store.Create("")
	if err != nil {
		return nil, bpv6.WrapError(bpv6.FailedStore, err)
	}
	return &Channel{
		Local:         local,
		Config:        cfg,
		Store:         store,
		BundleHandle:  bundleHandle,
		PayloadHandle: payloadHandle,
		Active:        active,
		records:       make(map[uint64]*record),
	}, nil
}

// bundleExpiry computes spec.md §3's expiry = createsec + lifetime (or
// NeverExpires when lifetime is 0), in DTN milliseconds.
func bundleExpiry(createSec, lifetime uint64) uint64 {
	if lifetime == 0 {
		return NeverExpires
	}
	return (createSec + lifetime) * 1000
}

// builtRecord is the product of assembling one outgoing bundle: the
// header bytes (every block but the payload bytes themselves) and the
// primary/CTEB/BIB structs used to populate a record for the records map.
type builtRecord struct {
	header  []byte
	primary *block.Primary
	cteb    *block.CTEB
	bib     *block.BIB
}

// assemble serializes primary, an optional CTEB, an optional BIB (whose
// security result is computed over payload), and any already-encoded
// extra blocks (forwarded-without-processing blocks carried through from
// a received bundle) followed by a payload block header, into a freshly
// allocated buffer sized to headerReserve.
func assemble(headerReserve int, primary *block.Primary, wantCTEB bool, custodian ipn.Endpoint, wantBIB bool, extra [][]byte, payload []byte) (*builtRecord, error) {
	buf := make([]byte, headerReserve)
	var flags sdnv.Flags

	n, err := block.WritePrimary(buf, primary, true, &flags)
	if err != nil {
		return nil, err
	}

	var cteb *block.CTEB
	if wantCTEB {
		cteb = &block.CTEB{Custodian: custodian.String()}
		written, err := block.WriteCTEB(buf[n:], cteb, true, &flags)
		if err != nil {
			return nil, err
		}
		// WriteCTEB's descriptors are relative to buf[n:]; rebase them to
		// the whole-buffer offsets Retransmit and AcceptCustody expect.
		cteb.Desc.CID.Index += n
		n += written
	}

	var bib *block.BIB
	if wantBIB {
		bib = &block.BIB{}
		written, err := block.WriteBIB(buf[n:], bib, payload, true, &flags)
		if err != nil {
			return nil, err
		}
		n += written
	}

	for _, blk := range extra {
		if n+len(blk) > len(buf) {
			return nil, bpv6.NewError(bpv6.BundleTooLarge)
		}
		n += copy(buf[n:], blk)
	}

	pay := &block.Payload{Size: uint64(len(payload))}
	written, err := block.WritePayload(buf[n:], pay, true, &flags)
	if err != nil {
		return nil, err
	}
	n += written

	return &builtRecord{header: buf[:n], primary: primary, cteb: cteb, bib: bib}, nil
}

// store enqueues built (header + payload bytes) into the bundle queue and
// records its bookkeeping entry, returning the assigned SID. Caller must
// hold muBundle.
func (c *Channel) store(ctx context.Context, built *builtRecord, payload []byte, expiry uint64) (uint64, error) {
	sid, err := c.Store.Enqueue(ctx, c.BundleHandle, built.header, payload)
	if err != nil {
		return 0, bpv6.WrapError(bpv6.FailedStore, err)
	}

	rec := &record{expiry: expiry}
	if built.cteb != nil {
		rec.hasCTEB = true
		rec.ctebCIDIndex = built.cteb.Desc.CID.Index
		rec.ctebCIDWidth = built.cteb.Desc.CID.Width
	}
	c.records[sid] = rec
	return sid, nil
}

// Send originates one or more bundles carrying payload, per spec.md
// §4.5.1. Fragmentation is greedy: min(MaxBundleLength, remaining) per
// fragment, offsets forming a contiguous, non-overlapping cover of
// [0, len(payload)).
func (c *Channel) Send(ctx context.Context, payload []byte) error {
	if !c.Config.Originate {
		return bpv6.NewError(bpv6.WrongOrigination)
	}
	if len(payload) > c.Config.MaxBundleLength && !c.Config.AllowFragmentation {
		return bpv6.NewError(bpv6.BundleTooLarge)
	}

	c.muBundle.Lock()
	defer c.muBundle.Unlock()

	createSec := dtntime.NowSec()
	expiry := bundleExpiry(createSec, c.Config.Lifetime)

	fragSize := len(payload)
	if c.Config.MaxBundleLength > 0 && fragSize > c.Config.MaxBundleLength {
		fragSize = c.Config.MaxBundleLength
	}
	numFragments := 1
	if fragSize > 0 {
		numFragments = (len(payload) + fragSize - 1) / fragSize
	}

	offset := 0
	for fragIndex := 0; fragIndex < numFragments; fragIndex++ {
		end := offset + fragSize
		if end > len(payload) {
			end = len(payload)
		}
		fragment := payload[offset:end]

		primary := &block.Primary{
			IsFrag:      numFragments > 1,
			AllowFrag:   c.Config.AllowFragmentation,
			CstRqst:     c.Config.RequestCustody,
			Destination: c.Config.Destination,
			Source:      c.Local,
			CreateSec:   createSec,
			CreateSeq:   c.createSeq,
			Lifetime:    c.Config.Lifetime,
			FragOffset:  uint64(offset),
			PayLen:      uint64(len(payload)),
		}
		if c.Config.RequestCustody {
			primary.Custodian = c.Local
		}

		built, err := assemble(c.Config.headerReserve(), primary, c.Config.RequestCustody, c.Local, c.Config.IntegrityCheck, nil, fragment)
		if err != nil {
			return err
		}

		if _, err := c.store(ctx, built, fragment, expiry); err != nil {
			return err
		}

		offset = end
	}

	c.createSeq++
	return nil
}
