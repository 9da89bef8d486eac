package block

import (
	"github.com/dtnagent/bpv6/internal/sdnv"
)

// AdminRecordType identifies the kind of administrative record carried as
// a bundle's payload when the primary block's is_admin_rec flag is set.
// The type occupies the upper nibble of the record's first byte; the
// lower nibble carries record-specific flags (only the "succeeded" bit is
// used here, by AdminACS).
type AdminRecordType byte

const (
	AdminStatusReport   AdminRecordType = 0x10 // BP_STAT_REC_TYPE: recognized, not generated or consumed
	AdminCustodySignal  AdminRecordType = 0x20 // BP_CS_REC_TYPE: recognized, not generated or consumed
	AdminACS            AdminRecordType = 0x40 // BP_ACS_REC_TYPE: the only administrative record this agent fully processes

	adminSucceededFlag byte = 0x01
)

// RecordType extracts the administrative record type from an admin
// record's leading byte, discarding the flags nibble.
func RecordType(b byte) AdminRecordType {
	return AdminRecordType(b &^ 0x0F)
}

// CIDRange is a contiguous, inclusive run of custody IDs acknowledged by
// one DACS entry: CIDs Start, Start+1, ..., Start+Count-1.
type CIDRange struct {
	Start uint64
	Count uint64
}

// DACS is an aggregate custody signal: one outcome (succeeded or failed)
// applied to a list of custody-ID ranges. This implementation only emits
// and consumes the succeeded form, per spec.md's non-goal of custody
// status-report generation beyond the aggregate form.
type DACS struct {
	Succeeded bool
	Ranges    []CIDRange
}

// EncodeDACS renders d as an administrative-record payload: the
// AdminACS type/flags byte, an SDNV range count, then one (start, count)
// SDNV pair per range.
func EncodeDACS(d *DACS) []byte {
	flags := byte(0)
	if d.Succeeded {
		flags |= adminSucceededFlag
	}
	buf := []byte{byte(AdminACS) | flags}
	buf = append(buf, sdnv.Encode(uint64(len(d.Ranges)), 0)...)
	for _, r := range d.Ranges {
		buf = append(buf, sdnv.Encode(r.Start, 0)...)
		buf = append(buf, sdnv.Encode(r.Count, 0)...)
	}
	return buf
}

// DecodeDACS parses an administrative-record payload previously built by
// EncodeDACS. buf[0] is expected to already have been checked by the
// caller as AdminACS; flags accumulates any SDNV decode failures.
func DecodeDACS(buf []byte, flags *sdnv.Flags) *DACS {
	if len(buf) < 1 {
		*flags |= sdnv.FlagIncomplete
		return &DACS{}
	}
	d := &DACS{Succeeded: buf[0]&adminSucceededFlag != 0}

	countField := sdnv.Decode(buf, 1, flags)
	index := countField.Index + countField.Width
	for i := uint64(0); i < countField.Value; i++ {
		startField := sdnv.Decode(buf, index, flags)
		index = startField.Index + startField.Width
		countRangeField := sdnv.Decode(buf, index, flags)
		index = countRangeField.Index + countRangeField.Width
		d.Ranges = append(d.Ranges, CIDRange{Start: startField.Value, Count: countRangeField.Value})
	}
	return d
}
