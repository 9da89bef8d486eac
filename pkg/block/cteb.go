package block

import (
	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/sdnv"
)

const (
	ctebFlagsWidth = 1
	ctebBlkLenWidth = 1
	ctebCidWidth    = 4
)

// CTEBDescriptors records the offset/width of the custody-transfer
// extension block's SDNV fields, most importantly CID — rewritten in place
// every time a channel allocates a fresh custody ID for a stored bundle.
type CTEBDescriptors struct {
	Flags, BlkLen, CID sdnv.Field
}

// CTEB is the custody-transfer extension block: a custody ID plus the
// custodian's EID string.
type CTEB struct {
	CID        uint64
	Custodian  string
	BlockFlags byte

	Desc CTEBDescriptors
}

// WriteCTEB serializes c into buf starting at offset 0.
func WriteCTEB(buf []byte, c *CTEB, updateIndices bool, flags *sdnv.Flags) (int, error) {
	if len(buf) < 1 {
		return 0, bpv6.NewError(bpv6.ParmErr)
	}
	buf[0] = byte(TypeCTEB)
	index := 1

	var err error
	index, err = writeField(buf, index, uint64(c.BlockFlags), ctebFlagsWidth, updateIndices, &c.Desc.Flags)
	if err != nil {
		return 0, err
	}
	blkLenIndex := index
	index, err = writeField(buf, index, 0, ctebBlkLenWidth, true, &c.Desc.BlkLen)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, c.CID, ctebCidWidth, updateIndices, &c.Desc.CID)
	if err != nil {
		return 0, err
	}

	eid := append([]byte(c.Custodian), 0)
	if index+len(eid) > len(buf) {
		return 0, bpv6.NewError(bpv6.BundleParseErr)
	}
	copy(buf[index:], eid)
	index += len(eid)

	blkLen := uint64(index - (blkLenIndex + ctebBlkLenWidth))
	if err := sdnv.Rewrite(buf, sdnv.Field{Value: blkLen, Index: blkLenIndex, Width: ctebBlkLenWidth}); err != nil {
		return 0, bpv6.WrapError(bpv6.BundleParseErr, err)
	}
	if updateIndices {
		c.Desc.BlkLen.Value = blkLen
	}

	return index, nil
}

// ReadCTEB parses a CTEB starting at buf[0:]; buf[0] is expected to already
// have been checked by the caller as TypeCTEB.
func ReadCTEB(buf []byte, c *CTEB, updateIndices bool, flags *sdnv.Flags) int {
	if len(buf) < 1 {
		*flags |= sdnv.FlagIncomplete
		return 0
	}
	index := 1

	var flagsVal uint64
	flagsVal, index = readField(buf, index, updateIndices, flags, &c.Desc.Flags)
	c.BlockFlags = byte(flagsVal)

	_, index = readField(buf, index, updateIndices, flags, &c.Desc.BlkLen)

	c.CID, index = readField(buf, index, updateIndices, flags, &c.Desc.CID)

	end := index
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	c.Custodian = string(buf[index:end])
	if end < len(buf) {
		end++ // consume the terminating NUL
	}
	return end
}
