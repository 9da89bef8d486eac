package block

import (
	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/sdnv"
)

const (
	payFlagsWidth = 1
	payBlkLenWidth = 4
)

// PayloadDescriptors records the offset/width of the payload block's
// length field, rewritten once per outgoing fragment.
type PayloadDescriptors struct {
	Flags, BlkLen sdnv.Field
}

// Payload is the terminal block of every bundle: a block-type byte,
// processing flags, a length SDNV, then raw bytes.
type Payload struct {
	BlockFlags byte
	Size       uint64

	Desc PayloadDescriptors
}

// WritePayload serializes the payload block header (not the payload bytes
// themselves, which the caller appends directly after) into buf.
func WritePayload(buf []byte, p *Payload, updateIndices bool, flags *sdnv.Flags) (int, error) {
	if len(buf) < 1 {
		return 0, bpv6.NewError(bpv6.ParmErr)
	}
	buf[0] = byte(TypePayload)
	index := 1

	var err error
	index, err = writeField(buf, index, uint64(p.BlockFlags), payFlagsWidth, updateIndices, &p.Desc.Flags)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, p.Size, payBlkLenWidth, updateIndices, &p.Desc.BlkLen)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// ReadPayload parses the payload block header starting at buf[0:]; the
// payload bytes themselves are buf[consumed : consumed+p.Size]. buf[0] is
// expected to already have been checked by the caller as TypePayload.
func ReadPayload(buf []byte, p *Payload, updateIndices bool, flags *sdnv.Flags) int {
	if len(buf) < 1 {
		*flags |= sdnv.FlagIncomplete
		return 0
	}
	index := 1

	var flagsVal uint64
	flagsVal, index = readField(buf, index, updateIndices, flags, &p.Desc.Flags)
	p.BlockFlags = byte(flagsVal)
	p.Size, index = readField(buf, index, updateIndices, flags, &p.Desc.BlkLen)

	return index
}
