package block

import (
	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/crc"
	"github.com/dtnagent/bpv6/internal/sdnv"
)

const (
	bibFlagsWidth            = 1
	bibBlkLenWidth           = 4
	bibTargetCountWidth      = 1
	bibTargetTypeWidth       = 1
	bibTargetSequenceWidth   = 1
	bibCipherSuiteIDWidth    = 1
	bibCipherSuiteFlagsWidth = 1
	bibResultCountWidth      = 1
	bibResultLengthWidth     = 1

	// DefaultCipherSuite is the only cipher suite this implementation
	// speaks: a CRC-16/CCITT over the target payload bytes. The BIB's
	// cipher-suite ID is implementation-defined; this project's peers
	// must agree on this value out of band.
	DefaultCipherSuite uint64 = 1

	// resultByteLen is the width in bytes of a CRC-16 security result.
	resultByteLen = 2
)

// BIBDescriptors records offsets for the BIB fields that get rewritten
// in place: the block length (known only after the result is appended)
// and the result bytes themselves (recomputed per outgoing fragment).
type BIBDescriptors struct {
	Flags, BlkLen              sdnv.Field
	TargetCount, TargetType    sdnv.Field
	TargetSequence             sdnv.Field
	CipherSuiteID, CipherFlags sdnv.Field
	ResultCount, ResultLength  sdnv.Field
	ResultAt                   int
}

// BIB is the simplified BPSec-like bundle-integrity block: a single
// security target (the payload) and a single security result (CRC-16).
type BIB struct {
	BlockFlags       byte
	TargetSequence   uint64
	CipherSuiteID    uint64
	CipherSuiteFlags uint64
	ResultType       byte
	Result           uint16

	Desc BIBDescriptors
}

// Compute recomputes the security result for target: always a
// CRC-16/CCITT (DefaultCipherSuite). A BIB's CipherSuiteID is not
// consulted.
func Compute(target []byte) uint16 {
	var c crc.CRC16
	c.Block(target)
	return uint16(c)
}

// Verify reports whether b.Result matches the recomputed result over
// target.
func (b *BIB) Verify(target []byte) bool {
	return b.Result == Compute(target)
}

// WriteBIB serializes b into buf starting at offset 0, computing the
// security result over target.
func WriteBIB(buf []byte, b *BIB, target []byte, updateIndices bool, flags *sdnv.Flags) (int, error) {
	if len(buf) < 1 {
		return 0, bpv6.NewError(bpv6.ParmErr)
	}
	buf[0] = byte(TypeBIB)
	index := 1

	var err error
	index, err = writeField(buf, index, uint64(b.BlockFlags), bibFlagsWidth, updateIndices, &b.Desc.Flags)
	if err != nil {
		return 0, err
	}
	blkLenIndex := index
	index, err = writeField(buf, index, 0, bibBlkLenWidth, true, &b.Desc.BlkLen)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, 1, bibTargetCountWidth, updateIndices, &b.Desc.TargetCount)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, 1, bibTargetTypeWidth, updateIndices, &b.Desc.TargetType)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, b.TargetSequence, bibTargetSequenceWidth, updateIndices, &b.Desc.TargetSequence)
	if err != nil {
		return 0, err
	}
	cipherSuite := b.CipherSuiteID
	if cipherSuite == 0 {
		cipherSuite = DefaultCipherSuite
	}
	index, err = writeField(buf, index, cipherSuite, bibCipherSuiteIDWidth, updateIndices, &b.Desc.CipherSuiteID)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, b.CipherSuiteFlags, bibCipherSuiteFlagsWidth, updateIndices, &b.Desc.CipherFlags)
	if err != nil {
		return 0, err
	}
	index, err = writeField(buf, index, 1, bibResultCountWidth, updateIndices, &b.Desc.ResultCount)
	if err != nil {
		return 0, err
	}
	if index >= len(buf) {
		return 0, bpv6.NewError(bpv6.BundleParseErr)
	}
	buf[index] = b.ResultType
	index++
	index, err = writeField(buf, index, resultByteLen, bibResultLengthWidth, updateIndices, &b.Desc.ResultLength)
	if err != nil {
		return 0, err
	}

	result := Compute(target)
	b.Result = result
	if index+resultByteLen > len(buf) {
		return 0, bpv6.NewError(bpv6.BundleParseErr)
	}
	buf[index] = byte(result >> 8)
	buf[index+1] = byte(result)
	b.Desc.ResultAt = index
	index += resultByteLen

	blkLen := uint64(index - (blkLenIndex + bibBlkLenWidth))
	if err := sdnv.Rewrite(buf, sdnv.Field{Value: blkLen, Index: blkLenIndex, Width: bibBlkLenWidth}); err != nil {
		return 0, bpv6.WrapError(bpv6.BundleParseErr, err)
	}
	if updateIndices {
		b.Desc.BlkLen.Value = blkLen
	}

	return index, nil
}

// UpdateBIB recomputes the security result over target and rewrites it in
// place using a previously recorded descriptor — used once per outgoing
// fragment, since each fragment's payload bytes differ.
func UpdateBIB(buf []byte, b *BIB, target []byte) {
	result := Compute(target)
	b.Result = result
	buf[b.Desc.ResultAt] = byte(result >> 8)
	buf[b.Desc.ResultAt+1] = byte(result)
}

// ReadBIB parses a BIB starting at buf[0:]; buf[0] is expected to already
// have been checked by the caller as TypeBIB.
func ReadBIB(buf []byte, b *BIB, updateIndices bool, flags *sdnv.Flags) int {
	if len(buf) < 1 {
		*flags |= sdnv.FlagIncomplete
		return 0
	}
	index := 1

	var flagsVal uint64
	flagsVal, index = readField(buf, index, updateIndices, flags, &b.Desc.Flags)
	b.BlockFlags = byte(flagsVal)

	_, index = readField(buf, index, updateIndices, flags, &b.Desc.BlkLen)
	_, index = readField(buf, index, updateIndices, flags, &b.Desc.TargetCount)
	_, index = readField(buf, index, updateIndices, flags, &b.Desc.TargetType)
	b.TargetSequence, index = readField(buf, index, updateIndices, flags, &b.Desc.TargetSequence)
	b.CipherSuiteID, index = readField(buf, index, updateIndices, flags, &b.Desc.CipherSuiteID)
	b.CipherSuiteFlags, index = readField(buf, index, updateIndices, flags, &b.Desc.CipherFlags)
	_, index = readField(buf, index, updateIndices, flags, &b.Desc.ResultCount)

	if index >= len(buf) {
		*flags |= sdnv.FlagIncomplete
		return index
	}
	b.ResultType = buf[index]
	index++
	_, index = readField(buf, index, updateIndices, flags, &b.Desc.ResultLength)

	if index+resultByteLen > len(buf) {
		*flags |= sdnv.FlagIncomplete
		return index
	}
	b.Result = uint16(buf[index])<<8 | uint16(buf[index+1])
	if updateIndices {
		b.Desc.ResultAt = index
	}
	index += resultByteLen

	return index
}
