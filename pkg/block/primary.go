package block

import (
	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/internal/sdnv"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

// Primary processing-control flag bits, packed into the PCF field.
const (
	pcfIsFrag uint64 = 1 << iota
	pcfIsAdminRec
	pcfAllowFrag
	pcfCstRqst
)

// Fixed field widths of the primary block, reserved up front so later
// fields (createsec/createseq on origination, fragoffset/paylen per
// fragment) can be rewritten in place without re-serializing the block.
const (
	primaryPCFWidth       = 3
	primaryBlkLenWidth    = 1
	primaryNodeWidth      = 4
	primaryServWidth      = 2
	primaryCreateSecWidth = 6
	primaryCreateSeqWidth = 4
	primaryLifetimeWidth  = 4
	primaryDictLenWidth   = 1
	primaryFragWidth      = 4
)

// PrimaryDescriptors records the offset/width of every SDNV-backed field of
// a serialized primary block, populated on Read/Write when updateIndices is
// requested.
type PrimaryDescriptors struct {
	PCF, BlkLen                     sdnv.Field
	DstNode, DstServ                sdnv.Field
	SrcNode, SrcServ                sdnv.Field
	RptNode, RptServ                sdnv.Field
	CstNode, CstServ                sdnv.Field
	CreateSec, CreateSeq            sdnv.Field
	Lifetime, DictLen               sdnv.Field
	FragOffset, PayLen              sdnv.Field
}

// Primary is the BPv6 primary bundle block.
type Primary struct {
	Version uint8

	IsAdminRec bool
	IsFrag     bool
	AllowFrag  bool
	CstRqst    bool

	Destination ipn.Endpoint
	Source      ipn.Endpoint
	ReportTo    ipn.Endpoint
	Custodian   ipn.Endpoint

	CreateSec  uint64
	CreateSeq  uint64
	Lifetime   uint64
	DictLen    uint64
	FragOffset uint64
	PayLen     uint64

	Desc PrimaryDescriptors
}

// WritePrimary serializes p into buf starting at offset 0, returning the
// number of bytes written.
func WritePrimary(buf []byte, p *Primary, updateIndices bool, flags *sdnv.Flags) (int, error) {
	if len(buf) < 1 {
		return 0, bpv6.NewError(bpv6.ParmErr)
	}

	version := p.Version
	if version == 0 {
		version = DefaultVersion
	}
	buf[0] = version
	index := 1

	pcf := uint64(0)
	if p.IsFrag {
		pcf |= pcfIsFrag
	}
	if p.IsAdminRec {
		pcf |= pcfIsAdminRec
	}
	if p.AllowFrag {
		pcf |= pcfAllowFrag
	}
	if p.CstRqst {
		pcf |= pcfCstRqst
	}

	var err error
	index, err = writeField(buf, index, pcf, primaryPCFWidth, updateIndices, &p.Desc.PCF)
	if err != nil {
		return 0, err
	}
	blkLenIndex := index
	index, err = writeField(buf, index, 0, primaryBlkLenWidth, true, &p.Desc.BlkLen)
	if err != nil {
		return 0, err
	}
	for _, f := range []struct {
		val   uint64
		width int
		desc  *sdnv.Field
	}{
		{p.Destination.Node, primaryNodeWidth, &p.Desc.DstNode},
		{p.Destination.Service, primaryServWidth, &p.Desc.DstServ},
		{p.Source.Node, primaryNodeWidth, &p.Desc.SrcNode},
		{p.Source.Service, primaryServWidth, &p.Desc.SrcServ},
		{p.ReportTo.Node, primaryNodeWidth, &p.Desc.RptNode},
		{p.ReportTo.Service, primaryServWidth, &p.Desc.RptServ},
		{p.Custodian.Node, primaryNodeWidth, &p.Desc.CstNode},
		{p.Custodian.Service, primaryServWidth, &p.Desc.CstServ},
		{p.CreateSec, primaryCreateSecWidth, &p.Desc.CreateSec},
		{p.CreateSeq, primaryCreateSeqWidth, &p.Desc.CreateSeq},
		{p.Lifetime, primaryLifetimeWidth, &p.Desc.Lifetime},
		{p.DictLen, primaryDictLenWidth, &p.Desc.DictLen},
		{p.FragOffset, primaryFragWidth, &p.Desc.FragOffset},
		{p.PayLen, primaryFragWidth, &p.Desc.PayLen},
	} {
		index, err = writeField(buf, index, f.val, f.width, updateIndices, f.desc)
		if err != nil {
			return 0, err
		}
	}

	// Rewrite the reserved block-length slot now that the total is known:
	// the bytes following the length field itself.
	blkLen := uint64(index - (blkLenIndex + primaryBlkLenWidth))
	if err := sdnv.Rewrite(buf, sdnv.Field{Value: blkLen, Index: blkLenIndex, Width: primaryBlkLenWidth}); err != nil {
		return 0, bpv6.WrapError(bpv6.BundleParseErr, err)
	}
	if updateIndices {
		p.Desc.BlkLen.Value = blkLen
	}

	return index, nil
}

// ReadPrimary parses a primary block starting at buf[0:].
func ReadPrimary(buf []byte, p *Primary, updateIndices bool, flags *sdnv.Flags) int {
	if len(buf) < 1 {
		*flags |= sdnv.FlagIncomplete
		return 0
	}
	p.Version = buf[0]
	index := 1

	var pcf uint64
	pcf, index = readField(buf, index, updateIndices, flags, &p.Desc.PCF)
	p.IsFrag = pcf&pcfIsFrag != 0
	p.IsAdminRec = pcf&pcfIsAdminRec != 0
	p.AllowFrag = pcf&pcfAllowFrag != 0
	p.CstRqst = pcf&pcfCstRqst != 0

	_, index = readField(buf, index, updateIndices, flags, &p.Desc.BlkLen)

	p.Destination.Node, index = readField(buf, index, updateIndices, flags, &p.Desc.DstNode)
	p.Destination.Service, index = readField(buf, index, updateIndices, flags, &p.Desc.DstServ)
	p.Source.Node, index = readField(buf, index, updateIndices, flags, &p.Desc.SrcNode)
	p.Source.Service, index = readField(buf, index, updateIndices, flags, &p.Desc.SrcServ)
	p.ReportTo.Node, index = readField(buf, index, updateIndices, flags, &p.Desc.RptNode)
	p.ReportTo.Service, index = readField(buf, index, updateIndices, flags, &p.Desc.RptServ)
	p.Custodian.Node, index = readField(buf, index, updateIndices, flags, &p.Desc.CstNode)
	p.Custodian.Service, index = readField(buf, index, updateIndices, flags, &p.Desc.CstServ)
	p.CreateSec, index = readField(buf, index, updateIndices, flags, &p.Desc.CreateSec)
	p.CreateSeq, index = readField(buf, index, updateIndices, flags, &p.Desc.CreateSeq)
	p.Lifetime, index = readField(buf, index, updateIndices, flags, &p.Desc.Lifetime)
	p.DictLen, index = readField(buf, index, updateIndices, flags, &p.Desc.DictLen)
	p.FragOffset, index = readField(buf, index, updateIndices, flags, &p.Desc.FragOffset)
	p.PayLen, index = readField(buf, index, updateIndices, flags, &p.Desc.PayLen)

	return index
}
