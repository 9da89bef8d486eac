package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6/internal/sdnv"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

func TestPrimaryRoundTrip(t *testing.T) {
	p := &Primary{
		CstRqst:     true,
		Destination: ipn.Endpoint{Node: 101, Service: 1},
		Source:      ipn.Endpoint{Node: 100, Service: 1},
		Custodian:   ipn.Endpoint{Node: 100, Service: 1},
		CreateSec:   1000,
		CreateSeq:   7,
		Lifetime:    60,
	}

	buf := make([]byte, 128)
	var wflags sdnv.Flags
	n, err := WritePrimary(buf, p, true, &wflags)
	require.NoError(t, err)
	assert.Zero(t, wflags)

	var got Primary
	var rflags sdnv.Flags
	consumed := ReadPrimary(buf[:n], &got, true, &rflags)

	assert.Zero(t, rflags)
	assert.Equal(t, n, consumed)
	assert.Equal(t, p.Destination, got.Destination)
	assert.Equal(t, p.Source, got.Source)
	assert.Equal(t, p.Custodian, got.Custodian)
	assert.Equal(t, p.CreateSec, got.CreateSec)
	assert.Equal(t, p.CreateSeq, got.CreateSeq)
	assert.Equal(t, p.Lifetime, got.Lifetime)
	assert.True(t, got.CstRqst)
	assert.False(t, got.IsFrag)
}

func TestPrimaryRewriteCreateSecAndSeq(t *testing.T) {
	p := &Primary{Destination: ipn.Endpoint{Node: 1}, Source: ipn.Endpoint{Node: 2}}
	buf := make([]byte, 128)
	var flags sdnv.Flags
	n, err := WritePrimary(buf, p, true, &flags)
	require.NoError(t, err)

	require.NoError(t, sdnv.Rewrite(buf, sdnv.Field{Value: 5000, Index: p.Desc.CreateSec.Index, Width: p.Desc.CreateSec.Width}))
	require.NoError(t, sdnv.Rewrite(buf, sdnv.Field{Value: 3, Index: p.Desc.CreateSeq.Index, Width: p.Desc.CreateSeq.Width}))

	var got Primary
	ReadPrimary(buf[:n], &got, false, &flags)
	assert.EqualValues(t, 5000, got.CreateSec)
	assert.EqualValues(t, 3, got.CreateSeq)
}

func TestPrimaryFragmentationFields(t *testing.T) {
	p := &Primary{
		IsFrag:      true,
		AllowFrag:   true,
		Destination: ipn.Endpoint{Node: 1},
		Source:      ipn.Endpoint{Node: 2},
		FragOffset:  100,
		PayLen:      250,
	}
	buf := make([]byte, 128)
	var flags sdnv.Flags
	n, err := WritePrimary(buf, p, true, &flags)
	require.NoError(t, err)

	var got Primary
	ReadPrimary(buf[:n], &got, false, &flags)
	assert.True(t, got.IsFrag)
	assert.True(t, got.AllowFrag)
	assert.EqualValues(t, 100, got.FragOffset)
	assert.EqualValues(t, 250, got.PayLen)
}
