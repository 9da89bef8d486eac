package block

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtnagent/bpv6/internal/sdnv"
)

func TestDACSRoundTrip(t *testing.T) {
	d := &DACS{
		Succeeded: true,
		Ranges:    []CIDRange{{Start: 1, Count: 3}, {Start: 100, Count: 1}},
	}

	buf := EncodeDACS(d)
	assert.Equal(t, AdminACS, RecordType(buf[0]))

	var flags sdnv.Flags
	got := DecodeDACS(buf, &flags)
	assert.Zero(t, flags)
	assert.True(t, got.Succeeded)
	assert.Equal(t, d.Ranges, got.Ranges)
}

func TestDACSEmptyRanges(t *testing.T) {
	d := &DACS{Succeeded: false}
	buf := EncodeDACS(d)

	var flags sdnv.Flags
	got := DecodeDACS(buf, &flags)
	assert.Zero(t, flags)
	assert.False(t, got.Succeeded)
	assert.Empty(t, got.Ranges)
}
