package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6/internal/sdnv"
)

func TestPayloadRoundTrip(t *testing.T) {
	p := &Payload{Size: 5}
	buf := make([]byte, 16)
	var flags sdnv.Flags
	n, err := WritePayload(buf, p, true, &flags)
	require.NoError(t, err)
	assert.EqualValues(t, TypePayload, buf[0])

	var got Payload
	consumed := ReadPayload(buf[:n], &got, true, &flags)
	assert.Equal(t, n, consumed)
	assert.EqualValues(t, 5, got.Size)
}

func TestGenericHeaderSkipsUnknownBlock(t *testing.T) {
	buf := []byte{0xEF, 0x00 /* flags */, 0x03 /* len */, 'a', 'b', 'c'}
	var flags sdnv.Flags
	h := ReadGenericHeader(buf, 0, &flags)

	assert.Equal(t, Type(0xEF), h.Type)
	assert.EqualValues(t, 3, h.Len)
	assert.Equal(t, 3, h.DataAt)
	assert.Zero(t, flags)
}

func TestGenericHeaderDeleteNoProcFlag(t *testing.T) {
	buf := []byte{0xEF, FlagDeleteNoProc, 0x00}
	var flags sdnv.Flags
	h := ReadGenericHeader(buf, 0, &flags)
	assert.NotZero(t, h.BlockFlags&FlagDeleteNoProc)
}
