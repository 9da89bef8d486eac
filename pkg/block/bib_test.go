package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6/internal/sdnv"
)

func TestBIBRoundTripAndVerify(t *testing.T) {
	payload := []byte("hello dtn")
	b := &BIB{}

	buf := make([]byte, 64)
	var flags sdnv.Flags
	n, err := WriteBIB(buf, b, payload, true, &flags)
	require.NoError(t, err)
	assert.Zero(t, flags)
	assert.EqualValues(t, TypeBIB, buf[0])

	var got BIB
	consumed := ReadBIB(buf[:n], &got, true, &flags)
	assert.Equal(t, n, consumed)
	assert.True(t, got.Verify(payload))
	assert.False(t, got.Verify([]byte("tampered")))
}

func TestBIBUpdatePerFragment(t *testing.T) {
	b := &BIB{}
	buf := make([]byte, 64)
	var flags sdnv.Flags
	n, err := WriteBIB(buf, b, []byte("first"), true, &flags)
	require.NoError(t, err)

	UpdateBIB(buf, b, []byte("second fragment"))

	var got BIB
	ReadBIB(buf[:n], &got, false, &flags)
	assert.True(t, got.Verify([]byte("second fragment")))
	assert.False(t, got.Verify([]byte("first")))
}
