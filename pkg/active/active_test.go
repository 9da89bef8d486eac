package active

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6"
)

func TestAddRemoveRoundTrip(t *testing.T) {
	tbl, err := New(16)
	require.NoError(t, err)

	require.NoError(t, tbl.Add(5, Entry{SID: 100}, false))
	assert.Equal(t, 1, tbl.Count())

	got, err := tbl.Remove(5)
	require.NoError(t, err)
	assert.EqualValues(t, 100, got.SID)
	assert.Equal(t, 0, tbl.Count())
}

func TestAddDuplicateWithoutOverwrite(t *testing.T) {
	tbl, err := New(4)
	require.NoError(t, err)

	require.NoError(t, tbl.Add(1, Entry{SID: 1}, false))
	err = tbl.Add(1, Entry{SID: 2}, false)

	kind, ok := bpv6.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bpv6.DuplicateCid, kind)

	got, err := tbl.Remove(1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.SID, "original entry must be unchanged")
}

func TestAddDuplicateWithOverwrite(t *testing.T) {
	tbl, err := New(4)
	require.NoError(t, err)

	require.NoError(t, tbl.Add(1, Entry{SID: 1}, false))
	require.NoError(t, tbl.Add(1, Entry{SID: 2}, true))

	got, err := tbl.Remove(1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.SID)
}

func TestAddToFullTableReportsActiveTableFullWithoutMutating(t *testing.T) {
	tbl, err := New(2)
	require.NoError(t, err)

	require.NoError(t, tbl.Add(1, Entry{SID: 1}, false))
	require.NoError(t, tbl.Add(2, Entry{SID: 2}, false))

	err = tbl.Add(3, Entry{SID: 3}, false)
	kind, ok := bpv6.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bpv6.ActiveTableFull, kind)
	assert.Equal(t, 2, tbl.Count())

	_, err = tbl.Remove(3)
	assert.Error(t, err, "table must not have been mutated by the failed insert")
}

func TestNextReturnsOldestWithoutRemoving(t *testing.T) {
	tbl, err := New(8)
	require.NoError(t, err)

	require.NoError(t, tbl.Add(10, Entry{SID: 10}, false))
	require.NoError(t, tbl.Add(20, Entry{SID: 20}, false))

	oldest, err := tbl.Next()
	require.NoError(t, err)
	assert.EqualValues(t, 10, oldest.CID)
	assert.Equal(t, 2, tbl.Count(), "Next must not remove")
}

func TestCapacityNeverExceeded(t *testing.T) {
	tbl, err := New(3)
	require.NoError(t, err)
	for i := uint64(0); i < 3; i++ {
		require.NoError(t, tbl.Add(i, Entry{SID: i}, false))
	}
	assert.False(t, tbl.Available())
	assert.Equal(t, 3, tbl.Count())
}

// TestRobinHoodStress mirrors the concrete scenario from the testable
// properties: a table of capacity 16, four CIDs that all hash to bucket 0
// (cid % 16 == 0), followed by a CID that hashes elsewhere but whose probe
// sequence crosses the occupied chain.
func TestRobinHoodStress(t *testing.T) {
	tbl, err := New(16)
	require.NoError(t, err)

	colliding := []uint64{0, 16, 32, 48}
	for _, cid := range colliding {
		require.NoError(t, tbl.Add(cid, Entry{SID: cid}, false))
	}
	require.NoError(t, tbl.Add(1, Entry{SID: 1}, false))

	assert.Equal(t, 5, tbl.Count())

	all := append(append([]uint64{}, colliding...), 1)
	for _, cid := range all {
		got, err := tbl.Remove(cid)
		require.NoError(t, err, "cid %d must be retrievable", cid)
		assert.Equal(t, cid, got.SID)
	}
	assert.Equal(t, 0, tbl.Count())
}

func TestRemoveUnknownCidReportsCidNotFound(t *testing.T) {
	tbl, err := New(4)
	require.NoError(t, err)

	_, err = tbl.Remove(99)
	kind, ok := bpv6.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bpv6.CidNotFound, kind)
}
