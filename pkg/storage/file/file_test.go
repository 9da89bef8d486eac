package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6"
)

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	h, err := s.Create("")
	require.NoError(t, err)

	sid, err := s.Enqueue(context.Background(), h, []byte("meta"), []byte("payload"))
	require.NoError(t, err)
	assert.NotZero(t, sid)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	obj, err := s.Dequeue(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, sid, obj.SID)
	assert.Equal(t, []byte("meta"), obj.Meta)
	assert.Equal(t, []byte("payload"), obj.Payload)
}

func TestDequeueTimesOutWhenEmpty(t *testing.T) {
	s := New(t.TempDir())
	h, err := s.Create("")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Dequeue(ctx, h)
	assert.Error(t, err)
}

func TestRetrieveSurvivesDequeue(t *testing.T) {
	s := New(t.TempDir())
	h, err := s.Create("")
	require.NoError(t, err)

	sid, err := s.Enqueue(context.Background(), h, nil, []byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = s.Dequeue(ctx, h)
	require.NoError(t, err)

	obj, err := s.Retrieve(h, sid)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), obj.Payload)
}

func TestRetrieveUnknownSidReportsCidNotFound(t *testing.T) {
	s := New(t.TempDir())
	h, err := s.Create("")
	require.NoError(t, err)

	_, err = s.Retrieve(h, 999)
	kind, ok := bpv6.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bpv6.CidNotFound, kind)
}

func TestRelinquishRemovesObject(t *testing.T) {
	s := New(t.TempDir())
	h, err := s.Create("")
	require.NoError(t, err)

	sid, err := s.Enqueue(context.Background(), h, nil, []byte("gone"))
	require.NoError(t, err)

	require.NoError(t, s.Relinquish(h, sid))
	_, err = s.Retrieve(h, sid)
	assert.Error(t, err)
}
