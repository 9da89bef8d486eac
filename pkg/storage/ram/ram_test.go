package ram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/pkg/storage"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	s := New()
	h, err := s.Create("")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Enqueue(ctx, h, []byte("m1"), []byte("first"))
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, h, []byte("m2"), []byte("second"))
	require.NoError(t, err)

	first, err := s.Dequeue(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "first", string(first.Payload))

	second, err := s.Dequeue(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "second", string(second.Payload))
}

func TestRetrieveThenRelinquish(t *testing.T) {
	s := New()
	h, err := s.Create("")
	require.NoError(t, err)

	sid, err := s.Enqueue(context.Background(), h, nil, []byte("payload"))
	require.NoError(t, err)

	obj, err := s.Retrieve(h, sid)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(obj.Payload))

	require.NoError(t, s.Relinquish(h, sid))
	_, err = s.Retrieve(h, sid)
	assert.Error(t, err)
}

func TestDequeueTimesOutWhenEmpty(t *testing.T) {
	s := New()
	h, err := s.Create("")
	require.NoError(t, err)

	ctx, cancel := storage.NewTimeoutContext(context.Background(), 0)
	defer cancel()

	_, err = s.Dequeue(ctx, h)
	kind, ok := bpv6.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bpv6.Timeout, kind)
}

func TestBlockForeverWaitsForEnqueue(t *testing.T) {
	s := New()
	h, err := s.Create("")
	require.NoError(t, err)

	ctx, cancel := storage.NewTimeoutContext(context.Background(), storage.BlockForever)
	defer cancel()

	done := make(chan storage.Object, 1)
	go func() {
		obj, _ := s.Dequeue(ctx, h)
		done <- obj
	}()

	time.Sleep(10 * time.Millisecond)
	_, err = s.Enqueue(context.Background(), h, nil, []byte("late"))
	require.NoError(t, err)

	select {
	case obj := <-done:
		assert.Equal(t, "late", string(obj.Payload))
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestDestroyInvalidatesHandle(t *testing.T) {
	s := New()
	h, err := s.Create("")
	require.NoError(t, err)
	require.NoError(t, s.Destroy(h))

	_, err = s.Enqueue(context.Background(), h, nil, nil)
	assert.Error(t, err)
}
