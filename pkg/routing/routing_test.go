package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6/pkg/active"
	"github.com/dtnagent/bpv6/pkg/cla"
	"github.com/dtnagent/bpv6/pkg/engine"
	"github.com/dtnagent/bpv6/pkg/ipn"
	"github.com/dtnagent/bpv6/pkg/storage/ram"
)

type fakeCLA struct{}

func (fakeCLA) Connect(...any) error                { return nil }
func (fakeCLA) Disconnect() error                   { return nil }
func (fakeCLA) Send(wire []byte) error               { return nil }
func (fakeCLA) Subscribe(l cla.FrameListener) error { return nil }

func TestTableLookupResolvesRegisteredRoute(t *testing.T) {
	tbl := NewTable()
	tbl.AddCLA("loop", fakeCLA{})
	tbl.AddRoute(2, "loop")

	c, ok := tbl.Lookup(2)
	assert.True(t, ok)
	assert.NotNil(t, c)

	_, ok = tbl.Lookup(99)
	assert.False(t, ok)
}

func TestMaintenanceSweepsExpiredBundlesOnWake(t *testing.T) {
	local := ipn.Endpoint{Node: 1, Service: 1}
	remote := ipn.Endpoint{Node: 2, Service: 1}
	store := ram.New()
	atbl, err := active.New(16)
	require.NoError(t, err)
	ch, err := engine.New(local, engine.Config{
		Destination:     remote,
		Originate:       true,
		Lifetime:        1,
		MaxBundleLength: 4096,
	}, store, atbl)
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), []byte("expires-fast")))

	maint := NewMaintenance([]*engine.Channel{ch}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, maint.Start(ctx))
	defer func() {
		maint.Stop()
		maint.Wait()
	}()

	maint.RequestWake()
	time.Sleep(50 * time.Millisecond)
}

func TestMaintenanceEmitsQueuedDACSOnSweep(t *testing.T) {
	local := ipn.Endpoint{Node: 1, Service: 1}
	custodian := ipn.Endpoint{Node: 3, Service: 1}
	store := ram.New()
	atbl, err := active.New(16)
	require.NoError(t, err)
	ch, err := engine.New(local, engine.Config{MaxBundleLength: 4096}, store, atbl)
	require.NoError(t, err)

	maint := NewMaintenance([]*engine.Channel{ch}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, maint.Start(ctx))
	defer func() {
		maint.Stop()
		maint.Wait()
	}()

	maint.QueueAccepted(ch, custodian, 7)
	maint.RequestWake()

	dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), time.Second)
	defer dequeueCancel()
	obj, err := store.Dequeue(dequeueCtx, ch.BundleHandle)
	require.NoError(t, err)
	assert.NotEmpty(t, obj.Payload)
}
