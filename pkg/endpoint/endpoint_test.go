package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6/pkg/active"
	"github.com/dtnagent/bpv6/pkg/engine"
	"github.com/dtnagent/bpv6/pkg/ipn"
	"github.com/dtnagent/bpv6/pkg/storage/ram"
)

func newTestSocket(t *testing.T, local, remote ipn.Endpoint) *Socket {
	t.Helper()
	store := ram.New()
	tbl, err := active.New(16)
	require.NoError(t, err)
	ch, err := engine.New(local, engine.Config{
		Destination:     remote,
		Originate:       true,
		Lifetime:        3600,
		MaxBundleLength: 4096,
	}, store, tbl)
	require.NoError(t, err)
	return Create(ch)
}

func TestBindTwiceReturnsErrAlreadyBound(t *testing.T) {
	local := ipn.Endpoint{Node: 1, Service: 1}
	remote := ipn.Endpoint{Node: 2, Service: 1}
	sock := newTestSocket(t, local, remote)

	require.NoError(t, sock.Bind(local))
	assert.ErrorIs(t, sock.Bind(local), ErrAlreadyBound)
}

func TestSendAfterCloseFails(t *testing.T) {
	local := ipn.Endpoint{Node: 1, Service: 1}
	remote := ipn.Endpoint{Node: 2, Service: 1}
	sock := newTestSocket(t, local, remote)

	require.NoError(t, sock.Close())
	err := sock.Send([]byte("x"), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSendBeforeConnectFails(t *testing.T) {
	local := ipn.Endpoint{Node: 1, Service: 1}
	remote := ipn.Endpoint{Node: 2, Service: 1}
	sock := newTestSocket(t, local, remote)

	_, recvErr := sock.Recv(10 * time.Millisecond)
	assert.ErrorIs(t, recvErr, ErrNotConnected)

	sendErr := sock.Send([]byte("x"), time.Second)
	assert.ErrorIs(t, sendErr, ErrNotConnected)
}

func TestSendEnqueuesForEgress(t *testing.T) {
	local := ipn.Endpoint{Node: 1, Service: 1}
	remote := ipn.Endpoint{Node: 2, Service: 1}
	sock := newTestSocket(t, local, remote)
	require.NoError(t, sock.Connect(remote))

	require.NoError(t, sock.Send([]byte("round-trip"), time.Second))
}
