package udpcla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnagent/bpv6/pkg/cla"
)

func TestNewUDPCLAParsesChannelString(t *testing.T) {
	c, err := NewUDPCLA("1:127.0.0.1:2")
	require.NoError(t, err)

	impl := c.(*CLA)
	assert.Equal(t, BasePort+1, impl.localPort)
	assert.Equal(t, BasePort+2, impl.remoteAddr.Port)
}

func TestNewUDPCLARejectsMalformedChannel(t *testing.T) {
	_, err := NewUDPCLA("not-a-channel-string")
	assert.Error(t, err)
}

func TestSendWithoutConnectFails(t *testing.T) {
	c, err := NewUDPCLA("1:127.0.0.1:2")
	require.NoError(t, err)
	err = c.Send([]byte("x"))
	assert.Error(t, err)
}

func TestConnectBindsLocalPortAndSendReceiveRoundTrip(t *testing.T) {
	a, err := cla.NewCLA("udpcla", "31:127.0.0.1:32")
	require.NoError(t, err)
	require.NoError(t, a.Connect())
	defer a.Disconnect()

	b, err := cla.NewCLA("udpcla", "32:127.0.0.1:31")
	require.NoError(t, err)
	require.NoError(t, b.Connect())
	defer b.Disconnect()

	got := make(chan []byte, 1)
	require.NoError(t, b.Subscribe(handlerFunc(func(wire []byte) { got <- wire })))

	require.NoError(t, a.Send([]byte("ping")))

	select {
	case wire := <-got:
		assert.Equal(t, []byte("ping"), wire)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for UDP round trip")
	}
}

type handlerFunc func(wire []byte)

func (f handlerFunc) Handle(wire []byte) { f(wire) }
