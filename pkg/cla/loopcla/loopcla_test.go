package loopcla

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureListener struct {
	got chan []byte
}

func (c *captureListener) Handle(wire []byte) {
	c.got <- wire
}

func TestSendWithReceiveOwnLoopsBackLocally(t *testing.T) {
	c, err := NewLoopCLA("")
	require.NoError(t, err)
	impl := c.(*CLA)
	impl.receiveOwn = true

	listener := &captureListener{got: make(chan []byte, 1)}
	require.NoError(t, impl.Subscribe(listener))
	t.Cleanup(func() { _ = impl.Disconnect() })

	require.NoError(t, impl.Send([]byte("hello")))

	select {
	case got := <-listener.got:
		assert.Equal(t, []byte("hello"), got)
	default:
		t.Fatal("listener did not receive looped-back frame")
	}
}

func TestSendWithoutConnectionOrLoopbackFails(t *testing.T) {
	c, err := NewLoopCLA("")
	require.NoError(t, err)

	err = c.Send([]byte("x"))
	assert.Error(t, err)
}
