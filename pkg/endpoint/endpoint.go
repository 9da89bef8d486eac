// Package endpoint is the application-facing socket surface (C6):
// Bind/Connect/Send/Recv/Close over one engine.Channel, the Go-shaped
// equivalent of original_source/app/bpcat.c's bplib_open/_send/_recv.
package endpoint

import (
	"context"
	"errors"
	"time"

	"github.com/dtnagent/bpv6/pkg/engine"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

var (
	ErrAlreadyBound = errors.New("endpoint: already bound")
	ErrNotConnected = errors.New("endpoint: not connected")
	ErrClosed       = errors.New("endpoint: closed")
)

// Socket is one application's handle onto a bundle channel: Bind fixes
// the local endpoint a channel was already constructed for, Connect
// marks the socket connected (Send and Recv require it), and Recv drains
// delivered application payloads queued by engine.Channel.Receive.
type Socket struct {
	channel   *engine.Channel
	bound     bool
	connected bool
	remote    ipn.Endpoint
	closed    bool
}

// Create wraps channel, an already-configured engine channel, in a
// socket. Equivalent to bplib_open() once the caller has set up the
// route table and CLA.
func Create(channel *engine.Channel) *Socket {
	return &Socket{channel: channel}
}

// Bind records that this socket is actively serving local (the
// channel's own ipn.Endpoint is already fixed at construction; Bind
// just validates and marks the socket usable, matching a second bind
// attempt being rejected).
func (s *Socket) Bind(local ipn.Endpoint) error {
	if s.bound {
		return ErrAlreadyBound
	}
	if local != s.channel.Local {
		return errors.New("endpoint: local endpoint does not match channel")
	}
	s.bound = true
	return nil
}

// Connect records remote and marks the socket connected. Send does not
// read remote: bundles go to the channel's Config.Destination, fixed
// when the channel was constructed.
func (s *Socket) Connect(remote ipn.Endpoint) error {
	s.remote = remote
	s.connected = true
	return nil
}

// Send originates one bundle (or a sequence of fragments) carrying
// payload, blocking up to timeout for storage enqueue to complete.
func (s *Socket) Send(payload []byte, timeout time.Duration) error {
	if s.closed {
		return ErrClosed
	}
	if !s.connected {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.channel.Send(ctx, payload)
}

// Recv retrieves the next delivered application payload from the
// channel's payload queue, blocking up to timeout.
func (s *Socket) Recv(timeout time.Duration) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if !s.connected {
		return nil, ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	obj, err := s.channel.Store.Dequeue(ctx, s.channel.PayloadHandle)
	if err != nil {
		return nil, err
	}
	return obj.Payload, nil
}

// Close marks the socket unusable; the underlying channel and its
// storage handles are left intact for any other socket sharing them.
func (s *Socket) Close() error {
	s.closed = true
	return nil
}
