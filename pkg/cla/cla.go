// Package cla defines the convergence-layer adapter boundary: the
// interface every link-layer transport implements to move bundle bytes
// between this agent and a neighbor, plus a registry so a configuration
// file can name an interface type by string.
package cla

import "fmt"

// FrameListener receives one bundle's raw wire bytes off a CLA.
type FrameListener interface {
	Handle(wire []byte)
}

// CLA is a convergence-layer adapter: something that can move bundle
// bytes to and from one neighbor or broadcast domain.
type CLA interface {
	Connect(...any) error                  // establish the underlying link
	Disconnect() error                     // tear the link down
	Send(wire []byte) error                // transmit one bundle's bytes
	Subscribe(callback FrameListener) error // register the receive callback
}

// NewInterfaceFunc constructs a CLA bound to channel (e.g. an address or
// file path, interpreted per interface type).
type NewInterfaceFunc func(channel string) (CLA, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// RegisterInterface makes a CLA type available to NewCLA under name.
// Call this from an init() function of the package implementing it.
func RegisterInterface(name string, newInterface NewInterfaceFunc) {
	interfaceRegistry[name] = newInterface
}

// NewCLA constructs a CLA of the named, previously registered type.
func NewCLA(name string, channel string) (CLA, error) {
	create, ok := interfaceRegistry[name]
	if !ok {
		return nil, fmt.Errorf("cla: unsupported interface %q", name)
	}
	return create(channel)
}
