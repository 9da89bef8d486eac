// Package loopcla is a TCP-based convergence-layer adapter primarily
// used for testing: it dials a broker address and exchanges
// length-prefixed bundle frames with whatever else is connected there,
// the DTN-domain analogue of the CANopen virtual CAN bus.
package loopcla

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dtnagent/bpv6/pkg/cla"
)

func init() {
	cla.RegisterInterface("loop", NewLoopCLA)
	cla.RegisterInterface("loopcla", NewLoopCLA)
}

// CLA is a length-prefixed-frame TCP convergence-layer adapter.
type CLA struct {
	logger     *slog.Logger
	mu         sync.Mutex
	channel    string
	conn       net.Conn
	receiveOwn bool
	listener   cla.FrameListener
	stopChan   chan bool
	wg         sync.WaitGroup
	isRunning  bool
}

// NewLoopCLA constructs a loopback CLA that will dial channel (a
// "host:port" broker address) on Connect.
func NewLoopCLA(channel string) (cla.CLA, error) {
	return &CLA{channel: channel, stopChan: make(chan bool), logger: slog.Default().With("service", "[LOOP]")}, nil
}

func serializeFrame(wire []byte) []byte {
	framed := make([]byte, 4, 4+len(wire))
	binary.BigEndian.PutUint32(framed, uint32(len(wire)))
	return append(framed, wire...)
}

// Connect dials the broker address given at construction.
func (c *CLA) Connect(...any) error {
	conn, err := net.Dial("tcp", c.channel)
	if err != nil {
		return err
	}
	c.conn = conn
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect stops the receive loop (if running) and closes the link.
func (c *CLA) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		c.stopChan <- true
		c.wg.Wait()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send writes wire, length-prefixed, to the connected peer. With no
// connection established, it still delivers locally when receiveOwn is
// set (single-process loopback testing, no broker needed).
func (c *CLA) Send(wire []byte) error {
	if c.receiveOwn && c.listener != nil {
		c.listener.Handle(append([]byte(nil), wire...))
	} else if c.conn == nil {
		return errors.New("loopcla: no active connection, abort send")
	}
	if c.conn != nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(50 * time.Millisecond))
		_, err := c.conn.Write(serializeFrame(wire))
		return err
	}
	return nil
}

// Subscribe registers listener and starts the receive loop once.
func (c *CLA) Subscribe(listener cla.FrameListener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
	if c.isRunning {
		return nil
	}
	c.wg.Add(1)
	c.isRunning = true
	go c.handleReception()
	return nil
}

func (c *CLA) handleReception() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopChan:
			c.isRunning = false
			return
		default:
		}
		if c.conn == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		header := make([]byte, 4)
		n, err := c.conn.Read(header)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			continue
		}
		if n < 4 || err != nil {
			continue
		}
		length := binary.BigEndian.Uint32(header)
		wire := make([]byte, length)
		_ = c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, err := readFull(c.conn, wire); err != nil {
			c.logger.Warn("frame read failed", "err", err)
			continue
		}
		if c.listener != nil {
			c.listener.Handle(wire)
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
