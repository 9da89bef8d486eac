// Package udpcla is the real network convergence-layer adapter: one UDP
// socket per node, bound to a deterministic local port so two agents on
// the same host (or reachable over a LAN) can exchange bundles without
// any broker, grounded on original_source/app/bpcat.c's setup_cla.
package udpcla

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dtnagent/bpv6/pkg/cla"
)

func init() {
	cla.RegisterInterface("udp", NewUDPCLA)
	cla.RegisterInterface("udpcla", NewUDPCLA)
}

// BasePort is bpcat's node-to-port convention: a node binds
// BasePort+node on the loopback or host interface.
const BasePort = 36400

// maxDatagram is comfortably above any single BPv6 fragment this agent
// will ever originate (see engine.Config.MaxBundleLength).
const maxDatagram = 65507

// CLA is a UDP datagram convergence-layer adapter. channel is
// "localNode:remoteHost:remoteNode", e.g. "1:127.0.0.1:2" to bind port
// BasePort+1 and send to 127.0.0.1:BasePort+2.
type CLA struct {
	logger     *slog.Logger
	mu         sync.Mutex
	localPort  int
	remoteAddr *net.UDPAddr

	conn      *net.UDPConn
	listener  cla.FrameListener
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
}

// NewUDPCLA parses channel and constructs an unconnected CLA; Connect
// opens the socket.
func NewUDPCLA(channel string) (cla.CLA, error) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 {
		return nil, errors.New("udpcla: channel must be \"localNode:remoteHost:remoteNode\"")
	}
	localNode, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, err
	}
	remoteNode, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, err
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(parts[1], strconv.Itoa(BasePort+remoteNode)))
	if err != nil {
		return nil, err
	}
	return &CLA{
		logger:     slog.Default().With("service", "[UDP]"),
		localPort:  BasePort + localNode,
		remoteAddr: remoteAddr,
		stopChan:   make(chan struct{}),
	}, nil
}

// Connect binds the local UDP port.
func (c *CLA) Connect(...any) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: c.localPort})
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Disconnect stops the receive loop and closes the socket.
func (c *CLA) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		close(c.stopChan)
		c.wg.Wait()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send writes one datagram to the configured remote. A connection
// refused error (the peer not yet listening, or having restarted) is
// treated as transient, per spec: it's logged, not returned up as a
// hard failure, since a later retransmission attempt may succeed.
func (c *CLA) Send(wire []byte) error {
	if c.conn == nil {
		return errors.New("udpcla: not connected")
	}
	if len(wire) > maxDatagram {
		return errors.New("udpcla: bundle too large for one datagram")
	}
	_, err := c.conn.WriteToUDP(wire, c.remoteAddr)
	if isTransient(err) {
		c.logger.Warn("transient send failure, will retry on retransmission", "err", err)
		return nil
	}
	return err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused")
}

// Subscribe registers listener and starts the receive loop once.
func (c *CLA) Subscribe(listener cla.FrameListener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
	if c.isRunning || c.conn == nil {
		return nil
	}
	c.wg.Add(1)
	c.isRunning = true
	go c.handleReception()
	return nil
}

func (c *CLA) handleReception() {
	defer c.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := c.conn.ReadFromUDP(buf)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			continue
		}
		if err != nil {
			continue
		}
		if c.listener != nil {
			wire := append([]byte(nil), buf[:n]...)
			c.listener.Handle(wire)
		}
	}
}
