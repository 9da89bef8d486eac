// Package routing is the maintenance and forwarding-table layer: a
// static destination-node-to-CLA-name table, plus a background
// processor that periodically sweeps every registered channel for
// expired bundles, grounded on pkg/node.NodeProcessor's
// Start/Stop/Wait lifecycle and original_source/app/bpcat.c's
// bplib_route_periodic_maintenance / _maintenance_request_wait.
package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dtnagent/bpv6/pkg/cla"
	"github.com/dtnagent/bpv6/pkg/dtntime"
	"github.com/dtnagent/bpv6/pkg/engine"
	"github.com/dtnagent/bpv6/pkg/ipn"
)

// MaxWait is bpcat's BPCAT_MAX_WAIT_MSEC: the maintenance loop wakes at
// least this often even with no explicit wake request.
const MaxWait = 250 * time.Millisecond

// Table maps a destination node number to the name of the CLA that
// reaches it, mirroring bplib_route_add's (destination, mask, intf_id)
// triples simplified to exact-node matches.
type Table struct {
	mu     sync.RWMutex
	routes map[uint64]string
	clas   map[string]cla.CLA
}

// NewTable constructs an empty routing table.
func NewTable() *Table {
	return &Table{routes: make(map[uint64]string), clas: make(map[string]cla.CLA)}
}

// AddRoute directs bundles for destination node to the CLA registered
// under claName.
func (t *Table) AddRoute(destinationNode uint64, claName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[destinationNode] = claName
}

// AddCLA registers a live CLA instance under name for Lookup/Send to use.
func (t *Table) AddCLA(name string, c cla.CLA) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clas[name] = c
}

// Lookup resolves the CLA serving destinationNode, if any.
func (t *Table) Lookup(destinationNode uint64) (cla.CLA, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.routes[destinationNode]
	if !ok {
		return nil, false
	}
	c, ok := t.clas[name]
	return c, ok
}

// Maintenance runs the periodic sweep of a set of channels: the
// background goroutine that keeps storage and the active table from
// accumulating expired bundles forever.
type Maintenance struct {
	logger   *slog.Logger
	channels []*engine.Channel
	wake     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[*engine.Channel]map[ipn.Endpoint][]uint64
}

// NewMaintenance constructs a maintenance processor over channels.
func NewMaintenance(channels []*engine.Channel, logger *slog.Logger) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{
		logger:   logger.With("service", "[ROUTE]"),
		channels: channels,
		wake:     make(chan struct{}, 1),
	}
}

// QueueAccepted records that ch accepted custody of cid on custodian's
// behalf, the Go-shaped equivalent of bplib_route_periodic_maintenance
// batching accepted CIDs between DACS generation passes: the next sweep
// folds every CID queued against the same (channel, custodian) pair into
// one aggregate custody signal instead of one bundle per acknowledgment.
func (m *Maintenance) QueueAccepted(ch *engine.Channel, custodian ipn.Endpoint, cid uint64) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.pending == nil {
		m.pending = make(map[*engine.Channel]map[ipn.Endpoint][]uint64)
	}
	byCustodian := m.pending[ch]
	if byCustodian == nil {
		byCustodian = make(map[ipn.Endpoint][]uint64)
		m.pending[ch] = byCustodian
	}
	byCustodian[custodian] = append(byCustodian[custodian], cid)
}

// RequestWake is bplib_route_maintenance_request_wait's trigger side:
// ask the maintenance loop to run a sweep now instead of waiting out
// MaxWait.
func (m *Maintenance) RequestWake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start runs the maintenance loop in a goroutine. Call Stop to stop it
// or cancel ctx; call Wait to block until it has exited.
func (m *Maintenance) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(MaxWait)
		defer ticker.Stop()
		m.logger.Info("starting maintenance loop")
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("exited maintenance loop")
				return
			case <-ticker.C:
				m.sweepAll()
			case <-m.wake:
				m.sweepAll()
			}
		}
	}()
	return nil
}

func (m *Maintenance) sweepAll() {
	now := dtntime.NowMs()
	for _, ch := range m.channels {
		ch.Sweep(now)
	}
	m.emitDACS()
}

// emitDACS drains the pending-accepted-CID queue and originates one DACS
// bundle per (channel, custodian) pair accumulated since the last sweep.
func (m *Maintenance) emitDACS() {
	m.pendingMu.Lock()
	pending := m.pending
	m.pending = nil
	m.pendingMu.Unlock()

	for ch, byCustodian := range pending {
		for custodian, cids := range byCustodian {
			if err := ch.EmitDACS(context.Background(), custodian, cids, true); err != nil {
				m.logger.Warn("failed to emit DACS", "custodian", custodian, "err", err)
			}
		}
	}
}

// Stop cancels the maintenance loop; Wait blocks until it exits.
func (m *Maintenance) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// Wait blocks until the maintenance loop has fully exited.
func (m *Maintenance) Wait() error {
	m.wg.Wait()
	return nil
}
