// Package ram implements an in-memory storage.Store, the default backing
// store for short-lived channels and for tests. Each queue keeps ready
// objects in a bounded channel of storage IDs — the "bounded channel
// instead of manual poll/errno" concurrency primitive — backed by a map for
// O(1) Retrieve/Relinquish random access.
package ram

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/pkg/storage"
)

// DefaultQueueDepth is used when a queue's capacity is not specified.
const DefaultQueueDepth = 256

type queue struct {
	mu      sync.Mutex
	objects map[uint64]storage.Object
	ready   chan uint64
}

// Store is an in-memory storage.Store.
type Store struct {
	mu         sync.Mutex
	queues     map[storage.Handle]*queue
	nextHandle storage.Handle
	nextSID    uint64

	// QueueDepth sizes newly created queues' ready channel. Zero selects
	// DefaultQueueDepth.
	QueueDepth int
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{queues: make(map[storage.Handle]*queue)}
}

func (s *Store) Create(params string) (storage.Handle, error) {
	_ = params
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := s.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	h := s.nextHandle
	s.nextHandle++
	s.queues[h] = &queue{
		objects: make(map[uint64]storage.Object),
		ready:   make(chan uint64, depth),
	}
	return h, nil
}

func (s *Store) lookup(h storage.Handle) (*queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[h]
	if !ok {
		return nil, bpv6.NewError(bpv6.ParmErr)
	}
	return q, nil
}

func (s *Store) Enqueue(ctx context.Context, h storage.Handle, meta, payload []byte) (uint64, error) {
	q, err := s.lookup(h)
	if err != nil {
		return 0, err
	}

	sid := atomic.AddUint64(&s.nextSID, 1)
	obj := storage.Object{SID: sid, Meta: append([]byte(nil), meta...), Payload: append([]byte(nil), payload...)}

	q.mu.Lock()
	q.objects[sid] = obj
	q.mu.Unlock()

	select {
	case q.ready <- sid:
		return sid, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.objects, sid)
		q.mu.Unlock()
		return 0, bpv6.WrapError(bpv6.Timeout, ctx.Err())
	}
}

func (s *Store) Dequeue(ctx context.Context, h storage.Handle) (storage.Object, error) {
	q, err := s.lookup(h)
	if err != nil {
		return storage.Object{}, err
	}

	select {
	case sid := <-q.ready:
		q.mu.Lock()
		obj, ok := q.objects[sid]
		q.mu.Unlock()
		if !ok {
			// Relinquished between being marked ready and dequeued.
			return storage.Object{}, bpv6.NewError(bpv6.CidNotFound)
		}
		return obj, nil
	case <-ctx.Done():
		return storage.Object{}, bpv6.WrapError(bpv6.Timeout, ctx.Err())
	}
}

func (s *Store) Retrieve(h storage.Handle, sid uint64) (storage.Object, error) {
	q, err := s.lookup(h)
	if err != nil {
		return storage.Object{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	obj, ok := q.objects[sid]
	if !ok {
		return storage.Object{}, bpv6.NewError(bpv6.CidNotFound)
	}
	return obj, nil
}

func (s *Store) Relinquish(h storage.Handle, sid uint64) error {
	q, err := s.lookup(h)
	if err != nil {
		return err
	}
	q.mu.Lock()
	delete(q.objects, sid)
	q.mu.Unlock()
	return nil
}

func (s *Store) Destroy(h storage.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[h]; !ok {
		return bpv6.NewError(bpv6.ParmErr)
	}
	delete(s.queues, h)
	return nil
}
