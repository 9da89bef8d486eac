// Package file implements a durable storage.Store backed by BadgerDB, an
// embedded key-value store. Objects are namespaced by handle and keyed by a
// big-endian-encoded storage ID so BadgerDB's native key ordering doubles
// as FIFO order for Dequeue; a separate "ready" key per object is deleted
// on Dequeue while the object itself survives until Relinquish, so
// Retrieve can still serve retransmission lookups in between.
package file

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/dtnagent/bpv6"
	"github.com/dtnagent/bpv6/pkg/storage"
)

// PollInterval is how often Dequeue re-checks for a newly ready object
// when none was available on the first pass. BadgerDB has no blocking
// wait primitive, so this stands in for the channel-based wake used by
// the in-memory store.
const PollInterval = 20 * time.Millisecond

// Store is a BadgerDB-backed storage.Store.
type Store struct {
	mu         sync.Mutex
	dbs        map[storage.Handle]*badger.DB
	nextHandle storage.Handle
	nextSID    uint64

	// Dir is the filesystem root under which each handle gets its own
	// BadgerDB directory. Required before the first Create call.
	Dir string
}

// New constructs a file-backed store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir, dbs: make(map[storage.Handle]*badger.DB)}
}

func (s *Store) Create(params string) (storage.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.nextHandle
	s.nextHandle++

	path := params
	if path == "" {
		path = fmt.Sprintf("%s/handle-%d", s.Dir, int(h))
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return 0, bpv6.WrapError(bpv6.FailedStore, err)
	}
	s.dbs[h] = db
	return h, nil
}

func (s *Store) db(h storage.Handle) (*badger.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[h]
	if !ok {
		return nil, bpv6.NewError(bpv6.ParmErr)
	}
	return db, nil
}

func objectKey(sid uint64) []byte {
	key := make([]byte, len("obj:")+8)
	copy(key, "obj:")
	binary.BigEndian.PutUint64(key[4:], sid)
	return key
}

func readyKey(sid uint64) []byte {
	key := make([]byte, len("rdy:")+8)
	copy(key, "rdy:")
	binary.BigEndian.PutUint64(key[4:], sid)
	return key
}

func encodeObject(obj storage.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeObject(data []byte) (storage.Object, error) {
	var obj storage.Object
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&obj); err != nil {
		return storage.Object{}, err
	}
	return obj, nil
}

func (s *Store) Enqueue(ctx context.Context, h storage.Handle, meta, payload []byte) (uint64, error) {
	db, err := s.db(h)
	if err != nil {
		return 0, err
	}

	sid := atomic.AddUint64(&s.nextSID, 1)
	obj := storage.Object{SID: sid, Meta: meta, Payload: payload}
	encoded, err := encodeObject(obj)
	if err != nil {
		return 0, bpv6.WrapError(bpv6.FailedStore, err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(objectKey(sid), encoded); err != nil {
			return err
		}
		return txn.Set(readyKey(sid), []byte(strconv.FormatUint(sid, 10)))
	})
	if err != nil {
		return 0, bpv6.WrapError(bpv6.FailedStore, err)
	}
	return sid, nil
}

// oldestReady returns the smallest ready SID, if any, by scanning the
// "rdy:" key range (BadgerDB iterates keys in sorted order, and the
// big-endian encoding keeps numeric and lexical order aligned).
func oldestReady(db *badger.DB) (uint64, bool, error) {
	var sid uint64
	found := false

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("rdy:")
		it.Seek(prefix)
		if it.ValidForPrefix(prefix) {
			key := it.Item().Key()
			sid = binary.BigEndian.Uint64(key[len(prefix):])
			found = true
		}
		return nil
	})
	return sid, found, err
}

func (s *Store) Dequeue(ctx context.Context, h storage.Handle) (storage.Object, error) {
	db, err := s.db(h)
	if err != nil {
		return storage.Object{}, err
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		sid, found, err := oldestReady(db)
		if err != nil {
			return storage.Object{}, bpv6.WrapError(bpv6.FailedStore, err)
		}
		if found {
			var obj storage.Object
			err := db.Update(func(txn *badger.Txn) error {
				item, err := txn.Get(objectKey(sid))
				if err != nil {
					return err
				}
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				obj, err = decodeObject(raw)
				if err != nil {
					return err
				}
				return txn.Delete(readyKey(sid))
			})
			if err != nil {
				return storage.Object{}, bpv6.WrapError(bpv6.FailedStore, err)
			}
			return obj, nil
		}

		select {
		case <-ctx.Done():
			return storage.Object{}, bpv6.WrapError(bpv6.Timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Store) Retrieve(h storage.Handle, sid uint64) (storage.Object, error) {
	db, err := s.db(h)
	if err != nil {
		return storage.Object{}, err
	}

	var obj storage.Object
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(sid))
		if err == badger.ErrKeyNotFound {
			return bpv6.NewError(bpv6.CidNotFound)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		obj, err = decodeObject(raw)
		return err
	})
	if err != nil {
		if _, ok := bpv6.KindOf(err); ok {
			return storage.Object{}, err
		}
		return storage.Object{}, bpv6.WrapError(bpv6.FailedStore, err)
	}
	return obj, nil
}

func (s *Store) Relinquish(h storage.Handle, sid uint64) error {
	db, err := s.db(h)
	if err != nil {
		return err
	}
	err = db.Update(func(txn *badger.Txn) error {
		_ = txn.Delete(readyKey(sid))
		return txn.Delete(objectKey(sid))
	})
	if err != nil {
		return bpv6.WrapError(bpv6.FailedStore, err)
	}
	return nil
}

func (s *Store) Destroy(h storage.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[h]
	if !ok {
		return bpv6.NewError(bpv6.ParmErr)
	}
	delete(s.dbs, h)
	if err := db.Close(); err != nil {
		return bpv6.WrapError(bpv6.FailedStore, err)
	}
	return nil
}
