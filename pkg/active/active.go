// Package active implements the active-transmission table (C3): a
// fixed-capacity hash table mapping custody IDs to in-flight bundle
// handles, combining Robin-Hood open addressing for O(1) amortized
// lookup with a doubly-linked age list for LRU-style expiry sweeps. The
// algorithm is ported directly from this project's original C hash table,
// including its Robin-Hood displacement and age-list bookkeeping; only the
// pointer representation changes, from raw memory addresses to an arena of
// slots addressed by Index.
package active

import (
	"math"
	"sync"

	"github.com/dtnagent/bpv6"
)

// Index addresses a slot in the table's backing arena. NullIndex is the
// max-value sentinel (0 is a valid index, so it cannot double as "none").
type Index int32

// NullIndex marks the absence of a probe-chain or age-list neighbor.
const NullIndex Index = math.MaxInt32

// Entry is the value half of an active-table mapping: a custody ID's
// storage handle and retransmit deadline.
type Entry struct {
	CID      uint64
	SID      uint64
	Deadline uint64
}

type slot struct {
	entry    Entry
	occupied bool

	// next/prev link the probe chain for the entry's home bucket.
	next, prev Index
	// before/after link the table-wide age list (oldest..newest).
	before, after Index
}

// Table is a fixed-capacity active-transmission table. The zero value is
// not usable; construct with New.
type Table struct {
	mu    sync.Mutex
	slots []slot

	numEntries     int
	oldest, newest Index
}

// New allocates a table with the given capacity.
func New(capacity int) (*Table, error) {
	if capacity <= 0 || int64(capacity) > int64(NullIndex) {
		return nil, bpv6.NewError(bpv6.ParmErr)
	}
	t := &Table{
		slots:  make([]slot, capacity),
		oldest: NullIndex,
		newest: NullIndex,
	}
	for i := range t.slots {
		t.slots[i].next = NullIndex
		t.slots[i].prev = NullIndex
		t.slots[i].before = NullIndex
		t.slots[i].after = NullIndex
	}
	return t, nil
}

func (t *Table) home(cid uint64) Index {
	return Index(cid % uint64(len(t.slots)))
}

// writeNode installs entry into slot index as a fresh (not Robin-Hood
// displaced) occupant and appends it to the age list as newest.
func (t *Table) writeNode(index Index, entry Entry) {
	s := &t.slots[index]
	s.entry = entry
	s.occupied = true
	s.next = NullIndex
	s.prev = NullIndex
	s.after = NullIndex
	s.before = t.newest

	if t.oldest == NullIndex {
		t.oldest = index
		t.newest = index
	} else {
		t.slots[t.newest].after = index
		t.newest = index
	}
}

// overwriteNode replaces the occupant of index in place and moves it to
// the newest end of the age list, or reports DuplicateCid if the caller
// asked not to overwrite.
func (t *Table) overwriteNode(index Index, entry Entry, overwrite bool) error {
	if !overwrite {
		return bpv6.NewError(bpv6.DuplicateCid)
	}

	s := &t.slots[index]
	s.entry = entry

	if index == t.newest {
		return nil
	}

	beforeIndex := s.before
	afterIndex := s.after
	if beforeIndex != NullIndex {
		t.slots[beforeIndex].after = afterIndex
	} else {
		t.oldest = afterIndex
	}
	t.slots[afterIndex].before = beforeIndex

	s.after = NullIndex
	s.before = t.newest
	t.slots[t.newest].after = index
	t.newest = index

	return nil
}

// Add inserts entry under cid. Home bucket is cid % capacity. A collision
// in the home slot with the same CID either overwrites in place or returns
// DuplicateCid; a collision with a different CID probes forward to the
// first vacant slot, inserting at the end of the chain directly if the
// home slot is itself the chain head, or performing a Robin-Hood swap
// (displacing the home occupant into the newly found slot) if not.
func (t *Table) Add(cid uint64, entry Entry, overwrite bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry.CID = cid
	currIndex := t.home(cid)

	if !t.slots[currIndex].occupied {
		t.writeNode(currIndex, entry)
		t.numEntries++
		return nil
	}

	if t.slots[currIndex].entry.CID == cid {
		return t.overwriteNode(currIndex, entry, overwrite)
	}

	endIndex := currIndex
	scanIndex := t.slots[currIndex].next
	for scanIndex != NullIndex {
		if t.slots[scanIndex].entry.CID == cid {
			return t.overwriteNode(scanIndex, entry, overwrite)
		}
		endIndex = scanIndex
		scanIndex = t.slots[scanIndex].next
	}

	openIndex := Index((int(currIndex) + 1) % len(t.slots))
	for t.slots[openIndex].occupied && openIndex != currIndex {
		openIndex = Index((int(openIndex) + 1) % len(t.slots))
	}
	if openIndex == currIndex {
		return bpv6.NewError(bpv6.ActiveTableFull)
	}

	if t.slots[currIndex].prev == NullIndex {
		// The home bucket is the head of its own chain: append directly.
		t.writeNode(openIndex, entry)
		t.slots[endIndex].next = openIndex
		t.slots[openIndex].prev = endIndex
	} else {
		// Robin-Hood swap: the home bucket displaced another chain's
		// probe sequence, so move its current occupant to the open slot
		// and give the home bucket to the new entry.
		nextIndex := t.slots[currIndex].next
		prevIndex := t.slots[currIndex].prev

		if nextIndex != NullIndex {
			t.slots[nextIndex].prev = prevIndex
		}
		if prevIndex != NullIndex {
			t.slots[prevIndex].next = nextIndex
		}
		if endIndex == currIndex {
			// The occupant was its chain's tail; after the unlink above
			// its predecessor is the tail.
			endIndex = prevIndex
		}

		t.slots[endIndex].next = openIndex
		t.slots[openIndex].entry = t.slots[currIndex].entry
		t.slots[openIndex].occupied = true
		t.slots[openIndex].next = NullIndex
		t.slots[openIndex].prev = endIndex
		t.slots[openIndex].after = t.slots[currIndex].after
		t.slots[openIndex].before = t.slots[currIndex].before

		afterIndex := t.slots[currIndex].after
		beforeIndex := t.slots[currIndex].before
		if afterIndex != NullIndex {
			t.slots[afterIndex].before = openIndex
		}
		if beforeIndex != NullIndex {
			t.slots[beforeIndex].after = openIndex
		}
		if t.oldest == currIndex {
			t.oldest = openIndex
			t.slots[t.oldest].before = NullIndex
		}
		if t.newest == currIndex {
			t.newest = openIndex
		}

		t.writeNode(currIndex, entry)
	}

	t.numEntries++
	return nil
}

// Remove walks the probe chain from cid's home bucket, unlinks the match
// from both the age list and the probe chain, and — if the matched slot
// was not the chain tail — moves the tail entry into the vacated slot so
// the chain stays contiguous.
func (t *Table) Remove(cid uint64) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	currIndex := t.home(cid)
	if t.slots[currIndex].occupied {
		for currIndex != NullIndex {
			if t.slots[currIndex].entry.CID == cid {
				break
			}
			currIndex = t.slots[currIndex].next
		}
	} else {
		currIndex = NullIndex
	}

	if currIndex == NullIndex {
		return Entry{}, bpv6.NewError(bpv6.CidNotFound)
	}

	removed := t.slots[currIndex].entry

	afterIndex := t.slots[currIndex].after
	beforeIndex := t.slots[currIndex].before
	if afterIndex != NullIndex {
		t.slots[afterIndex].before = beforeIndex
	}
	if beforeIndex != NullIndex {
		t.slots[beforeIndex].after = afterIndex
	}
	if currIndex == t.newest {
		t.newest = beforeIndex
	}
	if currIndex == t.oldest {
		t.oldest = afterIndex
	}

	endIndex := currIndex
	nextIndex := t.slots[currIndex].next
	if nextIndex != NullIndex {
		endIndex = nextIndex
		for t.slots[endIndex].next != NullIndex {
			endIndex = t.slots[endIndex].next
		}

		t.slots[currIndex].entry = t.slots[endIndex].entry
		t.slots[currIndex].before = t.slots[endIndex].before
		t.slots[currIndex].after = t.slots[endIndex].after

		afterIndex = t.slots[endIndex].after
		beforeIndex = t.slots[endIndex].before
		if afterIndex != NullIndex {
			t.slots[afterIndex].before = currIndex
		}
		if beforeIndex != NullIndex {
			t.slots[beforeIndex].after = currIndex
		}
		if endIndex == t.newest {
			t.newest = currIndex
		}
		if endIndex == t.oldest {
			t.oldest = currIndex
		}
	}

	t.slots[endIndex].occupied = false

	prevIndex := t.slots[endIndex].prev
	if prevIndex != NullIndex {
		t.slots[prevIndex].next = NullIndex
	}

	t.numEntries--
	return removed, nil
}

// Next returns the oldest entry without removing it, for use by the
// expiry sweep.
func (t *Table) Next() (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.oldest == NullIndex {
		return Entry{}, bpv6.NewError(bpv6.CidNotFound)
	}
	return t.slots[t.oldest].entry, nil
}

// Available reports whether the table has room for at least one more
// entry.
func (t *Table) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numEntries < len(t.slots)
}

// Count returns the number of occupied entries.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numEntries
}

// Capacity returns the table's fixed slot count.
func (t *Table) Capacity() int {
	return len(t.slots)
}
