package audit

import (
	"container/list"

	"github.com/google/btree"
)

const btreeDegree = 32

// historyEntry is the google/btree.Item backing orderedHistory: a uint64
// key (term, view, log index, or sequence number) with a string value
// (leader/primary identity, operation descriptor, or request hash).
type historyEntry struct {
	key   uint64
	value string
}

func (e *historyEntry) Less(than btree.Item) bool {
	return e.key < than.(*historyEntry).key
}

// orderedHistory is a uint64-keyed, size-bounded mapping with smallest-key
// eviction. It backs each of the four consensus histories (leader, primary,
// Raft commit, PBFT commit); first-writer-wins conflict handling lives in
// the coordinator, not here.
type orderedHistory struct {
	tree *btree.BTree
}

func newOrderedHistory() *orderedHistory {
	return &orderedHistory{tree: btree.New(btreeDegree)}
}

// get returns the value stored for key and whether an entry exists.
func (h *orderedHistory) get(key uint64) (string, bool) {
	item := h.tree.Get(&historyEntry{key: key})
	if item == nil {
		return "", false
	}
	return item.(*historyEntry).value, true
}

// put inserts or overwrites (key, value) unconditionally. Callers are
// responsible for first-writer-wins semantics.
func (h *orderedHistory) put(key uint64, value string) {
	h.tree.ReplaceOrInsert(&historyEntry{key: key, value: value})
}

func (h *orderedHistory) len() int { return h.tree.Len() }

// evictSmallest removes the entry with the smallest key. No-op when empty.
func (h *orderedHistory) evictSmallest() {
	min := h.tree.Min()
	if min == nil {
		return
	}
	h.tree.Delete(min)
}

// errorSequence is the FIFO, insertion-ordered, size-bounded sequence of
// recorded error descriptions.
type errorSequence struct {
	entries *list.List
}

func newErrorSequence() *errorSequence {
	return &errorSequence{entries: list.New()}
}

func (s *errorSequence) pushBack(description string) {
	s.entries.PushBack(description)
}

// popFront removes and returns the oldest entry, if any.
func (s *errorSequence) popFront() (string, bool) {
	front := s.entries.Front()
	if front == nil {
		return "", false
	}
	s.entries.Remove(front)
	return front.Value.(string), true
}

func (s *errorSequence) len() int { return s.entries.Len() }

// strings returns a snapshot of the retained descriptions, oldest first.
func (s *errorSequence) strings() []string {
	out := make([]string, 0, s.entries.Len())
	for e := s.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(string))
	}
	return out
}
