package storage

import (
	"bytes"
	"sync"

	"github.com/tidwall/btree"
)

// Memory is an ordered in-memory Store backed by a copy-on-write B-tree.
// A transaction reads from an O(1) copy of the committed tree and records
// its own writes; Commit replays those writes onto whatever tree is
// committed at that moment, so a commit never erases keys another
// transaction published after this one began. Intended for tests and
// single-process deployments.
type Memory struct {
	mu   sync.Mutex
	tree *btree.Map[string, []byte]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tree: new(btree.Map[string, []byte])}
}

// Begin snapshots the committed tree.
func (m *Memory) Begin() Tx {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memoryTx{store: m, tree: m.tree.Copy(), writes: make(map[string]memWrite)}
}

// Close releases the store. No-op for the in-memory backend.
func (m *Memory) Close() error { return nil }

// Len reports the number of committed keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Len()
}

// memWrite is one staged mutation; the latest write per key wins.
type memWrite struct {
	value   []byte
	deleted bool
}

type memoryTx struct {
	store  *Memory
	tree   *btree.Map[string, []byte]
	writes map[string]memWrite
	done   bool
}

func (tx *memoryTx) Get(key []byte) ([]byte, error) {
	v, ok := tx.tree.Get(string(key))
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (tx *memoryTx) Has(key []byte) (bool, error) {
	_, ok := tx.tree.Get(string(key))
	return ok, nil
}

func (tx *memoryTx) Set(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	tx.tree.Set(string(key), v)
	tx.writes[string(key)] = memWrite{value: v}
	return nil
}

func (tx *memoryTx) Delete(key []byte) error {
	tx.tree.Delete(string(key))
	tx.writes[string(key)] = memWrite{deleted: true}
	return nil
}

func (tx *memoryTx) Scan(prefix []byte, desc bool, fn func(key, value []byte) (bool, error)) error {
	var scanErr error
	visit := func(k string, v []byte) bool {
		if !bytes.HasPrefix([]byte(k), prefix) {
			return false
		}
		more, err := fn([]byte(k), v)
		if err != nil {
			scanErr = err
			return false
		}
		return more
	}
	if desc {
		// Descend from just past the prefix range.
		upper := upperBound(prefix)
		tx.tree.Descend(string(upper), func(k string, v []byte) bool {
			if k >= string(upper) {
				return true
			}
			return visit(k, v)
		})
	} else {
		tx.tree.Ascend(string(prefix), visit)
	}
	return scanErr
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return nil
	}
	tx.done = true
	if len(tx.writes) == 0 {
		return nil
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	merged := tx.store.tree.Copy()
	for k, w := range tx.writes {
		if w.deleted {
			merged.Delete(k)
		} else {
			merged.Set(k, w.value)
		}
	}
	tx.store.tree = merged
	return nil
}

func (tx *memoryTx) Discard() {
	tx.done = true
}

// upperBound returns the smallest key strictly greater than every key with
// the given prefix.
func upperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	// All 0xff: no finite upper bound, descend from a key longer than any
	// practical registry key.
	return append(out, 0xff)
}
