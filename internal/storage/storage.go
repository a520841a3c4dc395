// Package storage provides the key-value backend behind the marketplace
// registries. Every engine call runs against exactly one transaction:
// reads observe committed state plus the call's own staged writes, and
// nothing reaches the backend until Commit. The engine is the single
// writer, so transactions never contend.
package storage

import "errors"

// ErrKeyNotFound is returned by Tx.Get for missing keys. Registry lookups
// treat it as a hard failure rather than defaulting.
var ErrKeyNotFound = errors.New("storage: key not found")

// Store is the injected backend. Begin constructs the per-call transaction.
type Store interface {
	Begin() Tx
	Close() error
}

// Tx stages a call's registry mutations.
type Tx interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// Scan visits every key with the given prefix in lexicographic order
	// (reverse order when desc is set), including keys staged in this
	// transaction. Iteration stops early when fn returns false.
	Scan(prefix []byte, desc bool, fn func(key, value []byte) (bool, error)) error

	Commit() error
	Discard()
}
