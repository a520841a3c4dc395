package storage

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Badger is the persistent Store, backed by a badger database. Used when the
// engine has to survive restarts; the engine remains the only writer.
type Badger struct {
	db     *badger.DB
	logger *zap.Logger
}

// OpenBadger opens (or creates) a badger database at dir.
func OpenBadger(dir string, logger *zap.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is too chatty; we log lifecycle ourselves
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	logger.Info("badger store opened", zap.String("dir", dir))
	return &Badger{db: db, logger: logger}, nil
}

// Begin starts a read-write transaction.
func (b *Badger) Begin() Tx {
	return &badgerTx{txn: b.db.NewTransaction(true)}
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	b.logger.Info("badger store closing")
	return b.db.Close()
}

type badgerTx struct {
	txn *badger.Txn
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) Has(key []byte) (bool, error) {
	_, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (tx *badgerTx) Set(key, value []byte) error {
	return tx.txn.Set(key, value)
}

func (tx *badgerTx) Delete(key []byte) error {
	return tx.txn.Delete(key)
}

func (tx *badgerTx) Scan(prefix []byte, desc bool, fn func(key, value []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = desc
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if desc {
		// In reverse mode badger needs a seek key past the end of the
		// prefix range.
		seek = upperBound(prefix)
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		more, err := fn(item.KeyCopy(nil), value)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

func (tx *badgerTx) Commit() error {
	return tx.txn.Commit()
}

func (tx *badgerTx) Discard() {
	tx.txn.Discard()
}
