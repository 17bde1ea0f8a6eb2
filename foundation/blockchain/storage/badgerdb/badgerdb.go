// Package badgerdb provides the embedded log-structured store used to
// persist the node sections across restarts.
package badgerdb

import (
	"encoding/json"
	"errors"
	"sync"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/ekehi/blockchain/foundation/blockchain/storage"
)

// BadgerDB represents the store implementation over a badger database.
// This implements the storage.Store interface.
type BadgerDB struct {
	db *badger.DB

	// Concurrent saves are serialized so a partial write from one section
	// can never interleave with another.
	mu sync.Mutex
}

// New opens the badger database at the specified path.
func New(dbPath string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDB{db: db}, nil
}

// Close flushes and closes the underlying database.
func (b *BadgerDB) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Close()
}

// Save serializes the value as compact JSON under the section key.
func (b *BadgerDB) Save(section string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(section), data)
	})
}

// Load reads the section into the specified value. storage.ErrNotFound is
// returned when the section has never been saved.
func (b *BadgerDB) Load(section string, value any) error {
	var data []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(section))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		return err
	}

	return json.Unmarshal(data, value)
}
