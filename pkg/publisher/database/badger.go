package database

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

var (
	ErrNotFound        = errors.New("key not found")
	ErrVersionMismatch = errors.New("version mismatch")
)

// Item is a stored value together with the badger commit version that wrote it.
type Item struct {
	Value   []byte
	Version uint64
}

type DB struct {
	db     *badger.DB
	logger logr.Logger
}

// NewDB opens the badger database at path, creating the directory.
func NewDB(path string, logger logr.Logger) (*DB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, storageErr("create directory", path, err)
	}

	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithValueLogFileSize(256 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storageErr("open database", path, err)
	}
	return &DB{db: db, logger: logger}, nil
}

func storageErr(operation, key string, err error) error {
	return fmt.Errorf("%w: storage %s %s: %w", apperrors.ErrStorage, operation, key, err)
}

func (d *DB) Get(key string) ([]byte, error) {
	item, err := d.GetItem(key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetItem returns the value of key and the version of the transaction that
// last wrote it.
func (d *DB) GetItem(key string) (Item, error) {
	var result Item
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		result, err = readItem(item)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return Item{}, fmt.Errorf("key not found: %s: %w", key, ErrNotFound)
	case err != nil:
		return Item{}, storageErr("get", key, err)
	}
	return result, nil
}

func readItem(item *badger.Item) (Item, error) {
	value, err := item.ValueCopy(nil)
	if err != nil {
		return Item{}, err
	}
	return Item{Value: value, Version: item.Version()}, nil
}

// update runs fn in a read-write transaction. A transaction that lost a
// race against another writer reports ErrConflict.
func (d *DB) update(operation string, key string, fn func(*badger.Txn) error) error {
	err := d.db.Update(fn)
	switch {
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: storage %s %s: %w", apperrors.ErrConflict, operation, key, err)
	case err != nil:
		return storageErr(operation, key, err)
	}
	return nil
}

func (d *DB) Set(key string, value []byte) error {
	return d.update("set", key, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// SetAll writes items in a single transaction, so readers see all of them
// at one version or none.
func (d *DB) SetAll(items map[string][]byte) error {
	return d.update("set all", fmt.Sprintf("%d keys", len(items)), func(txn *badger.Txn) error {
		for key, value := range items {
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) Delete(key string) error {
	return d.update("delete", key, func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// CompareAndSet writes items in one transaction if guard is currently at
// version expected. An expected version of zero requires guard to be absent.
// Concurrent writers of guard cannot both succeed.
func (d *DB) CompareAndSet(guard string, expected uint64, items map[string][]byte) error {
	return d.update("compare-and-set", guard, func(txn *badger.Txn) error {
		var current uint64
		item, err := txn.Get([]byte(guard))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			current = item.Version()
		}
		if current != expected {
			return fmt.Errorf("%s at version %d, expected %d: %w", guard, current, expected, ErrVersionMismatch)
		}
		for key, value := range items {
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) List(prefix string) (map[string][]byte, error) {
	items, err := d.ListItems(prefix)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(items))
	for key, item := range items {
		values[key] = item.Value
	}
	return values, nil
}

// ListItems returns every key under prefix with its value and version.
func (d *DB) ListItems(prefix string) (map[string]Item, error) {
	items := make(map[string]Item)
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item, err := readItem(it.Item())
			if err != nil {
				return err
			}
			items[string(it.Item().KeyCopy(nil))] = item
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("list", prefix, err)
	}
	return items, nil
}

// BatchSet writes items through a write batch, which splits into as many
// transactions as needed. The write is not atomic across all items.
func (d *DB) BatchSet(items map[string][]byte) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()

	for key, value := range items {
		if err := wb.Set([]byte(key), value); err != nil {
			return storageErr("batch set", key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return storageErr("batch set", "flush", err)
	}
	return nil
}

// BatchDelete removes keys through a write batch.
func (d *DB) BatchDelete(keys []string) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete([]byte(key)); err != nil {
			return storageErr("batch delete", key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return storageErr("batch delete", "flush", err)
	}
	d.logger.V(1).Info("deleted keys", "count", len(keys))
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// NewTestDB creates a test database for testing purposes
func NewTestDB(t testing.TB) (*DB, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create test DB: %w", err)
	}
	testDB := &DB{db: db, logger: logr.Discard()}
	if t != nil {
		t.Cleanup(func() { testDB.Close() })
	}
	return testDB, nil
}
