// Package badger implements the retrieval response cache on an embedded
// badger store. TTL expiry is delegated to badger itself; a corrupted or
// unreadable entry is treated as a miss, never as a failure.
package badger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

func Open(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := badger.DefaultOptions(path)
	options.Logger = nil

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			c.logger.Warn("cache_read_failed", "error", err)
		}
		return nil, false
	}
	return value, true
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Purge drops every cached entry. Called when the corpus epoch advances:
// old responses are keyed to the previous epoch and would never be read
// again, so dropping them all is cheaper than letting them age out.
func (c *Cache) Purge(_ context.Context) error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("cache purge: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
