// Package cache is the durable local store that every read falls back to when
// the remote data service is unavailable.
//
// Values are JSON snapshots stored in Badger under "{collection}:{id}". The
// store enforces a logical quota over keys and values so that a full cache
// fails loudly with StorageFull instead of silently dropping writes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

// Options configures the local cache.
type Options struct {
	Path     string // Directory for the Badger files; ignored when InMemory
	InMemory bool
	MaxBytes int64 // Logical quota over keys + values; 0 means unlimited
	Logger   *slog.Logger
}

// Entry is one raw cached value.
type Entry struct {
	Key   string
	Value []byte
}

// Store wraps a Badger database instance.
type Store struct {
	db       *badger.DB
	logger   *slog.Logger
	maxBytes int64

	// mu serializes writers so quota accounting stays exact.
	mu   sync.Mutex
	used int64
}

// Open opens (or creates) the local cache.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil            // Disable Badger's internal logging
	bopts.SyncWrites = true       // A write is durable before Put returns
	bopts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{
		db:       db,
		logger:   opts.Logger,
		maxBytes: opts.MaxBytes,
	}

	used, err := s.measure()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("measure cache usage: %w", err)
	}
	s.used = used

	if s.logger != nil {
		s.logger.Info("local cache opened",
			"path", opts.Path,
			"in_memory", opts.InMemory,
			"used_bytes", used,
			"max_bytes", opts.MaxBytes)
	}

	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing local cache")
	}
	return s.db.Close()
}

func entryKey(collection, key string) []byte {
	return []byte(collection + ":" + key)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + ":")
}

// measure sums the logical size of every stored entry.
func (s *Store) measure() (int64, error) {
	var total int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			total += int64(len(item.Key())) + item.ValueSize()
		}
		return nil
	})
	return total, err
}

// Get returns the raw value stored for collection/key.
// Returns ErrNotFound if the entry does not exist.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(collection, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.NotFoundf("%s:%s not cached", collection, key)
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores value under collection/key, replacing any previous value.
// A write that would push the cache past its quota fails with StorageFull.
func (s *Store) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := entryKey(collection, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	var delta int64
	err := s.db.Update(func(txn *badger.Txn) error {
		newSize := int64(len(k) + len(value))
		delta = newSize

		item, err := txn.Get(k)
		switch {
		case err == nil:
			delta = newSize - (int64(len(k)) + item.ValueSize())
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if s.maxBytes > 0 && s.used+delta > s.maxBytes {
			return domainerrors.StorageFull("local cache quota exceeded").WithDetails(map[string]int64{
				"used_bytes":    s.used,
				"max_bytes":     s.maxBytes,
				"request_bytes": newSize,
			})
		}

		return txn.Set(k, value)
	})
	if err != nil {
		return classifyWriteError(err)
	}

	s.used += delta
	return nil
}

// Delete removes collection/key. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := entryKey(collection, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	var freed int64
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		freed = int64(len(k)) + item.ValueSize()
		return txn.Delete(k)
	})
	if err != nil {
		return classifyWriteError(err)
	}

	s.used -= freed
	return nil
}

// List returns an iterator over every entry of a collection in key order.
// The iterator is finite and may be ranged over again.
func (s *Store) List(ctx context.Context, collection string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		prefix := collectionPrefix(collection)

		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				item := it.Item()
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}

				key := strings.TrimPrefix(string(item.Key()), string(prefix))
				if !yield(Entry{Key: key, Value: value}, nil) {
					return errStopped
				}
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStopped) {
			yield(Entry{}, err)
		}
	}
}

var errStopped = errors.New("iteration stopped")

// Usage reports the logical bytes in use and the configured quota.
func (s *Store) Usage() (used, limit int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used, s.maxBytes
}

// CountByCollection returns the number of entries per collection prefix.
func (s *Store) CountByCollection(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			collection, _, ok := strings.Cut(string(it.Item().Key()), ":")
			if ok {
				counts[collection]++
			}
		}
		return nil
	})
	return counts, err
}

// classifyWriteError maps exhausted-capacity failures onto StorageFull.
func classifyWriteError(err error) error {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, badger.ErrTxnTooBig) {
		return domainerrors.StorageFull("local cache has no space left").WithCause(err)
	}
	return fmt.Errorf("cache write: %w", err)
}
