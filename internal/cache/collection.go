package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

// Collection is a typed view over one cache collection.
type Collection[T any] struct {
	store *Store
	name  string
}

// NewCollection creates a typed view over the named collection.
func NewCollection[T any](s *Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get decodes the entity stored under key.
// Returns ErrNotFound when absent and a Deserialization error when the
// stored bytes are not a valid T.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := c.store.Get(ctx, c.name, key)
	if err != nil {
		return nil, err
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, domainerrors.Deserialization(fmt.Sprintf("%s:%s is not valid JSON", c.name, key)).WithCause(err)
	}
	return &entity, nil
}

// Put encodes entity and stores it under key.
func (c *Collection[T]) Put(ctx context.Context, key string, entity *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	return c.store.Put(ctx, c.name, key, data)
}

// Delete removes key. Idempotent.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.name, key)
}

// List iterates the entities that satisfy pred (all of them when pred is nil).
// A corrupt entry yields a Deserialization error; the consumer may keep
// ranging to skip it.
func (c *Collection[T]) List(ctx context.Context, pred func(*T) bool) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for entry, err := range c.store.List(ctx, c.name) {
			if err != nil {
				yield(nil, err)
				return
			}

			var entity T
			if err := json.Unmarshal(entry.Value, &entity); err != nil {
				derr := domainerrors.Deserialization(fmt.Sprintf("%s:%s is not valid JSON", c.name, entry.Key)).WithCause(err)
				if !yield(nil, derr) {
					return
				}
				continue
			}

			if pred != nil && !pred(&entity) {
				continue
			}
			if !yield(&entity, nil) {
				return
			}
		}
	}
}
