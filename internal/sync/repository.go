package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
)

// Path says which store answered.
type Path string

// Paths.
const (
	PathRemote    Path = "remote"
	PathLocal     Path = "local"
	PathLocalOnly Path = "local_only"
)

// State is the final state of one operation.
type State string

// States.
const (
	// StateReconciled means both stores agree on the value that was returned or written.
	StateReconciled State = "reconciled"
	// StateDegraded means the remote could not be used and the local cache served the call.
	StateDegraded State = "degraded"
)

// Outcome describes how an operation was satisfied.
type Outcome struct {
	Verdict connectivity.Verdict `json:"verdict"`
	Path    Path                 `json:"path"`
	State   State                `json:"state"`
	Reason  string               `json:"reason,omitempty"`
	// Pending is set when the value still has to reach the remote.
	Pending bool `json:"pending,omitempty"`
	// CacheSkipped is set when the remote accepted a write the full local cache could not hold.
	CacheSkipped bool `json:"cache_skipped,omitempty"`
}

// Degraded reports whether the call fell back to the local cache.
func (o Outcome) Degraded() bool {
	return o.State == StateDegraded
}

// Definition describes one collection.
type Definition[T any] struct {
	Collection string
	// Key returns the primary key of an entity.
	Key func(*T) string
	// Validate runs before any store is touched. Optional.
	Validate func(*T) error
	// LocalOnly collections never reach the remote.
	LocalOnly bool
}

// Repository is the remote-first, cache-fallback access path for one
// collection.
type Repository[T any] struct {
	def   Definition[T]
	c     *Coordinator
	local *cache.Collection[T]
}

// NewRepository creates a repository for def.
func NewRepository[T any](c *Coordinator, def Definition[T]) *Repository[T] {
	return &Repository[T]{
		def:   def,
		c:     c,
		local: cache.NewCollection[T](c.cache, def.Collection),
	}
}

// Collection returns the collection name.
func (r *Repository[T]) Collection() string {
	return r.def.Collection
}

func (r *Repository[T]) localOnly() Outcome {
	return Outcome{Path: PathLocalOnly, State: StateReconciled}
}

// Get returns the entity stored under key. With the remote connected the
// remote copy wins, except over a local write still pending, which is pushed
// first. Otherwise the last cached value is returned with a Degraded outcome.
// NotFound is returned only when neither store can produce the entity.
func (r *Repository[T]) Get(ctx context.Context, key string) (*T, Outcome, error) {
	name := r.def.Collection
	if r.def.LocalOnly {
		v, err := r.getLocal(ctx, key)
		return v, r.localOnly(), err
	}

	verdict := r.c.monitor.Verdict(ctx)
	if !verdict.Connected() {
		return r.fallbackGet(ctx, key, verdict, verdict.Err())
	}

	if m, ok := r.c.marker(ctx, name, key); ok {
		data, err := r.c.cache.Get(ctx, name, key)
		if err == nil {
			_, err = decode[T](name, key, data)
		}
		if err != nil {
			r.c.clearPending(ctx, name, key)
		} else {
			doc, err := r.c.push(ctx, m, data)
			if err != nil {
				return r.fallbackGet(ctx, key, r.c.monitor.Verdict(ctx), err)
			}
			v, err := decode[T](name, key, doc)
			if err != nil {
				return r.fallbackGet(ctx, key, verdict, err)
			}
			return v, Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict}, nil
		}
	}

	doc, err := r.c.gateway.FetchOne(ctx, name, key)
	switch {
	case err == nil:
	case isRemoteMiss(err):
		if v, lerr := r.getLocal(ctx, key); lerr == nil {
			// Cached but unknown to the remote.
			return v, Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: "not present on remote"}, nil
		}
		return nil, Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict}, err
	default:
		return r.fallbackGet(ctx, key, r.c.monitor.Verdict(ctx), err)
	}

	v, err := decode[T](name, key, doc)
	if err != nil {
		return r.fallbackGet(ctx, key, verdict, err)
	}

	cacheSkipped := r.writeThrough(ctx, key, doc)
	return v, Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict, CacheSkipped: cacheSkipped}, nil
}

func (r *Repository[T]) fallbackGet(ctx context.Context, key string, verdict connectivity.Verdict, cause error) (*T, Outcome, error) {
	out := Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(cause)}
	r.c.degraded(r.def.Collection, key, "read", cause, false)

	v, err := r.getLocal(ctx, key)
	if err != nil {
		return nil, out, err
	}
	out.Pending = r.c.isPending(ctx, r.def.Collection, key)
	return v, out, nil
}

func (r *Repository[T]) getLocal(ctx context.Context, key string) (*T, error) {
	v, err := r.local.Get(ctx, key)
	if err != nil {
		if domainerrors.IsCacheMiss(err) {
			if domainerrors.Is(err, domainerrors.ErrDeserialization) {
				r.c.logger.Warn("ignoring corrupt cache entry",
					"collection", r.def.Collection,
					"key", key,
					"error", err)
			}
			return nil, domainerrors.NotFoundf("%s %s not found", r.def.Collection, key)
		}
		return nil, err
	}
	return v, nil
}

// List returns the entities matching filter, from the remote when connected
// and from the cache otherwise. Local writes still pending for this
// collection are pushed before the remote is read; any that cannot be pushed
// override their remote copies in the result, or join it when the remote has
// no copy and they match filter.
func (r *Repository[T]) List(ctx context.Context, filter remote.Filter) ([]*T, Outcome, error) {
	name := r.def.Collection
	if r.def.LocalOnly {
		items, err := r.listLocal(ctx, filter)
		return items, r.localOnly(), err
	}

	verdict := r.c.monitor.Verdict(ctx)
	if !verdict.Connected() {
		return r.fallbackList(ctx, filter, verdict, verdict.Err())
	}

	stillPending := r.pushPending(ctx)

	docs, err := r.c.gateway.FetchAll(ctx, name, filter)
	if err != nil {
		return r.fallbackList(ctx, filter, r.c.monitor.Verdict(ctx), err)
	}

	result := make([]json.RawMessage, 0, len(docs)+len(stillPending))
	seen := make(map[string]bool, len(stillPending))
	cacheSkipped := false
	for _, doc := range docs {
		v, err := decode[T](name, "", doc)
		if err != nil {
			r.c.logger.Warn("skipping undecodable remote row", "collection", name, "error", err)
			continue
		}
		key := r.def.Key(v)
		if local, ok := stillPending[key]; ok {
			seen[key] = true
			result = append(result, local)
			continue
		}
		if r.writeThrough(ctx, key, doc) {
			cacheSkipped = true
		}
		result = append(result, doc)
	}

	var unseen []json.RawMessage
	for _, key := range slices.Sorted(maps.Keys(stillPending)) {
		if !seen[key] {
			unseen = append(unseen, stillPending[key])
		}
	}
	if unseen = remote.Apply(unseen, remote.Filter{Where: filter.Where}); len(unseen) > 0 {
		result = remote.Apply(append(result, unseen...), filter)
	}

	items := make([]*T, 0, len(result))
	for _, doc := range result {
		v, err := decode[T](name, "", doc)
		if err != nil {
			continue
		}
		items = append(items, v)
	}

	out := Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict, CacheSkipped: cacheSkipped}
	if len(stillPending) > 0 {
		out.Pending = true
	}
	return items, out, nil
}

// pushPending pushes this collection's pending values and returns the cached
// documents of the ones that are still pending afterwards.
func (r *Repository[T]) pushPending(ctx context.Context) map[string]json.RawMessage {
	name := r.def.Collection
	markers, err := r.c.pendingMarkers(ctx, name)
	if err != nil || len(markers) == 0 {
		return nil
	}

	left := make(map[string]json.RawMessage)
	for _, m := range markers {
		data, err := r.c.cache.Get(ctx, name, m.Key)
		if err == nil {
			_, err = decode[T](name, m.Key, data)
		}
		if err != nil {
			r.c.clearPending(ctx, name, m.Key)
			continue
		}
		if _, err := r.c.push(ctx, m, data); err != nil {
			left[m.Key] = data
		}
	}
	return left
}

func (r *Repository[T]) fallbackList(ctx context.Context, filter remote.Filter, verdict connectivity.Verdict, cause error) ([]*T, Outcome, error) {
	r.c.degraded(r.def.Collection, "", "list", cause, false)

	items, err := r.listLocal(ctx, filter)
	return items, Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(cause)}, err
}

// Cached returns the entities matching filter from the local cache alone,
// without consulting the remote.
func (r *Repository[T]) Cached(ctx context.Context, filter remote.Filter) ([]*T, error) {
	return r.listLocal(ctx, filter)
}

// listLocal evaluates filter over the cached snapshots with the same
// semantics the remote applies.
func (r *Repository[T]) listLocal(ctx context.Context, filter remote.Filter) ([]*T, error) {
	name := r.def.Collection

	var docs []json.RawMessage
	for entry, err := range r.c.cache.List(ctx, name) {
		if err != nil {
			return nil, err
		}
		if !json.Valid(entry.Value) {
			r.c.logger.Warn("ignoring corrupt cache entry", "collection", name, "key", entry.Key)
			continue
		}
		docs = append(docs, entry.Value)
	}

	docs = remote.Apply(docs, filter)
	items := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](name, "", doc)
		if err != nil {
			r.c.logger.Warn("ignoring corrupt cache entry", "collection", name, "error", err)
			continue
		}
		items = append(items, v)
	}
	return items, nil
}

// Save validates entity, writes it to the cache and then to the remote.
//
// Validation errors propagate unchanged and touch neither store. A remote
// failure still succeeds, with a Degraded outcome and a pending marker. A
// full cache is tolerated when the remote accepts the write; otherwise the
// StorageFull error is returned.
func (r *Repository[T]) Save(ctx context.Context, entity *T) (Outcome, error) {
	if r.def.Validate != nil {
		if err := r.def.Validate(entity); err != nil {
			return Outcome{}, err
		}
	}

	name := r.def.Collection
	key := r.def.Key(entity)
	if key == "" {
		return Outcome{}, domainerrors.Validationf("%s: missing key", name)
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	localErr := r.c.cache.Put(ctx, name, key, data)
	if localErr != nil && !domainerrors.Is(localErr, domainerrors.ErrStorageFull) {
		return Outcome{}, localErr
	}

	if r.def.LocalOnly {
		return r.localOnly(), localErr
	}

	verdict := r.c.monitor.Verdict(ctx)
	remoteErr := verdict.Err()
	if verdict.Connected() {
		remoteErr = r.c.gateway.Upsert(ctx, name, key, data)
		if remoteErr != nil {
			verdict = r.c.monitor.Verdict(ctx)
		}
	} else if remoteErr == nil {
		remoteErr = domainerrors.RemoteUnavailable("remote connectivity unknown")
	}

	switch {
	case localErr != nil && remoteErr == nil:
		r.c.logger.Warn("local cache full, write kept on remote only",
			"collection", name,
			"key", key,
			"error", localErr)
		r.c.clearPending(ctx, name, key)
		return Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict, CacheSkipped: true}, nil

	case localErr != nil:
		return Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(remoteErr)}, localErr

	case remoteErr == nil:
		r.c.clearPending(ctx, name, key)
		return Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict}, nil

	default:
		pending := r.c.markPending(ctx, name, key, nil)
		r.c.degraded(name, key, "write", remoteErr, pending)
		return Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(remoteErr), Pending: pending}, nil
	}
}

// Patch writes only the named top-level JSON fields of entity. The fields are
// merged into the cached copy and into the remote row; the rest of entity is
// used only when neither store holds the entity yet. It returns the document
// as stored.
//
// A remote failure succeeds with a Degraded outcome, and the marker remembers
// the fields so that reconciliation merges them into the remote row instead
// of overwriting it.
func (r *Repository[T]) Patch(ctx context.Context, entity *T, fields ...string) (*T, Outcome, error) {
	if len(fields) == 0 {
		return nil, Outcome{}, domainerrors.Validationf("%s: patch names no fields", r.def.Collection)
	}
	if r.def.Validate != nil {
		if err := r.def.Validate(entity); err != nil {
			return nil, Outcome{}, err
		}
	}

	name := r.def.Collection
	key := r.def.Key(entity)
	if key == "" {
		return nil, Outcome{}, domainerrors.Validationf("%s: missing key", name)
	}

	patch, err := json.Marshal(entity)
	if err != nil {
		return nil, Outcome{}, fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	local := patch
	if cached, err := r.c.cache.Get(ctx, name, key); err == nil {
		if merged, err := mergeFields(cached, patch, fields); err == nil {
			local = merged
		}
	}

	localErr := r.c.cache.Put(ctx, name, key, local)
	if localErr != nil && !domainerrors.Is(localErr, domainerrors.ErrStorageFull) {
		return nil, Outcome{}, localErr
	}

	if r.def.LocalOnly {
		v, err := decode[T](name, key, local)
		if err != nil {
			return nil, r.localOnly(), err
		}
		return v, r.localOnly(), localErr
	}

	// Earlier writes still pending ride along with this one.
	m := pendingMarker{Collection: name, Key: key, Fields: fields}
	if prev, ok := r.c.marker(ctx, name, key); ok {
		if len(prev.Fields) == 0 {
			m.Fields = nil
		} else {
			m.Fields = unionFields(prev.Fields, fields)
		}
	}

	stored := local
	verdict := r.c.monitor.Verdict(ctx)
	remoteErr := verdict.Err()
	if verdict.Connected() {
		stored, remoteErr = r.c.push(ctx, m, local)
		if remoteErr != nil {
			stored = local
			verdict = r.c.monitor.Verdict(ctx)
		}
	} else if remoteErr == nil {
		remoteErr = domainerrors.RemoteUnavailable("remote connectivity unknown")
	}

	v, err := decode[T](name, key, stored)
	if err != nil {
		return nil, Outcome{}, err
	}

	switch {
	case localErr != nil && remoteErr == nil:
		r.c.logger.Warn("local cache full, write kept on remote only",
			"collection", name,
			"key", key,
			"error", localErr)
		return v, Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict, CacheSkipped: true}, nil

	case localErr != nil:
		return nil, Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(remoteErr)}, localErr

	case remoteErr == nil:
		return v, Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict}, nil

	default:
		pending := r.c.markPending(ctx, name, key, fields)
		r.c.degraded(name, key, "patch", remoteErr, pending)
		return v, Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(remoteErr), Pending: pending}, nil
	}
}

// Delete removes key from both stores. Deletes are administrative and need
// the remote: they fail with the verdict's error when it is not connected.
func (r *Repository[T]) Delete(ctx context.Context, key string) (Outcome, error) {
	name := r.def.Collection
	if r.def.LocalOnly {
		return r.localOnly(), r.c.cache.Delete(ctx, name, key)
	}

	verdict := r.c.monitor.Verdict(ctx)
	if err := verdict.Err(); err != nil {
		return Outcome{Path: PathLocal, State: StateDegraded, Verdict: verdict, Reason: reason(err)}, err
	}
	if err := r.c.gateway.Remove(ctx, name, key); err != nil {
		return Outcome{Path: PathLocal, State: StateDegraded, Verdict: r.c.monitor.Verdict(ctx), Reason: reason(err)}, err
	}

	r.c.clearPending(ctx, name, key)
	if err := r.c.cache.Delete(ctx, name, key); err != nil {
		return Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict}, err
	}
	return Outcome{Path: PathRemote, State: StateReconciled, Verdict: verdict}, nil
}

// writeThrough refreshes the cached copy of a remote value. It reports
// whether the cache was too full to take it.
func (r *Repository[T]) writeThrough(ctx context.Context, key string, doc json.RawMessage) bool {
	err := r.c.cache.Put(ctx, r.def.Collection, key, doc)
	if err == nil {
		return false
	}
	r.c.logger.Warn("failed to refresh local cache",
		"collection", r.def.Collection,
		"key", key,
		"error", err)
	return domainerrors.Is(err, domainerrors.ErrStorageFull)
}

func decode[T any](collection, key string, data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, domainerrors.Deserialization(fmt.Sprintf("%s %s: invalid document", collection, key)).WithCause(err)
	}
	return &v, nil
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
