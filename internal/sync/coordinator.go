// Package sync keeps the local cache and the remote data service converging.
//
// Every read and write goes through a Repository. Reads try the remote first
// and fall back to the last cached value; writes land in the cache first and
// are then pushed to the remote. A write that could not reach the remote
// leaves a pending marker that a later read, write or Reconcile pass pushes.
package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	stdsync "sync"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/sse"
)

// PendingCollection holds one marker per local write the remote has not seen.
// Marker keys are "{collection}:{key}".
const PendingCollection = "_pending"

// Monitor supplies connectivity verdicts. connectivity.Monitor implements it.
type Monitor interface {
	Verdict(ctx context.Context) connectivity.Verdict
}

// EventEmitter receives sync notifications. sse.Manager implements it.
type EventEmitter interface {
	Emit(event any)
}

// Coordinator owns the shared state behind every Repository: the cache, the
// guarded gateway, the monitor and the pending markers.
type Coordinator struct {
	cache   *cache.Store
	gateway remote.Gateway
	monitor Monitor
	events  EventEmitter
	logger  *slog.Logger

	reconcileMu stdsync.Mutex
}

// NewCoordinator creates a coordinator. gateway should already be wrapped
// with remote.Guard. events may be nil.
func NewCoordinator(store *cache.Store, gateway remote.Gateway, monitor Monitor, events EventEmitter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		cache:   store,
		gateway: gateway,
		monitor: monitor,
		events:  events,
		logger:  logger,
	}
}

// Verdict returns the monitor's verdict, refreshing it when stale.
func (c *Coordinator) Verdict(ctx context.Context) connectivity.Verdict {
	return c.monitor.Verdict(ctx)
}

type pendingMarker struct {
	Since      time.Time `json:"since"`
	Collection string    `json:"collection"`
	Key        string    `json:"key"`
	// Fields lists the top-level fields changed by partial writes. Empty
	// means the whole local document replaces the remote one.
	Fields []string `json:"fields,omitempty"`
}

func markerKey(collection, key string) string {
	return collection + ":" + key
}

func (c *Coordinator) marker(ctx context.Context, collection, key string) (pendingMarker, bool) {
	data, err := c.cache.Get(ctx, PendingCollection, markerKey(collection, key))
	if err != nil {
		return pendingMarker{}, false
	}
	var m pendingMarker
	if err := json.Unmarshal(data, &m); err != nil {
		// An unreadable marker still means the value is pending; push it whole.
		return pendingMarker{Collection: collection, Key: key}, true
	}
	return m, true
}

func (c *Coordinator) isPending(ctx context.Context, collection, key string) bool {
	_, ok := c.marker(ctx, collection, key)
	return ok
}

// markPending records that collection/key has to reach the remote. fields is
// nil for a full write. Partial writes accumulate their fields, unless a full
// write is already pending, which covers them.
func (c *Coordinator) markPending(ctx context.Context, collection, key string, fields []string) bool {
	m := pendingMarker{Since: time.Now().UTC(), Collection: collection, Key: key}
	if len(fields) > 0 {
		prev, ok := c.marker(ctx, collection, key)
		switch {
		case !ok:
			m.Fields = slices.Clone(fields)
		case len(prev.Fields) > 0:
			m.Since = prev.Since
			m.Fields = unionFields(prev.Fields, fields)
		default:
			m.Since = prev.Since
		}
	}

	data, err := json.Marshal(m)
	if err == nil {
		err = c.cache.Put(ctx, PendingCollection, markerKey(collection, key), data)
	}
	if err != nil {
		c.logger.Error("failed to record pending write",
			"collection", collection,
			"key", key,
			"error", err)
		return false
	}
	return true
}

func (c *Coordinator) clearPending(ctx context.Context, collection, key string) {
	if err := c.cache.Delete(ctx, PendingCollection, markerKey(collection, key)); err != nil {
		c.logger.Warn("failed to clear pending marker",
			"collection", collection,
			"key", key,
			"error", err)
	}
}

// push sends the cached value behind m to the remote and clears the marker
// on success. A partial marker is merged into the remote row first, and the
// merged document is cached. It returns the document now on the remote.
func (c *Coordinator) push(ctx context.Context, m pendingMarker, data []byte) ([]byte, error) {
	doc := data
	if len(m.Fields) > 0 {
		merged, err := c.mergeRemote(ctx, m.Collection, m.Key, data, m.Fields)
		if err != nil {
			return nil, err
		}
		doc = merged
	}

	if err := c.gateway.Upsert(ctx, m.Collection, m.Key, doc); err != nil {
		return nil, err
	}
	c.clearPending(ctx, m.Collection, m.Key)

	if len(m.Fields) > 0 {
		if err := c.cache.Put(ctx, m.Collection, m.Key, doc); err != nil {
			c.logger.Warn("failed to cache merged document",
				"collection", m.Collection,
				"key", m.Key,
				"error", err)
		}
	}
	return doc, nil
}

// mergeRemote overlays fields of local onto the row the remote holds for
// collection/key. When the remote has no such row, local is written whole.
func (c *Coordinator) mergeRemote(ctx context.Context, collection, key string, local []byte, fields []string) ([]byte, error) {
	current, err := c.gateway.FetchOne(ctx, collection, key)
	if err != nil {
		if isRemoteMiss(err) {
			return local, nil
		}
		return nil, err
	}
	return mergeFields(current, local, fields)
}

func (c *Coordinator) pendingMarkers(ctx context.Context, collection string) ([]pendingMarker, error) {
	var markers []pendingMarker
	for entry, err := range c.cache.List(ctx, PendingCollection) {
		if err != nil {
			return markers, err
		}

		var m pendingMarker
		if err := json.Unmarshal(entry.Value, &m); err != nil {
			c.logger.Warn("dropping unreadable pending marker", "marker", entry.Key, "error", err)
			_ = c.cache.Delete(ctx, PendingCollection, entry.Key)
			continue
		}
		if collection != "" && m.Collection != collection {
			continue
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// PendingCount returns the number of local writes not yet on the remote.
func (c *Coordinator) PendingCount(ctx context.Context) (int, error) {
	markers, err := c.pendingMarkers(ctx, "")
	return len(markers), err
}

func (c *Coordinator) emit(event sse.Event) {
	if c.events != nil {
		c.events.Emit(event)
	}
}

func (c *Coordinator) degraded(collection, key, op string, cause error, pending bool) {
	reason := "remote data service unavailable"
	if cause != nil {
		reason = cause.Error()
	}

	c.logger.Warn("operation served by local cache",
		"collection", collection,
		"key", key,
		"op", op,
		"pending", pending,
		"reason", reason)
	c.emit(sse.NewSyncDegradedEvent(collection, key, op, reason, pending))
}

// Report summarises a reconciliation pass.
type Report struct {
	Verdict   connectivity.Verdict `json:"verdict"`
	Pushed    int                  `json:"pushed"`
	Failed    int                  `json:"failed"`
	Dropped   int                  `json:"dropped"`
	Remaining int                  `json:"remaining"`
}

// Reconcile pushes every pending local value to the remote. It does nothing
// beyond counting when the remote is not connected. Passes never overlap.
func (c *Coordinator) Reconcile(ctx context.Context) (Report, error) {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	markers, err := c.pendingMarkers(ctx, "")
	if err != nil {
		return Report{}, err
	}

	report := Report{Verdict: c.monitor.Verdict(ctx)}
	if len(markers) == 0 {
		return report, nil
	}
	if !report.Verdict.Connected() {
		report.Remaining = len(markers)
		c.logger.Info("reconciliation skipped, remote not connected",
			"status", report.Verdict.Status,
			"pending", len(markers))
		return report, nil
	}

	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			report.Remaining += len(markers) - report.Pushed - report.Failed - report.Dropped
			return report, err
		}

		data, err := c.cache.Get(ctx, m.Collection, m.Key)
		if err != nil {
			// The value is gone, nothing left to push.
			c.clearPending(ctx, m.Collection, m.Key)
			report.Dropped++
			continue
		}

		if _, err := c.push(ctx, m, data); err != nil {
			c.logger.Warn("pending write not pushed",
				"collection", m.Collection,
				"key", m.Key,
				"error", err)
			report.Failed++
			report.Remaining++
			continue
		}
		report.Pushed++
	}

	c.logger.Info("reconciliation finished",
		"pushed", report.Pushed,
		"failed", report.Failed,
		"dropped", report.Dropped,
		"remaining", report.Remaining)
	c.emit(sse.NewSyncReconciledEvent(report.Pushed, report.Failed, report.Dropped, report.Remaining))

	return report, nil
}

// OnVerdictChange reconciles in the background whenever the remote becomes
// connected. It has the shape of a connectivity.Listener.
func (c *Coordinator) OnVerdictChange(prev, next connectivity.Verdict) {
	if !next.Connected() || prev.Connected() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := c.Reconcile(ctx); err != nil {
			c.logger.Warn("background reconciliation failed", "error", err)
		}
	}()
}

// isRemoteMiss reports whether err means the remote answered but has no row.
func isRemoteMiss(err error) bool {
	return domainerrors.Is(err, domainerrors.ErrNotFound)
}
