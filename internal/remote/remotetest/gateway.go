// Package remotetest provides an in-memory remote.Gateway with failure
// injection for tests.
package remotetest

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
)

// Gateway stores documents in memory. The zero value is not usable; call New.
type Gateway struct {
	mu    sync.Mutex
	rows  map[string]map[string]json.RawMessage
	err   error
	opErr map[string]error
	calls map[string]int
	block chan struct{}
}

// New returns an empty, healthy gateway.
func New() *Gateway {
	return &Gateway{
		rows:  make(map[string]map[string]json.RawMessage),
		opErr: make(map[string]error),
		calls: make(map[string]int),
	}
}

// Fail makes every subsequent call, including Probe, return err.
// Fail(nil) restores health.
func (g *Gateway) Fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

// FailOp makes calls to op alone return err. FailOp(op, nil) clears it.
func (g *Gateway) FailOp(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.opErr, op)
		return
	}
	g.opErr[op] = err
}

// Hang makes calls block until their context is done. Close the returned
// function to release them.
func (g *Gateway) Hang() (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.block = ch
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		if g.block == ch {
			g.block = nil
		}
		g.mu.Unlock()
		close(ch)
	}
}

// Calls returns how often op ("fetch_all", "fetch_one", "upsert", "remove",
// "probe") was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Seed stores a document directly, bypassing failure injection.
func (g *Gateway) Seed(collection, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.table(collection)[key] = data
}

// Row returns the stored document, bypassing failure injection.
func (g *Gateway) Row(collection, key string) (json.RawMessage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.rows[collection][key]
	return doc, ok
}

// Len returns the number of rows in collection.
func (g *Gateway) Len(collection string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows[collection])
}

func (g *Gateway) table(collection string) map[string]json.RawMessage {
	t, ok := g.rows[collection]
	if !ok {
		t = make(map[string]json.RawMessage)
		g.rows[collection] = t
	}
	return t
}

func (g *Gateway) enter(ctx context.Context, op string) error {
	g.mu.Lock()
	g.calls[op]++
	block, err := g.block, g.err
	if err == nil {
		err = g.opErr[op]
	}
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// FetchAll implements remote.Gateway. Conditions match top-level JSON fields
// by their string form.
func (g *Gateway) FetchAll(ctx context.Context, collection string, filter remote.Filter) ([]json.RawMessage, error) {
	if err := g.enter(ctx, "fetch_all"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	keys := slices.Sorted(maps.Keys(g.rows[collection]))
	docs := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		docs = append(docs, g.rows[collection][k])
	}
	return remote.Apply(docs, filter), nil
}

// FetchOne implements remote.Gateway.
func (g *Gateway) FetchOne(ctx context.Context, collection, key string) (json.RawMessage, error) {
	if err := g.enter(ctx, "fetch_one"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	doc, ok := g.rows[collection][key]
	if !ok {
		return nil, domainerrors.NotFoundf("%s %s not found", collection, key)
	}
	return doc, nil
}

// Upsert implements remote.Gateway.
func (g *Gateway) Upsert(ctx context.Context, collection, key string, doc json.RawMessage) error {
	if err := g.enter(ctx, "upsert"); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.table(collection)[key] = slices.Clone(doc)
	return nil
}

// Remove implements remote.Gateway.
func (g *Gateway) Remove(ctx context.Context, collection, key string) error {
	if err := g.enter(ctx, "remove"); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rows[collection], key)
	return nil
}

// Probe implements remote.Gateway.
func (g *Gateway) Probe(ctx context.Context) error {
	return g.enter(ctx, "probe")
}
