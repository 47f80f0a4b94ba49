package service

import (
	"context"
	"log/slog"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/remote/remotetest"
	"github.com/sleepwell/sleepwell-server/internal/search"
	"github.com/sleepwell/sleepwell-server/internal/sse"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

type eventLog struct {
	mu     stdsync.Mutex
	events []sse.Event
}

func (l *eventLog) Emit(event any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event.(sse.Event))
}

func (l *eventLog) ofType(t sse.EventType) []sse.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []sse.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testServices struct {
	store        *cache.Store
	remote       *remotetest.Gateway
	monitor      *connectivity.Monitor
	coord        *sync.Coordinator
	events       *eventLog
	search       *SearchService
	catalog      *CatalogService
	profiles     *ProfileService
	measurements *MeasurementService
	chat         *ChatService
	carts        *CartService
	sync         *SyncService
}

// setupTestServices wires every service over an in-memory cache, a fake
// remote and an in-memory search index.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	store, err := cache.Open(cache.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.NewSearchIndex(search.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	fake := remotetest.New()
	monitor := connectivity.NewMonitor(fake, connectivity.Options{
		MinRefresh:   time.Hour,
		Interval:     time.Hour,
		ProbeTimeout: time.Second,
		Logger:       logger,
	})
	require.True(t, monitor.Check(context.Background()).Connected())

	events := &eventLog{}
	coord := sync.NewCoordinator(store, remote.Guard(fake, monitor, time.Second, logger), monitor, events, logger)
	v := validation.New()

	ts := &testServices{
		store:   store,
		remote:  fake,
		monitor: monitor,
		coord:   coord,
		events:  events,
		search:  NewSearchService(index, logger),
	}
	ts.catalog = NewCatalogService(coord, v, ts.search, events, logger)
	ts.profiles = NewProfileService(coord, v, logger)
	ts.measurements = NewMeasurementService(coord, v, ts.profiles, events, logger)
	ts.chat = NewChatService(coord, v, logger)
	ts.carts = NewCartService(coord, v, ts.catalog, logger)
	ts.sync = NewSyncService(coord, store, logger)

	return ts
}

func (ts *testServices) down(t *testing.T) {
	t.Helper()
	ts.remote.Fail(domainerrors.RemoteUnavailable("connection refused"))
	require.False(t, ts.monitor.Check(context.Background()).Connected())
}

func (ts *testServices) up(t *testing.T) {
	t.Helper()
	ts.remote.Fail(nil)
	require.True(t, ts.monitor.Check(context.Background()).Connected())
}

func (ts *testServices) seed(t *testing.T) {
	t.Helper()
	_, err := ts.catalog.Seed(context.Background())
	require.NoError(t, err)
}
