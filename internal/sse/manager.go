package sse

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	"github.com/sleepwell/sleepwell-server/internal/id"
)

const (
	queueSize      = 1000
	subscriberSize = 100
)

// Subscriber is one open event stream.
type Subscriber struct {
	Since  time.Time
	Events chan Event
	Done   chan struct{}
	ID     string
	// UserID receives that user's private events. Empty for guests, who only
	// see shared events.
	UserID string
	// Topics narrows delivery. Empty means every topic.
	Topics []Topic
}

func (s *Subscriber) wants(e Event) bool {
	if e.UserID != "" && e.UserID != s.UserID {
		return false
	}
	if e.Type == EventHeartbeat || len(s.Topics) == 0 {
		return true
	}
	return slices.Contains(s.Topics, e.Type.Topic())
}

// notice identifies a sync.degraded event for deduplication.
type notice struct {
	collection string
	op         string
	reason     string
}

// Stats counts routed events since the manager started.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Suppressed  uint64 `json:"suppressed"`
}

// Manager routes sync, connectivity and storefront events to subscribers.
//
// While the remote stays in one state, a repeated sync.degraded notice for
// the same collection, operation and reason reaches subscribers once. The
// next connectivity change or reconciliation pass resets that.
type Manager struct {
	logger    *slog.Logger
	queue     chan Event
	heartbeat time.Duration
	wg        sync.WaitGroup

	mu       sync.RWMutex
	subs     map[string]*Subscriber
	status   connectivity.Status
	reported map[notice]struct{}

	delivered  atomic.Uint64
	dropped    atomic.Uint64
	suppressed atomic.Uint64

	// closeMu guards queue against sends after close.
	closeMu sync.RWMutex
	closed  bool
}

// NewManager creates a manager. Call Start to begin routing.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger,
		queue:     make(chan Event, queueSize),
		heartbeat: 30 * time.Second,
		subs:      make(map[string]*Subscriber),
		status:    connectivity.StatusUnknown,
		reported:  make(map[notice]struct{}),
	}
}

// Start routes queued events until ctx is done or Shutdown closes the queue.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("event stream starting")

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.route(event)

		case <-ticker.C:
			m.route(NewHeartbeatEvent(m.Status()))

		case <-ctx.Done():
			m.logger.Info("event stream stopping")
			m.disconnectAll()
			return
		}
	}
}

// Shutdown stops accepting events, routes what is still queued and closes
// every subscriber.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	drained := make(chan struct{})
	go func() {
		for event := range m.queue {
			m.route(event)
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("event drain timed out, queued events lost")
	}

	m.wg.Wait()
	m.disconnectAll()

	stats := m.Stats()
	m.logger.Info("event stream shut down",
		slog.Uint64("delivered", stats.Delivered),
		slog.Uint64("dropped", stats.Dropped),
		slog.Uint64("suppressed", stats.Suppressed))
	return nil
}

// Emit queues event for routing. Values that are not an Event are ignored.
// It implements the EventEmitter interfaces of the sync and service packages.
func (m *Manager) Emit(event any) {
	e, ok := event.(Event)
	if !ok {
		m.logger.Error("ignoring foreign event value")
		return
	}

	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- e:
	default:
		m.dropped.Add(1)
		m.logger.Error("event queue full, dropping event", slog.String("event_type", string(e.Type)))
	}
}

// route updates the manager's view of the remote and fans event out.
func (m *Manager) route(e Event) {
	m.mu.Lock()
	switch e.Type {
	case EventConnectivityChanged:
		if data, ok := e.Data.(ConnectivityEventData); ok {
			m.status = data.Status
		}
		clear(m.reported)
	case EventSyncReconciled:
		clear(m.reported)
	case EventSyncDegraded:
		if data, ok := e.Data.(SyncDegradedEventData); ok {
			n := notice{collection: data.Collection, op: data.Op, reason: data.Reason}
			if _, seen := m.reported[n]; seen {
				m.mu.Unlock()
				m.suppressed.Add(1)
				return
			}
			m.reported[n] = struct{}{}
		}
	}
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var delivered, dropped int
	for _, s := range m.subs {
		if !s.wants(e) {
			continue
		}
		select {
		case s.Events <- e:
			delivered++
		default:
			dropped++
			m.logger.Warn("subscriber too slow, event dropped",
				slog.String("subscriber_id", s.ID),
				slog.String("event_type", string(e.Type)))
		}
	}
	m.delivered.Add(uint64(delivered))
	m.dropped.Add(uint64(dropped))

	if e.Type != EventHeartbeat {
		m.logger.Debug("event routed",
			slog.String("event_type", string(e.Type)),
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped))
	}
}

// Connect registers a subscriber for userID, which may be empty for guests.
// With no topics the subscriber receives everything it may see.
func (m *Manager) Connect(userID string, topics ...Topic) (*Subscriber, error) {
	subID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		ID:     subID,
		UserID: userID,
		Topics: slices.Clone(topics),
		Events: make(chan Event, subscriberSize),
		Done:   make(chan struct{}),
		Since:  time.Now(),
	}

	m.mu.Lock()
	m.subs[s.ID] = s
	total := len(m.subs)
	m.mu.Unlock()

	m.logger.Info("subscriber connected",
		slog.String("subscriber_id", subID),
		slog.String("user_id", userID),
		slog.Any("topics", topics),
		slog.Int("subscribers", total))
	return s, nil
}

// Disconnect removes a subscriber and closes its channels. Unknown IDs are
// ignored.
func (m *Manager) Disconnect(subID string) {
	m.mu.Lock()
	s, ok := m.subs[subID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.subs, subID)
	total := len(m.subs)
	m.mu.Unlock()

	close(s.Done)
	close(s.Events)

	m.logger.Info("subscriber disconnected",
		slog.String("subscriber_id", subID),
		slog.Duration("duration", time.Since(s.Since)),
		slog.Int("subscribers", total))
}

// Status returns the connectivity status of the last routed
// connectivity.changed event.
func (m *Manager) Status() connectivity.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Stats returns the current subscriber count and routing counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	n := len(m.subs)
	m.mu.RUnlock()
	return Stats{
		Subscribers: n,
		Delivered:   m.delivered.Load(),
		Dropped:     m.dropped.Load(),
		Suppressed:  m.suppressed.Load(),
	}
}

func (m *Manager) disconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.subs {
		close(s.Done)
		close(s.Events)
	}
	clear(m.subs)
}
