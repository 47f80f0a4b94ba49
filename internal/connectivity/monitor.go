// Package connectivity decides whether the remote data service is usable.
//
// The Monitor keeps one cached Verdict per process. Callers that are about to
// talk to the remote ask for Verdict, which re-probes at most once per
// MinRefresh; gateways consult Last to fail fast and report mid-call failures
// through Observe.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

// Status is the outcome of a health probe.
type Status string

// Statuses.
const (
	StatusUnknown       Status = "unknown"
	StatusConnected     Status = "connected"
	StatusUnreachable   Status = "unreachable"
	StatusSchemaMissing Status = "schema_missing"
)

// Verdict is the monitor's current belief about the remote.
type Verdict struct {
	CheckedAt time.Time `json:"checked_at"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
}

// Connected reports whether remote operations should be attempted.
func (v Verdict) Connected() bool {
	return v.Status == StatusConnected
}

// Err returns the error a remote call made under this verdict would fail
// with, or nil when calls may proceed.
func (v Verdict) Err() error {
	switch v.Status {
	case StatusUnreachable:
		return domainerrors.RemoteUnavailable(v.Message)
	case StatusSchemaMissing:
		return domainerrors.SchemaMissing(v.Message)
	default:
		return nil
	}
}

// Prober runs the health check against the remote.
type Prober interface {
	Probe(ctx context.Context) error
}

// Listener is notified when the verdict status changes.
type Listener func(prev, next Verdict)

// Options configures a Monitor.
type Options struct {
	MinRefresh   time.Duration // Cached verdicts are reused for at least this long
	Interval     time.Duration // Period of the background probe loop
	ProbeTimeout time.Duration // Bound on a single probe
	Logger       *slog.Logger
}

// Monitor tracks remote connectivity. It is safe for concurrent use.
type Monitor struct {
	prober       Prober
	logger       *slog.Logger
	limiter      *rate.Limiter
	group        singleflight.Group
	interval     time.Duration
	probeTimeout time.Duration

	mu      sync.RWMutex
	verdict Verdict
	stale   bool
	offline bool

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// NewMonitor creates a monitor. No probe runs until the first call to
// Verdict, Check or Run.
func NewMonitor(prober Prober, opts Options) *Monitor {
	if opts.MinRefresh <= 0 {
		opts.MinRefresh = 5 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Monitor{
		prober:       prober,
		logger:       logger,
		limiter:      rate.NewLimiter(rate.Every(opts.MinRefresh), 1),
		interval:     opts.Interval,
		probeTimeout: opts.ProbeTimeout,
		verdict:      Verdict{Status: StatusUnknown},
		stale:        true,
		listeners:    make(map[int]Listener),
	}
}

// Check probes the remote now and returns the fresh verdict. Concurrent
// checks share a single probe.
func (m *Monitor) Check(ctx context.Context) Verdict {
	m.mu.RLock()
	offline, current := m.offline, m.verdict
	m.mu.RUnlock()
	if offline {
		return current
	}

	m.limiter.Allow() // a forced probe still spends the refresh budget
	return m.probe(ctx)
}

// Verdict returns the cached verdict, refreshing it first when it has been
// invalidated or when the refresh budget allows.
func (m *Monitor) Verdict(ctx context.Context) Verdict {
	m.mu.RLock()
	offline, stale, current := m.offline, m.stale, m.verdict
	m.mu.RUnlock()

	if offline {
		return current
	}
	if !m.limiter.Allow() && !stale {
		return current
	}
	return m.probe(ctx)
}

// Last returns the most recent verdict without probing.
func (m *Monitor) Last() Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verdict
}

// Observe feeds the outcome of a real remote call back into the monitor.
// Remote failures downgrade the cached verdict; other errors are ignored.
func (m *Monitor) Observe(err error) {
	if !domainerrors.IsRemoteFailure(err) {
		return
	}
	m.set(classify(err), false)
}

// SetOnline records a host network transition. Going offline yields an
// immediate Unreachable verdict. Coming back online invalidates the cached
// verdict so the next caller re-probes, and starts a probe in the background.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	m.offline = !online
	if online {
		m.stale = true
	}
	m.mu.Unlock()

	if !online {
		m.logger.Info("host reported offline")
		m.set(Verdict{Status: StatusUnreachable, Message: "host is offline", CheckedAt: time.Now()}, true)
		return
	}

	m.logger.Info("host reported online, re-probing remote")
	go m.probe(context.Background())
}

// Subscribe registers a listener for status changes and returns a function
// that removes it. Listeners run synchronously on the goroutine that changed
// the verdict and must not block.
func (m *Monitor) Subscribe(fn Listener) (unsubscribe func()) {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// Run probes the remote every Interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("connectivity monitor starting", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			m.logger.Info("connectivity monitor stopping")
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context) Verdict {
	v, _, _ := m.group.Do("probe", func() (any, error) {
		// The probe is shared, so one caller's cancellation must not fail it for the others.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.probeTimeout)
		defer cancel()

		start := time.Now()
		verdict := classify(m.prober.Probe(pctx))
		m.logger.Debug("health probe finished",
			"status", verdict.Status,
			"latency", time.Since(start))

		return m.set(verdict, false), nil
	})
	return v.(Verdict)
}

// set installs next and returns the verdict now in effect. While the host is
// offline only a forced verdict is installed.
func (m *Monitor) set(next Verdict, force bool) Verdict {
	m.mu.Lock()
	if m.offline && !force {
		current := m.verdict
		m.mu.Unlock()
		return current
	}
	prev := m.verdict
	m.verdict = next
	m.stale = false
	m.mu.Unlock()

	if prev.Status == next.Status {
		return next
	}

	m.logger.Info("remote connectivity changed",
		"from", prev.Status,
		"to", next.Status,
		"message", next.Message)

	m.listenersMu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(prev, next)
	}
	return next
}

func classify(err error) Verdict {
	now := time.Now()
	switch {
	case err == nil:
		return Verdict{Status: StatusConnected, CheckedAt: now}
	case domainerrors.Is(err, domainerrors.ErrSchemaMissing):
		return Verdict{Status: StatusSchemaMissing, Message: err.Error(), CheckedAt: now}
	default:
		return Verdict{Status: StatusUnreachable, Message: err.Error(), CheckedAt: now}
	}
}
