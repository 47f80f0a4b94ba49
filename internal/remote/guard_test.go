package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/remote/remotetest"
)

type stubVerdicts struct {
	mu       sync.Mutex
	verdict  connectivity.Verdict
	observed []error
}

func (s *stubVerdicts) Last() connectivity.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verdict
}

func (s *stubVerdicts) Observe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, err)
}

func connected() *stubVerdicts {
	return &stubVerdicts{verdict: connectivity.Verdict{Status: connectivity.StatusConnected}}
}

func TestGuard_PassesThroughWhenConnected(t *testing.T) {
	inner := remotetest.New()
	inner.Seed("brands", "casper", map[string]any{"id": "casper", "name": "Casper"})

	g := remote.Guard(inner, connected(), time.Second, nil)

	doc, err := g.FetchOne(context.Background(), "brands", "casper")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"casper","name":"Casper"}`, string(doc))
}

func TestGuard_FailsFastUnderFailingVerdict(t *testing.T) {
	tests := []struct {
		name   string
		status connectivity.Status
		want   error
	}{
		{"unreachable", connectivity.StatusUnreachable, domainerrors.ErrRemoteUnavailable},
		{"schema missing", connectivity.StatusSchemaMissing, domainerrors.ErrSchemaMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := remotetest.New()
			verdicts := &stubVerdicts{verdict: connectivity.Verdict{Status: tt.status, Message: "down"}}
			g := remote.Guard(inner, verdicts, time.Second, nil)

			_, err := g.FetchAll(context.Background(), "products", remote.Filter{})
			assert.ErrorIs(t, err, tt.want)

			err = g.Upsert(context.Background(), "products", "1", json.RawMessage(`{}`))
			assert.ErrorIs(t, err, tt.want)

			assert.Zero(t, inner.Calls("fetch_all"))
			assert.Zero(t, inner.Calls("upsert"))
		})
	}
}

func TestGuard_TimeoutBecomesRemoteUnavailable(t *testing.T) {
	inner := remotetest.New()
	release := inner.Hang()
	defer release()

	verdicts := connected()
	g := remote.Guard(inner, verdicts, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := g.FetchOne(context.Background(), "profiles", "u1")

	assert.ErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, verdicts.observed, 1)
}

func TestGuard_NormalizesUnclassifiedErrors(t *testing.T) {
	inner := remotetest.New()
	inner.Fail(errors.New("connection reset by peer"))

	verdicts := connected()
	g := remote.Guard(inner, verdicts, time.Second, nil)

	err := g.Remove(context.Background(), "reviews", "1")
	assert.ErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
	assert.Len(t, verdicts.observed, 1)
}

func TestGuard_NotFoundIsNotAConnectivitySignal(t *testing.T) {
	verdicts := connected()
	g := remote.Guard(remotetest.New(), verdicts, time.Second, nil)

	_, err := g.FetchOne(context.Background(), "products", "404")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Empty(t, verdicts.observed)
}

func TestGuard_RejectedRequestsLeaveVerdictAlone(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"conflict", domainerrors.Conflict("duplicate key"), domainerrors.ErrConflict},
		{"rejected", domainerrors.Internal("remote rejected the request with 400"), domainerrors.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := remotetest.New()
			inner.Fail(tt.err)

			verdicts := connected()
			g := remote.Guard(inner, verdicts, time.Second, nil)

			err := g.Upsert(context.Background(), "profiles", "u1", json.RawMessage(`{"id":"u1"}`))
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
			assert.Empty(t, verdicts.observed)
		})
	}
}

func TestGuard_ProbeIgnoresCachedVerdict(t *testing.T) {
	inner := remotetest.New()
	verdicts := &stubVerdicts{verdict: connectivity.Verdict{Status: connectivity.StatusUnreachable}}
	g := remote.Guard(inner, verdicts, time.Second, nil)

	require.NoError(t, g.Probe(context.Background()))
	assert.Equal(t, 1, inner.Calls("probe"))
}

func TestFilter_Matches(t *testing.T) {
	fields := map[string]string{"brand_id": "casper", "status": "active"}
	lookup := func(name string) (string, bool) {
		v, ok := fields[name]
		return v, ok
	}

	assert.True(t, remote.Filter{}.Matches(lookup))
	assert.True(t, remote.Eq("brand_id", "casper").Matches(lookup))
	assert.True(t, remote.Eq("brand_id", "casper").And("status", "active").Matches(lookup))
	assert.False(t, remote.Eq("brand_id", "purple").Matches(lookup))
	assert.False(t, remote.Eq("missing", "x").Matches(lookup))
}

func TestScalar(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"casper"`, "casper", true},
		{`42`, "42", true},
		{` true `, "true", true},
		{`null`, "", false},
		{`{"a":1}`, "", false},
		{`[1]`, "", false},
	}

	for _, tt := range tests {
		got, ok := remote.Scalar(json.RawMessage(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestRemotetestGateway_FetchAllOrdersAndLimits(t *testing.T) {
	g := remotetest.New()
	g.Seed("reviews", "1", map[string]any{"id": 1, "product_id": 7, "date": "2024-01-01"})
	g.Seed("reviews", "2", map[string]any{"id": 2, "product_id": 7, "date": "2024-03-01"})
	g.Seed("reviews", "3", map[string]any{"id": 3, "product_id": 8, "date": "2024-02-01"})

	docs, err := g.FetchAll(context.Background(), "reviews", remote.Eq("product_id", "7").Order("date", true).Take(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, string(docs[0]), `"id":2`)
}
