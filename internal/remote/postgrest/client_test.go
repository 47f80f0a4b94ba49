package postgrest_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/remote/postgrest"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	body     string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeServer) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func setup(t *testing.T, status int, body string) (*postgrest.Client, *fakeServer) {
	t.Helper()

	fake := &fakeServer{status: status, body: body}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := postgrest.New(postgrest.Options{URL: srv.URL + "/rest/v1", APIKey: "anon-key", Timeout: time.Second})
	return c, fake
}

func TestClient_FetchAllBuildsQuery(t *testing.T) {
	c, fake := setup(t, http.StatusOK, `[{"id":"m1"},{"id":"m2"}]`)

	filter := remote.Eq("user_id", "u1").Order("created_at", true).Take(5)
	rows, err := c.FetchAll(context.Background(), "measurements", filter)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	req := fake.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/rest/v1/measurements", req.Path)
	assert.Equal(t, "*", req.Query.Get("select"))
	assert.Equal(t, "eq.u1", req.Query.Get("user_id"))
	assert.Equal(t, "created_at.desc", req.Query.Get("order"))
	assert.Equal(t, "5", req.Query.Get("limit"))
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", req.Header.Get("Authorization"))
}

func TestClient_FetchOneUsesKeyColumn(t *testing.T) {
	c, fake := setup(t, http.StatusOK, `[{"user_id":"u1","messages":[]}]`)

	doc, err := c.FetchOne(context.Background(), "chat_history", "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"u1","messages":[]}`, string(doc))

	req := fake.last(t)
	assert.Equal(t, "eq.u1", req.Query.Get("user_id"))
	assert.Equal(t, "1", req.Query.Get("limit"))
}

func TestClient_FetchOneEmptyIsNotFound(t *testing.T) {
	c, _ := setup(t, http.StatusOK, `[]`)

	_, err := c.FetchOne(context.Background(), "products", "9")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestClient_UpsertMergesOnKey(t *testing.T) {
	c, fake := setup(t, http.StatusCreated, `[{"id":"casper"}]`)

	err := c.Upsert(context.Background(), "brands", "casper", json.RawMessage(`{"id":"casper","name":"Casper"}`))
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/rest/v1/brands", req.Path)
	assert.Equal(t, "id", req.Query.Get("on_conflict"))
	assert.Equal(t, "resolution=merge-duplicates,return=representation", req.Header.Get("Prefer"))
	assert.JSONEq(t, `[{"id":"casper","name":"Casper"}]`, req.Body)
}

func TestClient_Remove(t *testing.T) {
	c, fake := setup(t, http.StatusNoContent, ``)

	require.NoError(t, c.Remove(context.Background(), "reviews", "12"))

	req := fake.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "eq.12", req.Query.Get("id"))
}

func TestClient_Probe(t *testing.T) {
	c, fake := setup(t, http.StatusOK, `[]`)

	require.NoError(t, c.Probe(context.Background()))

	req := fake.last(t)
	assert.Equal(t, "/rest/v1/profiles", req.Path)
	assert.Equal(t, "id", req.Query.Get("select"))
	assert.Equal(t, "0", req.Query.Get("limit"))
	assert.Equal(t, "count=exact", req.Header.Get("Prefer"))
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"undefined table", http.StatusNotFound, `{"code":"42P01","message":"relation \"public.profiles\" does not exist"}`, domainerrors.ErrSchemaMissing},
		{"schema cache miss", http.StatusNotFound, `{"code":"PGRST205","message":"Could not find the table 'public.profiles' in the schema cache"}`, domainerrors.ErrSchemaMissing},
		{"relation message only", http.StatusBadRequest, `{"message":"relation \"brands\" does not exist"}`, domainerrors.ErrSchemaMissing},
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, domainerrors.ErrRemoteUnavailable},
		{"bad gateway without body", http.StatusBadGateway, ``, domainerrors.ErrRemoteUnavailable},
		{"duplicate key", http.StatusConflict, `{"code":"23505","message":"duplicate key value"}`, domainerrors.ErrConflict},
		{"rate limited", http.StatusTooManyRequests, ``, domainerrors.ErrRemoteUnavailable},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Invalid API key"}`, domainerrors.ErrInternal},
		{"forbidden", http.StatusForbidden, `{"code":"42501","message":"permission denied"}`, domainerrors.ErrInternal},
		{"bad filter", http.StatusBadRequest, `{"code":"42703","message":"column profiles.nickname does not exist"}`, domainerrors.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setup(t, tt.status, tt.body)

			err := c.Probe(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_TransportFailureIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := postgrest.New(postgrest.Options{URL: addr, Timeout: time.Second})

	_, err := c.FetchAll(context.Background(), "products", remote.Filter{})
	assert.ErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
}

func TestClient_DeadlineIsRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := postgrest.New(postgrest.Options{URL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Probe(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrRemoteUnavailable)
}

func TestSchemaIsEmbedded(t *testing.T) {
	for _, table := range []string{"profiles", "measurements", "products", "brands", "reviews", "chat_history"} {
		assert.Contains(t, postgrest.Schema, "public."+table+" (")
	}
}
