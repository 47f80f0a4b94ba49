// Package postgrest implements remote.Gateway against a PostgREST endpoint,
// such as the REST API of a hosted Supabase project.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/remote"
)

// Options configures the client.
type Options struct {
	URL     string // REST root, e.g. https://project.supabase.co/rest/v1
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to PostgREST over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ remote.Gateway = (*Client)(nil)

// New creates a client. The API key is sent both as the apikey header and
// as a bearer token.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.APIKey != "" {
		c.SetHeader("apikey", opts.APIKey).SetAuthToken(opts.APIKey)
	}

	return &Client{http: c, logger: logger}
}

// apiError is the body PostgREST returns on failure.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// FetchAll implements remote.Gateway.
func (c *Client) FetchAll(ctx context.Context, collection string, filter remote.Filter) ([]json.RawMessage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query(filter)).
		Get("/" + collection)
	if err := c.check(collection, resp, err); err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, domainerrors.RemoteUnavailablef("%s: unexpected response body", collection).WithCause(err)
	}
	return rows, nil
}

// FetchOne implements remote.Gateway.
func (c *Client) FetchOne(ctx context.Context, collection, key string) (json.RawMessage, error) {
	rows, err := c.FetchAll(ctx, collection, remote.Eq(domain.KeyColumn(collection), key).Take(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("%s %s not found", collection, key)
	}
	return rows[0], nil
}

// Upsert implements remote.Gateway. Conflicts on the key column merge into
// the existing row.
func (c *Client) Upsert(ctx context.Context, collection, key string, doc json.RawMessage) error {
	body := make([]byte, 0, len(doc)+2)
	body = append(body, '[')
	body = append(body, doc...)
	body = append(body, ']')

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", domain.KeyColumn(collection)).
		SetHeader("Prefer", "resolution=merge-duplicates,return=representation").
		SetBody(body).
		Post("/" + collection)
	if err := c.check(collection, resp, err); err != nil {
		return err
	}

	c.logger.Debug("remote upsert", "collection", collection, "key", key)
	return nil
}

// Remove implements remote.Gateway.
func (c *Client) Remove(ctx context.Context, collection, key string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(domain.KeyColumn(collection), "eq."+key).
		Delete("/" + collection)
	return c.check(collection, resp, err)
}

// Probe implements remote.Gateway with a zero-row counted read of profiles.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("select", "id").
		SetQueryParam("limit", "0").
		SetHeader("Prefer", "count=exact").
		Get("/" + domain.CollectionProfiles)
	return c.check(domain.CollectionProfiles, resp, err)
}

func query(filter remote.Filter) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	for _, cond := range filter.Where {
		q.Add(cond.Field, "eq."+cond.Value)
	}
	if filter.OrderBy != "" {
		dir := "asc"
		if filter.Desc {
			dir = "desc"
		}
		q.Set("order", filter.OrderBy+"."+dir)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	return q
}

// check maps a transport error or a non-2xx response onto the gateway error
// kinds.
func (c *Client) check(collection string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domainerrors.RemoteUnavailablef("%s: request timed out", collection).WithCause(err)
		}
		return domainerrors.RemoteUnavailablef("%s: request failed", collection).WithCause(err)
	}
	if resp.IsSuccess() {
		return nil
	}

	var body apiError
	_ = json.Unmarshal(resp.Body(), &body)

	if isMissingRelation(body) {
		return domainerrors.SchemaMissing(fmt.Sprintf("collection %q does not exist on the remote", collection)).
			WithDetails(map[string]string{"code": body.Code, "message": body.Message})
	}

	status := resp.StatusCode()
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusConflict:
		return domainerrors.Conflict(fmt.Sprintf("%s: remote rejected the write: %s", collection, msg))
	case status >= http.StatusInternalServerError,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests:
		return domainerrors.RemoteUnavailablef("%s: remote returned %d: %s", collection, status, msg)
	default:
		// The service is up but refused this request; the verdict stays as it is.
		return domainerrors.Internal(fmt.Sprintf("%s: remote rejected the request with %d: %s", collection, status, msg)).
			WithDetails(map[string]string{"code": body.Code, "message": body.Message})
	}
}

func isMissingRelation(body apiError) bool {
	switch body.Code {
	case "42P01", "PGRST205":
		return true
	}
	msg := strings.ToLower(body.Message)
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}
