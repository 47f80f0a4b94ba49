// Package remote defines the contract with the remote data service and the
// guard that every call goes through.
//
// Gateways exchange JSON documents. Each document is one row of a collection,
// keyed by the collection's key column (see domain.KeyColumn). Implementations
// live in the postgrest and sqldb subpackages.
package remote

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Gateway is a remote data service.
//
// Connectivity failures are reported as RemoteUnavailable or SchemaMissing
// (see internal/errors). A request the service answered but refused is
// Conflict or Internal. NotFound is only returned by FetchOne when the
// service answered and the row does not exist.
type Gateway interface {
	// FetchAll returns the rows of collection matching filter.
	FetchAll(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error)
	// FetchOne returns the row stored under key.
	FetchOne(ctx context.Context, collection, key string) (json.RawMessage, error)
	// Upsert inserts doc or overwrites the row with the same key.
	Upsert(ctx context.Context, collection, key string, doc json.RawMessage) error
	// Remove deletes the row stored under key. Removing a missing row succeeds.
	Remove(ctx context.Context, collection, key string) error
	// Probe issues the cheapest possible read against the profiles
	// collection. It is the connectivity health check.
	Probe(ctx context.Context) error
}

// Condition is an equality match on one column.
type Condition struct {
	Field string
	Value string
}

// Filter narrows FetchAll. The zero Filter matches every row.
type Filter struct {
	Where   []Condition
	OrderBy string
	Desc    bool
	Limit   int
}

// Eq returns a filter with a single equality condition.
func Eq(field, value string) Filter {
	return Filter{Where: []Condition{{Field: field, Value: value}}}
}

// And returns a copy of f with one more equality condition.
func (f Filter) And(field, value string) Filter {
	where := make([]Condition, 0, len(f.Where)+1)
	where = append(where, f.Where...)
	f.Where = append(where, Condition{Field: field, Value: value})
	return f
}

// Order returns a copy of f sorted by field.
func (f Filter) Order(field string, desc bool) Filter {
	f.OrderBy = field
	f.Desc = desc
	return f
}

// Take returns a copy of f limited to n rows.
func (f Filter) Take(n int) Filter {
	f.Limit = n
	return f
}

// Scalar returns the string form of a JSON scalar: strings unquoted, numbers
// and booleans as written. Objects, arrays and null have no string form.
func Scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}

// Field returns the string form of a top-level field of a JSON object.
func Field(doc json.RawMessage, name string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil {
		return "", false
	}
	raw, ok := obj[name]
	if !ok {
		return "", false
	}
	return Scalar(raw)
}

// Compare orders two scalar string forms, numerically when both parse as
// numbers and lexically otherwise.
func Compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(fa, fb)
	}
	return strings.Compare(a, b)
}

// Apply evaluates filter over JSON documents held in memory: it keeps the
// matching ones, sorts them and applies the limit. docs is not modified.
func Apply(docs []json.RawMessage, filter Filter) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		if filter.Matches(func(name string) (string, bool) { return Field(doc, name) }) {
			out = append(out, doc)
		}
	}

	if filter.OrderBy != "" {
		slices.SortStableFunc(out, func(a, b json.RawMessage) int {
			av, _ := Field(a, filter.OrderBy)
			bv, _ := Field(b, filter.OrderBy)
			if filter.Desc {
				return Compare(bv, av)
			}
			return Compare(av, bv)
		})
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Matches reports whether an entity satisfies every condition. field
// resolves a column name to its string form.
func (f Filter) Matches(field func(name string) (string, bool)) bool {
	for _, c := range f.Where {
		v, ok := field(c.Field)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}
