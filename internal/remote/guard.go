package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

// VerdictSource is the part of connectivity.Monitor the guard relies on.
type VerdictSource interface {
	Last() connectivity.Verdict
	Observe(err error)
}

// Guarded wraps a Gateway so that no call outlives its timeout, no call is
// made under a failing verdict, and every failure is reported back to the
// connectivity monitor.
type Guarded struct {
	inner    Gateway
	verdicts VerdictSource
	timeout  time.Duration
	logger   *slog.Logger
}

// Guard wraps inner. A zero timeout defaults to five seconds.
func Guard(inner Gateway, verdicts VerdictSource, timeout time.Duration, logger *slog.Logger) *Guarded {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guarded{inner: inner, verdicts: verdicts, timeout: timeout, logger: logger}
}

// FetchAll implements Gateway.
func (g *Guarded) FetchAll(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	err := g.call(ctx, "fetch_all", collection, func(ctx context.Context) error {
		var err error
		docs, err = g.inner.FetchAll(ctx, collection, filter)
		return err
	})
	return docs, err
}

// FetchOne implements Gateway.
func (g *Guarded) FetchOne(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := g.call(ctx, "fetch_one", collection, func(ctx context.Context) error {
		var err error
		doc, err = g.inner.FetchOne(ctx, collection, key)
		return err
	})
	return doc, err
}

// Upsert implements Gateway.
func (g *Guarded) Upsert(ctx context.Context, collection, key string, doc json.RawMessage) error {
	return g.call(ctx, "upsert", collection, func(ctx context.Context) error {
		return g.inner.Upsert(ctx, collection, key, doc)
	})
}

// Remove implements Gateway.
func (g *Guarded) Remove(ctx context.Context, collection, key string) error {
	return g.call(ctx, "remove", collection, func(ctx context.Context) error {
		return g.inner.Remove(ctx, collection, key)
	})
}

// Probe runs the inner probe under the timeout. It ignores the cached
// verdict, since the probe is how that verdict gets refreshed.
func (g *Guarded) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return normalize(ctx, "probe", g.inner.Probe(ctx), g.timeout)
}

func (g *Guarded) call(ctx context.Context, op, collection string, fn func(context.Context) error) error {
	if err := g.verdicts.Last().Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := normalize(ctx, op, fn(ctx), g.timeout)
	if err == nil {
		return nil
	}

	if domainerrors.IsRemoteFailure(err) {
		g.logger.Warn("remote call failed",
			"op", op,
			"collection", collection,
			"error", err)
		g.verdicts.Observe(err)
	}
	return err
}

// normalize folds every failure into the error kinds callers branch on.
// Errors the gateway already classified pass through; anything else,
// including an expired deadline, becomes RemoteUnavailable.
func normalize(ctx context.Context, op string, err error, timeout time.Duration) error {
	if err == nil {
		return nil
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domainerrors.CodeNotFound, domainerrors.CodeRemoteUnavailable, domainerrors.CodeSchemaMissing,
			domainerrors.CodeConflict, domainerrors.CodeInternal, domainerrors.CodeValidation:
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domainerrors.RemoteUnavailablef("%s timed out after %s", op, timeout).WithCause(err)
	}
	return domainerrors.RemoteUnavailablef("%s failed", op).WithCause(err)
}
