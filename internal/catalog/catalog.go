// Package catalog loads and memoizes the list of a user's sets.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pscheid92/tracklive/internal/domain"
	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 10 * time.Second

// Catalog fetches a user's set list at most once. Concurrent callers share the
// in-flight fetch; later callers get the memoized result, failures included.
type Catalog struct {
	user    domain.UserID
	source  domain.SetSource
	timeout time.Duration
	group   singleflight.Group

	mu     sync.Mutex
	loaded bool
	sets   domain.Catalog
	err    error
}

type Option func(*Catalog)

// WithFetchTimeout bounds the shared fetch. It applies regardless of which
// caller started it.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(user domain.UserID, source domain.SetSource, opts ...Option) *Catalog {
	c := &Catalog{
		user:    user,
		source:  source,
		timeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the catalog, most recent set first. Cancelling ctx abandons
// this caller's wait only; the shared fetch keeps running for the others.
func (c *Catalog) List(ctx context.Context) (domain.Catalog, error) {
	c.mu.Lock()
	if c.loaded {
		sets, err := c.sets, c.err
		c.mu.Unlock()
		return slices.Clone(sets), err
	}
	ch := c.group.DoChan(string(c.user), func() (any, error) {
		return c.fetch(ctx)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.(domain.Catalog)), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for set catalog: %w", ctx.Err())
	}
}

// Live resolves the live set. ok is false when the user has no sets.
func (c *Catalog) Live(ctx context.Context) (set domain.SetID, ok bool, err error) {
	sets, err := c.List(ctx)
	if err != nil {
		return domain.LiveSet, false, err
	}
	set, ok = sets.Live()
	return set, ok, nil
}

func (c *Catalog) fetch(ctx context.Context) (domain.Catalog, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	raw, err := c.source.ListSets(fetchCtx, c.user)
	var sets domain.Catalog
	if err != nil {
		if !errors.Is(err, domain.ErrCatalogFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrCatalogFetch, err)
		}
		slog.WarnContext(ctx, "Set catalog fetch failed", "user_id", c.user, "error", err)
	} else {
		sets = normalize(raw)
		live, _ := sets.Live()
		slog.InfoContext(ctx, "Set catalog loaded", "user_id", c.user, "sets", len(sets), "live_set", live)
	}

	c.mu.Lock()
	c.loaded = true
	c.sets = sets
	c.err = err
	c.mu.Unlock()

	return sets, err
}

// normalize orders ids most recent first and drops duplicates.
func normalize(raw []domain.SetID) domain.Catalog {
	sets := slices.Clone(raw)
	slices.SortFunc(sets, func(a, b domain.SetID) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})
	return domain.Catalog(slices.Compact(sets))
}
