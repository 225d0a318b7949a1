// Package session coordinates which set is viewed for one user: it validates
// selections against the catalog, keeps navigation in step, loads history and
// decides whether the real-time feed should be open.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/catalog"
	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/platform/correlation"
)

var ErrClosed = errors.New("session controller closed")

// FeedFactory builds the real-time feed. onTrack must receive every update
// the feed delivers.
type FeedFactory func(onTrack func(domain.TrackUpdate)) domain.Feed

type Option func(*Controller)

func WithMetrics(m *metrics.SelectionMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithCatalogOptions passes options through to the controller's catalog.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(c *Controller) { c.catalogOpts = append(c.catalogOpts, opts...) }
}

// Controller is the live session controller for one user and one view.
//
// Rapid reselection resolves to the last successful validation: each valid
// selection takes a new generation, and a historical fetch that resolves for
// an outdated generation neither touches the feed nor loads tracks.
type Controller struct {
	user     domain.UserID
	viewID   uuid.UUID
	sets     domain.SetSource
	catalog  *catalog.Catalog
	feed     domain.Feed
	nav      domain.Navigator
	observer domain.Observer
	metrics  *metrics.SelectionMetrics
	clock    clockwork.Clock
	logger   *slog.Logger

	catalogOpts []catalog.Option

	mu         sync.Mutex
	generation uint64
	current    domain.SetID
	selected   bool
	live       domain.SetID
	closed     bool

	// observerMu serializes observer callbacks and the feed decisions that
	// go with them.
	observerMu sync.Mutex
}

// New creates a controller. nav may be nil when navigation is not tracked.
func New(user domain.UserID, sets domain.SetSource, newFeed FeedFactory, nav domain.Navigator, observer domain.Observer, opts ...Option) *Controller {
	c := &Controller{
		user:     user,
		viewID:   uuid.New(),
		sets:     sets,
		nav:      nav,
		observer: observer,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("user_id", user, "view_id", c.viewID)
	c.catalog = catalog.New(user, sets, c.catalogOpts...)
	c.feed = newFeed(c.onNewTrack)
	return c
}

func (c *Controller) ViewID() uuid.UUID { return c.viewID }

func (c *Controller) User() domain.UserID { return c.user }

// ListSets returns the catalog, most recent first.
func (c *Controller) ListSets(ctx context.Context) (domain.Catalog, error) {
	return c.catalog.List(ctx)
}

// SelectSet shows set. LiveSet resolves to the most recent set. When
// updateNavigation is set, a navigation entry is pushed before validation so
// history reflects the request even if the set turns out not to exist.
//
// An unknown set is reported through OnInvalidSet and is not an error.
// Catalog and history fetch failures are returned.
func (c *Controller) SelectSet(ctx context.Context, set domain.SetID, updateNavigation bool) error {
	ctx = correlation.Ensure(ctx)
	start := c.clock.Now()
	requested := set

	if c.isClosed() {
		return ErrClosed
	}

	sets, err := c.catalog.List(ctx)
	if err != nil {
		c.metrics.Selection(metrics.SelectionFailed)
		return fmt.Errorf("selecting set %s: %w", requested, err)
	}

	live, hasLive := sets.Live()
	if set == domain.LiveSet && hasLive {
		set = live
	}

	if updateNavigation && c.nav != nil {
		c.nav.Push(c.user, set)
	}

	if !sets.Contains(set) {
		c.logger.InfoContext(ctx, "Set not found", "set_id", set, "requested", requested)
		c.metrics.Selection(metrics.SelectionInvalid)
		c.notify(func(o domain.Observer) { o.OnInvalidSet(set) })
		return nil
	}

	gen, ok := c.validate(set, live)
	if !ok {
		return ErrClosed
	}

	updates, err := c.sets.GetSet(ctx, c.user, set)
	if err != nil {
		if !errors.Is(err, domain.ErrSetFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrSetFetch, err)
		}
		c.metrics.Selection(metrics.SelectionFailed)
		c.logger.WarnContext(ctx, "Loading set history failed", "set_id", set, "error", err)
		return fmt.Errorf("selecting set %s: %w", set, err)
	}

	if !c.apply(gen, set, live, updates) {
		c.metrics.Selection(metrics.SelectionSuperseded)
		c.logger.DebugContext(ctx, "Selection superseded", "set_id", set)
		return nil
	}

	c.metrics.Selection(metrics.SelectionValid)
	c.logger.InfoContext(ctx, "Set selected",
		"set_id", set,
		"live", set == live,
		"tracks", len(updates),
		"duration", c.clock.Since(start))
	return nil
}

// HandleNavigationChange replays a restored history entry without pushing a
// new one.
func (c *Controller) HandleNavigationChange(ctx context.Context, restored domain.SetID) error {
	return c.SelectSet(ctx, restored, false)
}

// Resume reopens a dropped feed while the live set is shown. It reports
// whether an open was issued.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.observerMu.Lock()
	defer c.observerMu.Unlock()

	c.mu.Lock()
	showingLive := c.selected && c.current == c.live && !c.closed
	c.mu.Unlock()

	if !showingLive || c.feed.State() != domain.FeedClosed {
		return false, nil
	}
	c.logger.InfoContext(ctx, "Reopening feed for live set", "set_id", c.live)
	c.feed.Open()
	return true, nil
}

// Current returns the most recently validated set.
func (c *Controller) Current() (domain.SetID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.selected
}

// Live returns the live set of the loaded catalog. ok is false before the
// first validation or when the user has no sets.
func (c *Controller) Live() (domain.SetID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live, c.selected
}

func (c *Controller) FeedState() domain.FeedState {
	return c.feed.State()
}

// Close shuts the feed. Selections still in flight are discarded.
func (c *Controller) Close() {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()

	c.mu.Lock()
	c.closed = true
	c.generation++
	c.mu.Unlock()

	c.feed.Close()
}

// validate records a successful validation and announces it.
func (c *Controller) validate(set, live domain.SetID) (uint64, bool) {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, false
	}
	c.generation++
	gen := c.generation
	c.current = set
	c.live = live
	c.selected = true
	c.mu.Unlock()

	c.observer.OnValidSet(set)
	return gen, true
}

// apply acts on a resolved historical fetch unless a newer validation has
// happened since.
func (c *Controller) apply(gen uint64, set, live domain.SetID, updates []domain.TrackUpdate) bool {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()

	c.mu.Lock()
	current := gen == c.generation
	c.mu.Unlock()
	if !current {
		return false
	}

	if set == live {
		c.feed.Open()
	} else {
		c.feed.Close()
	}

	if len(updates) > 0 {
		c.observer.OnTracksLoaded(updates)
	}
	return true
}

func (c *Controller) onNewTrack(update domain.TrackUpdate) {
	c.notify(func(o domain.Observer) { o.OnNewTrack(update) })
}

func (c *Controller) notify(fn func(domain.Observer)) {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	fn(c.observer)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
