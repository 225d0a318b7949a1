package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockSetSource struct {
	listSetsFn  func(ctx context.Context, user domain.UserID) ([]domain.SetID, error)
	getSetFn    func(ctx context.Context, user domain.UserID, set domain.SetID) ([]domain.TrackUpdate, error)
	listCalls   atomic.Int32
	getSetCalls atomic.Int32
}

func (m *mockSetSource) ListSets(ctx context.Context, user domain.UserID) ([]domain.SetID, error) {
	m.listCalls.Add(1)
	if m.listSetsFn != nil {
		return m.listSetsFn(ctx, user)
	}
	return nil, nil
}

func (m *mockSetSource) GetSet(ctx context.Context, user domain.UserID, set domain.SetID) ([]domain.TrackUpdate, error) {
	m.getSetCalls.Add(1)
	if m.getSetFn != nil {
		return m.getSetFn(ctx, user, set)
	}
	return nil, nil
}

type mockFeed struct {
	mu      sync.Mutex
	state   domain.FeedState
	opens   int
	closes  int
	onTrack func(domain.TrackUpdate)
}

func (m *mockFeed) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	m.state = domain.FeedOpen
}

func (m *mockFeed) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.state = domain.FeedClosed
}

func (m *mockFeed) State() domain.FeedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockFeed) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = domain.FeedClosed
}

func (m *mockFeed) calls() (opens, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes
}

type mockNavigator struct {
	mu     sync.Mutex
	pushed []domain.SetID
}

func (m *mockNavigator) Push(_ domain.UserID, set domain.SetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushed = append(m.pushed, set)
}

func (m *mockNavigator) entries() []domain.SetID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SetID(nil), m.pushed...)
}

// recordingObserver records callbacks as events like "valid:30" and flags
// any two callbacks that run at the same time.
type recordingObserver struct {
	mu      sync.Mutex
	events  []string
	loaded  [][]domain.TrackUpdate
	live    []domain.TrackUpdate
	active  atomic.Int32
	overlap atomic.Bool
}

func (o *recordingObserver) enter() func() {
	if o.active.Add(1) > 1 {
		o.overlap.Store(true)
	}
	return func() { o.active.Add(-1) }
}

func (o *recordingObserver) OnValidSet(set domain.SetID) {
	defer o.enter()()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "valid:"+set.String())
}

func (o *recordingObserver) OnInvalidSet(set domain.SetID) {
	defer o.enter()()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "invalid:"+set.String())
}

func (o *recordingObserver) OnTracksLoaded(updates []domain.TrackUpdate) {
	defer o.enter()()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "loaded")
	o.loaded = append(o.loaded, updates)
}

func (o *recordingObserver) OnNewTrack(update domain.TrackUpdate) {
	defer o.enter()()
	time.Sleep(time.Millisecond)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "new")
	o.live = append(o.live, update)
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

// --- Helpers ---

func historyFor(set domain.SetID) []domain.TrackUpdate {
	return []domain.TrackUpdate{
		{Index: 1, Track: domain.Track{Artist: "Artist " + set.String(), Title: "First"}, When: int64(set) / 1000},
		{Index: 2, Track: domain.Track{Artist: "Artist " + set.String(), Title: "Second"}, When: int64(set)/1000 + 60},
	}
}

func catalogOf(ids ...domain.SetID) *mockSetSource {
	return &mockSetSource{
		listSetsFn: func(context.Context, domain.UserID) ([]domain.SetID, error) { return ids, nil },
		getSetFn: func(_ context.Context, _ domain.UserID, set domain.SetID) ([]domain.TrackUpdate, error) {
			return historyFor(set), nil
		},
	}
}

type fixture struct {
	ctrl *Controller
	src  *mockSetSource
	feed *mockFeed
	nav  *mockNavigator
	obs  *recordingObserver
}

func newFixture(t *testing.T, src *mockSetSource, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{src: src, feed: &mockFeed{}, nav: &mockNavigator{}, obs: &recordingObserver{}}
	f.ctrl = New("dj", src, func(onTrack func(domain.TrackUpdate)) domain.Feed {
		f.feed.onTrack = onTrack
		return f.feed
	}, f.nav, f.obs, opts...)
	return f
}

// --- Tests ---

func TestListSets_SortedDescending(t *testing.T) {
	f := newFixture(t, catalogOf(10, 30, 20))

	sets, err := f.ctrl.ListSets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Catalog{30, 20, 10}, sets)
}

func TestSelectSet_LiveResolution(t *testing.T) {
	zero := newFixture(t, catalogOf(30, 20, 10))
	explicit := newFixture(t, catalogOf(30, 20, 10))

	require.NoError(t, zero.ctrl.SelectSet(context.Background(), domain.LiveSet, true))
	require.NoError(t, explicit.ctrl.SelectSet(context.Background(), 30, true))

	assert.Equal(t, explicit.obs.snapshot(), zero.obs.snapshot())
	assert.Equal(t, []string{"valid:30", "loaded"}, zero.obs.snapshot())
	assert.Equal(t, explicit.nav.entries(), zero.nav.entries())
	assert.Equal(t, []domain.SetID{30}, zero.nav.entries())
	assert.Equal(t, domain.FeedOpen, zero.ctrl.FeedState())
	assert.Equal(t, domain.FeedOpen, explicit.ctrl.FeedState())

	current, ok := zero.ctrl.Current()
	assert.True(t, ok)
	assert.Equal(t, domain.SetID(30), current)
}

func TestSelectSet_FeedOpenOnlyForLiveSet(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20, 10))
	ctx := context.Background()

	for _, tc := range []struct {
		set  domain.SetID
		want domain.FeedState
	}{
		{20, domain.FeedClosed},
		{30, domain.FeedOpen},
		{10, domain.FeedClosed},
		{domain.LiveSet, domain.FeedOpen},
	} {
		require.NoError(t, f.ctrl.SelectSet(ctx, tc.set, true))
		assert.Equal(t, tc.want, f.ctrl.FeedState(), "after selecting %d", tc.set)
	}
}

func TestSelectSet_InvalidSet(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20, 10))

	err := f.ctrl.SelectSet(context.Background(), 99, true)
	require.NoError(t, err, "an unknown set is an outcome, not an error")

	assert.Equal(t, []string{"invalid:99"}, f.obs.snapshot())
	assert.Equal(t, int32(0), f.src.getSetCalls.Load())
	opens, closes := f.feed.calls()
	assert.Zero(t, opens)
	assert.Zero(t, closes)
	assert.Equal(t, []domain.SetID{99}, f.nav.entries(), "navigation records the request before validation")
}

func TestSelectSet_EmptyCatalog(t *testing.T) {
	f := newFixture(t, catalogOf())

	require.NoError(t, f.ctrl.SelectSet(context.Background(), domain.LiveSet, true))
	assert.Equal(t, []string{"invalid:0"}, f.obs.snapshot())
	assert.Equal(t, domain.FeedClosed, f.ctrl.FeedState())
}

func TestSelectSet_NavigationReplay(t *testing.T) {
	pushed := newFixture(t, catalogOf(30, 20, 10))
	replayed := newFixture(t, catalogOf(30, 20, 10))
	ctx := context.Background()

	require.NoError(t, pushed.ctrl.SelectSet(ctx, 20, true))
	require.NoError(t, replayed.ctrl.SelectSet(ctx, 20, false))

	assert.Equal(t, []domain.SetID{20}, pushed.nav.entries())
	assert.Empty(t, replayed.nav.entries())
	assert.Equal(t, pushed.obs.snapshot(), replayed.obs.snapshot())
	assert.Equal(t, pushed.src.getSetCalls.Load(), replayed.src.getSetCalls.Load())
	assert.Equal(t, pushed.ctrl.FeedState(), replayed.ctrl.FeedState())
}

func TestSelectSet_BulkReplace(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20, 10))
	ctx := context.Background()

	require.NoError(t, f.ctrl.SelectSet(ctx, 20, true))
	require.NoError(t, f.ctrl.SelectSet(ctx, 10, true))

	require.Len(t, f.obs.loaded, 2)
	assert.Equal(t, historyFor(20), f.obs.loaded[0])
	assert.Equal(t, historyFor(10), f.obs.loaded[1])
}

func TestSelectSet_EmptyHistorySkipsTracksLoaded(t *testing.T) {
	src := catalogOf(30)
	src.getSetFn = func(context.Context, domain.UserID, domain.SetID) ([]domain.TrackUpdate, error) {
		return nil, nil
	}
	f := newFixture(t, src)

	require.NoError(t, f.ctrl.SelectSet(context.Background(), 30, true))
	assert.Equal(t, []string{"valid:30"}, f.obs.snapshot())
	assert.Equal(t, domain.FeedOpen, f.ctrl.FeedState())
}

func TestSelectSet_CatalogFailure(t *testing.T) {
	src := &mockSetSource{listSetsFn: func(context.Context, domain.UserID) ([]domain.SetID, error) {
		return nil, errors.New("server unreachable")
	}}
	f := newFixture(t, src)

	err := f.ctrl.SelectSet(context.Background(), 30, true)
	assert.ErrorIs(t, err, domain.ErrCatalogFetch)
	err = f.ctrl.SelectSet(context.Background(), 30, true)
	assert.ErrorIs(t, err, domain.ErrCatalogFetch)

	assert.Empty(t, f.obs.snapshot())
	assert.Empty(t, f.nav.entries())
	assert.Equal(t, int32(1), src.listCalls.Load())
}

func TestSelectSet_HistoryFailure(t *testing.T) {
	src := catalogOf(30, 20)
	src.getSetFn = func(context.Context, domain.UserID, domain.SetID) ([]domain.TrackUpdate, error) {
		return nil, errors.New("timeout")
	}
	f := newFixture(t, src)

	err := f.ctrl.SelectSet(context.Background(), 30, true)
	assert.ErrorIs(t, err, domain.ErrSetFetch)
	assert.Equal(t, []string{"valid:30"}, f.obs.snapshot())

	opens, closes := f.feed.calls()
	assert.Zero(t, opens)
	assert.Zero(t, closes)

	// The catalog survives a history failure.
	sets, err := f.ctrl.ListSets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Catalog{30, 20}, sets)
}

func TestSelectSet_FeedDecisionWaitsForHistory(t *testing.T) {
	release := make(chan struct{})
	src := catalogOf(30)
	src.getSetFn = func(context.Context, domain.UserID, domain.SetID) ([]domain.TrackUpdate, error) {
		<-release
		return historyFor(30), nil
	}
	f := newFixture(t, src)

	done := make(chan error, 1)
	go func() { done <- f.ctrl.SelectSet(context.Background(), 30, true) }()

	require.Eventually(t, func() bool { return src.getSetCalls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, domain.FeedClosed, f.ctrl.FeedState())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.FeedOpen, f.ctrl.FeedState())
}

func TestSelectSet_LastValidationWins(t *testing.T) {
	slow := make(chan struct{})
	src := catalogOf(30, 20)
	src.getSetFn = func(_ context.Context, _ domain.UserID, set domain.SetID) ([]domain.TrackUpdate, error) {
		if set == 20 {
			<-slow
		}
		return historyFor(set), nil
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewSelectionMetrics(reg)
	f := newFixture(t, src, WithMetrics(m))
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- f.ctrl.SelectSet(ctx, 20, true) }()
	require.Eventually(t, func() bool { return src.getSetCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.ctrl.SelectSet(ctx, 30, true))
	assert.Equal(t, domain.FeedOpen, f.ctrl.FeedState())

	close(slow)
	require.NoError(t, <-first)

	assert.Equal(t, domain.FeedOpen, f.ctrl.FeedState(), "stale fetch must not close the live feed")
	assert.Equal(t, []string{"valid:20", "valid:30", "loaded"}, f.obs.snapshot())
	require.Len(t, f.obs.loaded, 1)
	assert.Equal(t, historyFor(30), f.obs.loaded[0])

	current, _ := f.ctrl.Current()
	assert.Equal(t, domain.SetID(30), current)
	assert.Equal(t, []domain.SetID{20, 30}, f.nav.entries())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelectionsTotal.WithLabelValues(metrics.SelectionSuperseded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelectionsTotal.WithLabelValues(metrics.SelectionValid)))
}

func TestSelectSet_InvalidDoesNotSupersedePending(t *testing.T) {
	slow := make(chan struct{})
	src := catalogOf(30, 20)
	src.getSetFn = func(_ context.Context, _ domain.UserID, set domain.SetID) ([]domain.TrackUpdate, error) {
		<-slow
		return historyFor(set), nil
	}
	f := newFixture(t, src)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- f.ctrl.SelectSet(ctx, 30, true) }()
	require.Eventually(t, func() bool { return src.getSetCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.ctrl.SelectSet(ctx, 99, true))
	close(slow)
	require.NoError(t, <-first)

	assert.Equal(t, domain.FeedOpen, f.ctrl.FeedState())
	assert.Equal(t, []string{"valid:30", "invalid:99", "loaded"}, f.obs.snapshot())
}

func TestRealtimeUpdatesForwarded(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20))
	require.NoError(t, f.ctrl.SelectSet(context.Background(), 20, true))

	// Forwarded without filtering by selected set.
	f.feed.onTrack(domain.TrackUpdate{Index: 7})
	assert.Equal(t, []string{"valid:20", "loaded", "new"}, f.obs.snapshot())
	assert.Equal(t, int32(7), f.obs.live[0].Index)
}

func TestObserverCallbacksSerialized(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20, 10))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.feed.onTrack(domain.TrackUpdate{Index: int32(i)})
		}()
		go func() {
			defer wg.Done()
			_ = f.ctrl.SelectSet(ctx, domain.SetID(10*(i%3+1)), false)
		}()
	}
	wg.Wait()

	assert.False(t, f.obs.overlap.Load(), "observer callbacks overlapped")
}

func TestHandleNavigationChange_WithHistory(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20, 10))
	history := navigation.NewHistory()
	ctrl := New("dj", f.src, func(onTrack func(domain.TrackUpdate)) domain.Feed { return f.feed }, history, f.obs)

	errs := make(chan error, 4)
	history.OnPop(func(set domain.SetID) {
		errs <- ctrl.HandleNavigationChange(context.Background(), set)
	})

	ctx := context.Background()
	require.NoError(t, ctrl.SelectSet(ctx, 10, true))
	require.NoError(t, ctrl.SelectSet(ctx, domain.LiveSet, true))
	require.NoError(t, ctrl.SelectSet(ctx, 99, true))
	require.Len(t, history.Entries(), 3)

	require.True(t, history.Back())
	require.NoError(t, <-errs)
	current, _ := ctrl.Current()
	assert.Equal(t, domain.SetID(30), current)
	assert.Equal(t, domain.FeedOpen, ctrl.FeedState())

	require.True(t, history.Back())
	require.NoError(t, <-errs)
	current, _ = ctrl.Current()
	assert.Equal(t, domain.SetID(10), current)
	assert.Equal(t, domain.FeedClosed, ctrl.FeedState())

	require.True(t, history.Forward())
	require.NoError(t, <-errs)
	require.True(t, history.Forward())
	require.NoError(t, <-errs)

	assert.Len(t, history.Entries(), 3, "replay must not push entries")
	events := f.obs.snapshot()
	assert.Equal(t, "invalid:99", events[len(events)-1])
}

func TestResume(t *testing.T) {
	f := newFixture(t, catalogOf(30, 20))
	ctx := context.Background()

	resumed, err := f.ctrl.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, resumed, "nothing selected yet")

	require.NoError(t, f.ctrl.SelectSet(ctx, 30, true))
	resumed, err = f.ctrl.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, resumed, "feed already open")

	f.feed.drop()
	resumed, err = f.ctrl.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, domain.FeedOpen, f.ctrl.FeedState())

	require.NoError(t, f.ctrl.SelectSet(ctx, 20, true))
	resumed, err = f.ctrl.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, resumed, "historical set shown")
}

func TestClose(t *testing.T) {
	f := newFixture(t, catalogOf(30))
	ctx := context.Background()

	require.NoError(t, f.ctrl.SelectSet(ctx, 30, true))
	f.ctrl.Close()
	assert.Equal(t, domain.FeedClosed, f.ctrl.FeedState())

	assert.ErrorIs(t, f.ctrl.SelectSet(ctx, 30, true), ErrClosed)
	resumed, err := f.ctrl.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)
}
