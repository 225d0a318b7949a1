package httpserver

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tracklive/internal/domain"
)

// --- Mock implementations ---

type mockSession struct {
	user        domain.UserID
	current     domain.SetID
	selected    bool
	live        domain.SetID
	hasLive     bool
	feedState   domain.FeedState
	listSetsFn  func(ctx context.Context) (domain.Catalog, error)
	selectSetFn func(ctx context.Context, set domain.SetID, updateNavigation bool) error
}

func (m *mockSession) User() domain.UserID { return m.user }

func (m *mockSession) Current() (domain.SetID, bool) { return m.current, m.selected }

func (m *mockSession) Live() (domain.SetID, bool) { return m.live, m.hasLive }

func (m *mockSession) FeedState() domain.FeedState { return m.feedState }

func (m *mockSession) ListSets(ctx context.Context) (domain.Catalog, error) {
	if m.listSetsFn != nil {
		return m.listSetsFn(ctx)
	}
	return nil, nil
}

func (m *mockSession) SelectSet(ctx context.Context, set domain.SetID, updateNavigation bool) error {
	if m.selectSetFn != nil {
		return m.selectSetFn(ctx, set, updateNavigation)
	}
	m.current = set
	m.selected = true
	return nil
}

func newTestServer(t *testing.T, session *mockSession, opts ...Option) (*Server, *clockwork.FakeClock) {
	t.Helper()
	if session.user == "" {
		session.user = "dj"
	}
	clock := clockwork.NewFakeClock()
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewServer("127.0.0.1:0", session, prometheus.NewRegistry(), opts...), clock
}
