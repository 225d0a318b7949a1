// Package httpserver exposes the running session over a small local HTTP
// API: health probes, build info, metrics and the selection state.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/domain"
)

// sessionService is the part of the session controller the server drives.
type sessionService interface {
	User() domain.UserID
	Current() (domain.SetID, bool)
	Live() (domain.SetID, bool)
	FeedState() domain.FeedState
	ListSets(ctx context.Context) (domain.Catalog, error)
	SelectSet(ctx context.Context, set domain.SetID, updateNavigation bool) error
}

// NowPlayingFunc reports the latest live track, if any.
type NowPlayingFunc func() (domain.TrackUpdate, bool)

type Server struct {
	echo         *echo.Echo
	addr         string
	session      sessionService
	nowPlaying   NowPlayingFunc
	registry     *prometheus.Registry
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

type Option func(*Server)

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func WithNowPlaying(fn NowPlayingFunc) Option {
	return func(s *Server) { s.nowPlaying = fn }
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// NewServer builds the status server. Request metrics are registered on reg,
// which is also what /metrics serves.
func NewServer(addr string, session sessionService, reg *prometheus.Registry, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:     e,
		addr:     addr,
		session:  session,
		registry: reg,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()

	srv.registerRoutes(metrics.NewHTTPMetrics(reg))
	return srv
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("Starting status server", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start status server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown status server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
