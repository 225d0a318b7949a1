package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tracklive/internal/adapter/httpserver"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/adapter/redis"
	"github.com/pscheid92/tracklive/internal/catalog"
	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/feed"
	"github.com/pscheid92/tracklive/internal/navigation"
	"github.com/pscheid92/tracklive/internal/platform/config"
	"github.com/pscheid92/tracklive/internal/platform/correlation"
	"github.com/pscheid92/tracklive/internal/platform/logging"
	"github.com/pscheid92/tracklive/internal/session"
	"github.com/pscheid92/tracklive/internal/view"
	goredis "github.com/redis/go-redis/v9"
)

// follower is one interactive follow session and everything wired to it.
type follower struct {
	ctrl       *session.Controller
	history    *navigation.History
	setList    *view.SetList
	nowPlaying *view.NowPlaying
	out        io.Writer
}

func runFollow(cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: tracklive follow <user|/u/user/set|page URL> [set]")
	}
	user, set, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		if set, err = parseSetID(args[1]); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	reg := metrics.NewRegistry()
	client := newClient(cfg, reg)

	endpoint, err := feed.Endpoint(cfg.BaseURL(), user)
	if err != nil {
		return err
	}

	out := os.Stdout
	f := &follower{
		history:    navigation.NewHistory(),
		setList:    view.NewSetList(out, user, cfg.BaseURL(), clock, time.Local),
		nowPlaying: view.NewNowPlaying(out),
		out:        out,
	}
	observers := view.Fanout{f.setList, view.NewTrackList(out, time.Local), f.nowPlaying}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb = setupRedis(ctx, cfg)
		defer func() { _ = rdb.Close() }()
		observers = append(observers, redis.NewRelay(rdb, user))
	}

	feedMetrics := metrics.NewFeedMetrics(reg)
	var sup *supervisor
	f.ctrl = session.New(user, client,
		func(onTrack func(domain.TrackUpdate)) domain.Feed {
			return feed.New(endpoint, onTrack,
				feed.WithStateHook(func(from, to domain.FeedState, err error) { sup.hook(from, to, err) }),
				feed.WithMetrics(feedMetrics),
				feed.WithDialTimeout(cfg.DialTimeout),
				feed.WithClock(clock),
				feed.WithLogger(logging.WithUser(string(user))),
			)
		},
		f.history, observers,
		session.WithMetrics(metrics.NewSelectionMetrics(reg)),
		session.WithCatalogOptions(catalog.WithFetchTimeout(cfg.FetchTimeout)),
		session.WithClock(clock),
	)
	sup = newSupervisor(f.ctrl, cfg.ReconnectMaxAttempts, cfg.ReconnectInitialBackoff, clock)
	go sup.run(ctx)

	f.history.OnPop(func(set domain.SetID) {
		if err := f.ctrl.HandleNavigationChange(correlation.WithID(ctx, correlation.NewID()), set); err != nil {
			slog.Error("Failed to restore set from history", "set_id", set, "error", err)
		}
	})

	var status *httpserver.Server
	if cfg.StatusAddr != "" {
		status = setupStatusServer(cfg, f, rdb, client, reg)
	}

	done := runGracefulShutdown(ctx, f.ctrl, status)

	slog.Info("Following", "user_id", user, "set_id", set, "endpoint", endpoint, "view_id", f.ctrl.ViewID())
	if err := f.showSets(ctx); err != nil {
		slog.Error("Failed to load sets", "error", err)
	}
	if err := f.ctrl.SelectSet(ctx, set, true); err != nil {
		slog.Error("Failed to select set", "set_id", set, "error", err)
	}

	f.readCommands(ctx, os.Stdin)
	stop()
	<-done
	return nil
}

// readCommands runs the stdin loop until quit, EOF or ctx is done.
func (f *follower) readCommands(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if quit := f.execute(ctx, line); quit {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (f *follower) execute(ctx context.Context, line string) (quit bool) {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintln(f.out, err)
		return false
	}

	ctx = correlation.WithID(ctx, correlation.NewID())
	switch cmd.kind {
	case cmdSets:
		if err := f.showSets(ctx); err != nil {
			fmt.Fprintln(f.out, "Could not load sets:", err)
		}
	case cmdSelect:
		if err := f.ctrl.SelectSet(ctx, cmd.set, true); err != nil {
			fmt.Fprintln(f.out, "Could not load set:", err)
		}
	case cmdBack:
		if !f.history.Back() {
			fmt.Fprintln(f.out, "Already at the oldest entry")
		}
	case cmdForward:
		if !f.history.Forward() {
			fmt.Fprintln(f.out, "Already at the newest entry")
		}
	case cmdState:
		f.showState()
	case cmdHelp:
		fmt.Fprintln(f.out, helpText)
	case cmdQuit:
		return true
	}
	return false
}

func (f *follower) showSets(ctx context.Context) error {
	sets, err := f.ctrl.ListSets(ctx)
	if err != nil {
		return err
	}
	f.setList.SetCatalog(sets)
	f.setList.Render()
	return nil
}

func (f *follower) showState() {
	current, ok := f.ctrl.Current()
	if !ok {
		fmt.Fprintf(f.out, "No set selected, feed %s\n", f.ctrl.FeedState())
		return
	}
	fmt.Fprintf(f.out, "Showing set %d, feed %s\n", current, f.ctrl.FeedState())
	if entry, ok := f.history.Current(); ok {
		fmt.Fprintf(f.out, "Location %s\n", entry.Path)
	}
	if track, ok := f.nowPlaying.Current(); ok {
		fmt.Fprintf(f.out, "Now playing #%d %s - %s\n", track.Index, track.Track.Artist, track.Track.Title)
	}
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(connectCtx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupStatusServer(cfg *config.Config, f *follower, rdb *goredis.Client, client domain.SetSource, reg *prometheus.Registry) *httpserver.Server {
	checks := []httpserver.HealthCheck{{
		Name: "trackstar",
		Check: func(ctx context.Context) error {
			_, err := client.ListSets(ctx, f.ctrl.User())
			return err
		},
	}}
	if rdb != nil {
		checks = append(checks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg.StatusAddr, f.ctrl, reg,
		httpserver.WithHealthChecks(checks...),
		httpserver.WithNowPlaying(f.nowPlaying.Current),
	)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("Status server error", "error", err)
		}
	}()
	return srv
}

func runGracefulShutdown(ctx context.Context, ctrl *session.Controller, status *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down, cleaning up...")

		ctrl.Close()

		if status != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				slog.Error("Status server shutdown error", "error", err)
			}
		}

		close(done)
	}()

	return done
}
