package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pscheid92/tracklive/internal/adapter/redis"
	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/platform/config"
	"github.com/pscheid92/tracklive/internal/view"
	goredis "github.com/redis/go-redis/v9"
)

// runWatch prints what a running follower relays for user, without
// connecting to trackstar itself.
func runWatch(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tracklive watch <user>")
	}
	if cfg.RedisURL == "" {
		return errors.New("watch needs REDIS_URL")
	}
	user, _, err := parseTarget(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := setupRedis(ctx, cfg)
	defer func() { _ = rdb.Close() }()

	return watch(ctx, rdb, user, os.Stdout)
}

func watch(ctx context.Context, rdb *goredis.Client, user domain.UserID, out io.Writer) error {
	// Subscribe first so nothing published between the two calls is lost.
	updates, err := redis.Subscribe(ctx, rdb, user)
	if err != nil {
		return err
	}

	panel := view.NewNowPlaying(out)
	env, ok, err := redis.NowPlaying(ctx, rdb, user)
	if err != nil {
		return err
	}
	if ok && env.Update != nil {
		panel.OnNewTrack(*env.Update)
	} else {
		fmt.Fprintf(out, "Nothing relayed for %s yet, waiting...\n", user)
	}

	for env := range updates {
		if env.Update != nil {
			panel.OnNewTrack(*env.Update)
		}
	}
	return nil
}
