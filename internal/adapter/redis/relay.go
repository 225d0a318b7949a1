// Package redis republishes live track updates to Redis so other local tools
// can follow what is playing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pscheid92/tracklive/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	publishTimeout = 2 * time.Second
	nowPlayingTTL  = 6 * time.Hour
)

// Channel is the pub/sub channel carrying a user's live updates.
func Channel(user domain.UserID) string {
	return "tracklive:" + string(user)
}

func nowPlayingKey(user domain.UserID) string {
	return "tracklive:" + string(user) + ":now"
}

// Relay is an observer that publishes each live update as an envelope on
// Channel(user) and keeps the latest one under a key with a TTL. Redis
// failures are logged and never reach the session.
type Relay struct {
	rdb  *goredis.Client
	user domain.UserID
	set  atomic.Int64
}

func NewRelay(rdb *goredis.Client, user domain.UserID) *Relay {
	return &Relay{rdb: rdb, user: user}
}

func (r *Relay) OnValidSet(set domain.SetID) {
	r.set.Store(int64(set))
}

func (r *Relay) OnInvalidSet(domain.SetID)           {}
func (r *Relay) OnTracksLoaded([]domain.TrackUpdate) {}

func (r *Relay) OnNewTrack(update domain.TrackUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.Publish(ctx, update); err != nil {
		slog.Warn("Failed to relay track update", "user_id", r.user, "index", update.Index, "error", err)
	}
}

// Publish sends update to subscribers and records it as now playing.
func (r *Relay) Publish(ctx context.Context, update domain.TrackUpdate) error {
	payload, err := json.Marshal(domain.Envelope{
		UserID:  r.user,
		Started: r.set.Load(),
		Update:  &update,
	})
	if err != nil {
		return fmt.Errorf("failed to encode track update: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Publish(ctx, Channel(r.user), payload)
		pipe.Set(ctx, nowPlayingKey(r.user), payload, nowPlayingTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish track update: %w", err)
	}

	slog.Debug("Relayed track update", "user_id", r.user, "index", update.Index)
	return nil
}

// NowPlaying reads the latest relayed update for user. ok is false when
// nothing was relayed within the TTL.
func NowPlaying(ctx context.Context, rdb *goredis.Client, user domain.UserID) (env domain.Envelope, ok bool, err error) {
	payload, err := rdb.Get(ctx, nowPlayingKey(user)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Envelope{}, false, nil
	}
	if err != nil {
		return domain.Envelope{}, false, fmt.Errorf("failed to read now playing: %w", err)
	}

	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.Envelope{}, false, fmt.Errorf("failed to decode now playing: %w", err)
	}
	return env, true, nil
}

// Subscribe streams the updates relayed for user until ctx is done. It
// returns once the subscription is confirmed. Undecodable messages are skipped.
func Subscribe(ctx context.Context, rdb *goredis.Client, user domain.UserID) (<-chan domain.Envelope, error) {
	pubsub := rdb.Subscribe(ctx, Channel(user))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(user), err)
	}

	out := make(chan domain.Envelope)

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env domain.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					slog.Warn("Skipping undecodable relay message", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
