package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/platform/retry"
)

type feedEvent struct {
	from, to domain.FeedState
	err      error
}

// resumer is the part of the session controller the supervisor needs.
type resumer interface {
	Resume(ctx context.Context) (bool, error)
}

// supervisor reopens the feed after it drops while the live set is shown.
// The feed itself never reconnects.
type supervisor struct {
	session resumer
	events  chan feedEvent
	policy  retry.Policy
}

func newSupervisor(session resumer, maxAttempts int, initialBackoff time.Duration, clock clockwork.Clock) *supervisor {
	return &supervisor{
		session: session,
		events:  make(chan feedEvent, 16),
		policy: retry.Policy{
			MaxAttempts:    maxAttempts,
			InitialBackoff: initialBackoff,
			Clock:          clock,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Feed reconnect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// hook is the feed state hook. It never blocks the feed.
func (s *supervisor) hook(from, to domain.FeedState, err error) {
	select {
	case s.events <- feedEvent{from: from, to: to, err: err}:
	default:
		slog.Debug("Dropping feed event, supervisor busy", "from", from, "to", to)
	}
}

func (s *supervisor) run(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			if ev.to != domain.FeedClosed || ev.err == nil {
				continue
			}
			if err := retry.DoVoid(ctx, s.policy, retry.Always, s.reconnect); err != nil {
				slog.Error("Giving up on live feed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// reconnect issues one Resume and waits for the outcome. A selection that is
// no longer live counts as success.
func (s *supervisor) reconnect(ctx context.Context) error {
	resumed, err := s.session.Resume(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		return nil
	}

	for {
		select {
		case ev := <-s.events:
			switch {
			case ev.to == domain.FeedOpen:
				slog.Info("Live feed restored")
				return nil
			case ev.to == domain.FeedClosed && ev.err != nil:
				return fmt.Errorf("reopening feed: %w", ev.err)
			case ev.to == domain.FeedClosed:
				// Closed on purpose, e.g. a historical set was selected.
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
