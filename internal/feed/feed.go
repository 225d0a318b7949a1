// Package feed maintains the websocket connection that pushes live track
// updates for one user.
//
// A Feed moves Closed -> Connecting -> Open -> Closed. It never reconnects on
// its own; callers decide whether to Open again after the transport drops.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/domain"
)

const (
	defaultDialTimeout = 10 * time.Second
	closeWriteDeadline = 2 * time.Second
	maxFrameSize       = 64 * 1024
)

// StateHook observes every state change. err is the transport error that
// caused the change, if any. Hooks run one at a time in transition order and
// must not call Open or Close synchronously.
type StateHook func(from, to domain.FeedState, err error)

type Option func(*Feed)

func WithStateHook(hook StateHook) Option {
	return func(f *Feed) { f.hook = hook }
}

func WithClock(clock clockwork.Clock) Option {
	return func(f *Feed) { f.clock = clock }
}

func WithMetrics(m *metrics.FeedMetrics) Option {
	return func(f *Feed) { f.metrics = m }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(f *Feed) { f.dialer = d }
}

func WithDialTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.dialTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

type transition struct {
	from, to domain.FeedState
	err      error
}

// Feed is the real-time track update connection for one endpoint.
type Feed struct {
	endpoint    string
	onTrack     func(domain.TrackUpdate)
	dialer      *websocket.Dialer
	dialTimeout time.Duration
	clock       clockwork.Clock
	metrics     *metrics.FeedMetrics
	hook        StateHook
	logger      *slog.Logger

	// state is written under mu and read lock-free so hooks may call State.
	state atomic.Int32

	mu         sync.Mutex
	generation uint64
	conn       *websocket.Conn
	cancelDial context.CancelFunc
	openedAt   time.Time

	hookMu sync.Mutex
}

// New creates a closed feed. onTrack receives every well-formed update while
// the feed is open; it is called from the feed's read goroutine.
func New(endpoint string, onTrack func(domain.TrackUpdate), opts ...Option) *Feed {
	f := &Feed{
		endpoint:    endpoint,
		onTrack:     onTrack,
		dialer:      websocket.DefaultDialer,
		dialTimeout: defaultDialTimeout,
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("endpoint", endpoint)
	return f
}

func (f *Feed) State() domain.FeedState {
	return domain.FeedState(f.state.Load())
}

// Open starts connecting in the background. It is a no-op unless the feed is
// Closed.
func (f *Feed) Open() {
	f.mu.Lock()
	if f.State() != domain.FeedClosed {
		f.mu.Unlock()
		return
	}

	f.generation++
	gen := f.generation
	ctx, cancel := context.WithTimeout(context.Background(), f.dialTimeout)
	f.cancelDial = cancel

	t := f.setStateLocked(domain.FeedConnecting, nil)
	f.unlockAndNotify(t)

	go f.run(ctx, cancel, gen)
}

// Close shuts the connection down with a normal-closure frame. Closing a
// Closed feed does nothing.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.State() == domain.FeedClosed {
		f.mu.Unlock()
		return
	}

	f.generation++
	if f.cancelDial != nil {
		f.cancelDial()
		f.cancelDial = nil
	}
	conn := f.conn
	f.conn = nil

	t := f.setStateLocked(domain.FeedClosed, nil)
	f.unlockAndNotify(t)

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, f.clock.Now().Add(closeWriteDeadline))
		_ = conn.Close()
	}
}

func (f *Feed) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	conn, _, err := f.dialer.DialContext(ctx, f.endpoint, nil)
	cancel()

	f.mu.Lock()
	if gen != f.generation {
		// Closed or reopened while dialing; this connection is stale.
		f.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	f.cancelDial = nil

	if err != nil {
		t := f.setStateLocked(domain.FeedClosed, err)
		f.unlockAndNotify(t)
		return
	}

	conn.SetReadLimit(maxFrameSize)
	f.conn = conn
	f.openedAt = f.clock.Now()
	t := f.setStateLocked(domain.FeedOpen, nil)
	f.unlockAndNotify(t)

	f.readLoop(conn, gen)
}

func (f *Feed) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			f.dropped(conn, gen, err)
			return
		}

		update, err := ParseEnvelope(data)
		if err != nil {
			f.metrics.FrameDropped()
			f.logger.Debug("Dropping malformed feed frame", "error", err, "size", len(data))
			continue
		}

		if !f.current(gen) {
			return
		}
		f.metrics.FrameReceived()
		if f.onTrack != nil {
			f.onTrack(update)
		}
	}
}

// dropped handles a transport failure on an open connection. Failures of a
// connection we closed ourselves are not reported.
func (f *Feed) dropped(conn *websocket.Conn, gen uint64, err error) {
	f.mu.Lock()
	if gen != f.generation || f.conn != conn {
		f.mu.Unlock()
		return
	}
	f.conn = nil
	f.generation++
	t := f.setStateLocked(domain.FeedClosed, err)
	f.unlockAndNotify(t)

	_ = conn.Close()
}

func (f *Feed) current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.generation
}

func (f *Feed) setStateLocked(to domain.FeedState, err error) transition {
	from := f.State()
	f.state.Store(int32(to))
	return transition{from: from, to: to, err: err}
}

// unlockAndNotify releases mu and reports t. hookMu is taken before mu is
// released so transitions are reported in the order they happened.
func (f *Feed) unlockAndNotify(t transition) {
	openedAt := f.openedAt
	f.hookMu.Lock()
	f.mu.Unlock()
	defer f.hookMu.Unlock()

	f.metrics.Transition(t.from.String(), t.to.String())

	switch {
	case t.to == domain.FeedOpen:
		f.logger.Info("Feed connected")
	case t.to == domain.FeedClosed && t.err == nil:
		f.logger.Info("Feed closed", "from", t.from)
	case t.to == domain.FeedClosed && t.from == domain.FeedOpen:
		if websocket.IsCloseError(t.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			f.logger.Info("Feed closed by server", "connected_for", f.clock.Since(openedAt))
		} else {
			f.logger.Warn("Feed connection lost", "error", t.err, "connected_for", f.clock.Since(openedAt))
		}
	case t.to == domain.FeedClosed:
		f.logger.Warn("Feed connect failed", "error", t.err)
	default:
		f.logger.Debug("Feed connecting")
	}

	if f.hook != nil {
		f.hook(t.from, t.to, t.err)
	}
}
