// Package trackapi is the HTTP client for the trackstar server's set and
// track endpoints.
package trackapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/domain"
	apperrors "github.com/pscheid92/tracklive/internal/platform/errors"
)

const (
	httpCallTimeout = 10 * time.Second
	maxErrorBody    = 512

	endpointSets   = "sets"
	endpointSet    = "set"
	endpointExport = "export"
)

// Client talks to one trackstar server. It never retries.
type Client struct {
	base    *url.URL
	http    *http.Client
	clock   clockwork.Clock
	metrics *metrics.FetchMetrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http = &http.Client{Timeout: d, Transport: cl.http.Transport}
		}
	}
}

func WithMetrics(m *metrics.FetchMetrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func WithClock(clock clockwork.Clock) Option {
	return func(cl *Client) { cl.clock = clock }
}

func New(base *url.URL, opts ...Option) *Client {
	c := &Client{
		base:  base,
		http:  &http.Client{Timeout: httpCallTimeout},
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSets returns the raw set ids of user in server order.
func (c *Client) ListSets(ctx context.Context, user domain.UserID) ([]domain.SetID, error) {
	var body struct {
		Sessions []int64 `json:"sessions"`
	}
	if err := c.getJSON(ctx, endpointSets, c.setsURL(user), domain.ErrCatalogFetch, &body); err != nil {
		return nil, err.WithField("user_id", user)
	}

	sets := make([]domain.SetID, len(body.Sessions))
	for i, s := range body.Sessions {
		sets[i] = domain.SetID(s)
	}
	return sets, nil
}

// GetSet returns the recorded track updates of one set.
func (c *Client) GetSet(ctx context.Context, user domain.UserID, set domain.SetID) ([]domain.TrackUpdate, error) {
	var body struct {
		Updates []domain.TrackUpdate `json:"updates"`
	}
	if err := c.getJSON(ctx, endpointSet, c.setURL(user, set, false), domain.ErrSetFetch, &body); err != nil {
		return nil, err.WithField("user_id", user).WithField("set_id", set)
	}
	return body.Updates, nil
}

// ExportCSV copies the server's CSV export of a set to w and returns the
// number of bytes written.
func (c *Client) ExportCSV(ctx context.Context, user domain.UserID, set domain.SetID, w io.Writer) (int64, error) {
	start := c.clock.Now()
	resp, appErr := c.get(ctx, c.setURL(user, set, true), domain.ErrSetFetch)
	if appErr != nil {
		c.metrics.Observe(endpointExport, outcome(appErr), c.clock.Since(start))
		return 0, appErr.WithField("user_id", user).WithField("set_id", set)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		c.metrics.Observe(endpointExport, "transport", c.clock.Since(start))
		return n, apperrors.ExternalError("copying csv export", fmt.Errorf("%w: %w", domain.ErrSetFetch, err)).
			WithField("set_id", set)
	}
	c.metrics.Observe(endpointExport, "ok", c.clock.Since(start))
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, target string, sentinel error, v any) *apperrors.Error {
	start := c.clock.Now()
	resp, appErr := c.get(ctx, target, sentinel)
	if appErr != nil {
		c.metrics.Observe(endpoint, outcome(appErr), c.clock.Since(start))
		return appErr
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.metrics.Observe(endpoint, "decode", c.clock.Since(start))
		return apperrors.ExternalError("failed to decode response", fmt.Errorf("%w: %w", sentinel, err)).
			WithField("url", target)
	}
	c.metrics.Observe(endpoint, "ok", c.clock.Since(start))
	return nil
}

// get issues the request and checks the status. On success the caller owns
// the response body.
func (c *Client) get(ctx context.Context, target string, sentinel error) (*http.Response, *apperrors.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to create request", fmt.Errorf("%w: %w", sentinel, err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.ExternalError("failed to execute request", fmt.Errorf("%w: %w", sentinel, err)).
			WithField("url", target)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("%w: server returned status %d", sentinel, resp.StatusCode)

		appErr := apperrors.ExternalError("trackstar request failed", cause)
		if resp.StatusCode == http.StatusNotFound {
			appErr = apperrors.NotFoundError("trackstar resource not found")
			appErr.Cause = cause
		}
		return nil, appErr.
			WithField("url", target).
			WithField("status", resp.StatusCode).
			WithField("body", string(snippet))
	}
	return resp, nil
}

func (c *Client) setsURL(user domain.UserID) string {
	u := c.root()
	u.Path = "/_trackUpdate/" + url.PathEscape(string(user))
	return u.String()
}

func (c *Client) setURL(user domain.UserID, set domain.SetID, csv bool) string {
	u := c.root()
	u.Path = fmt.Sprintf("/_trackUpdate/%s/%d", url.PathEscape(string(user)), set)
	if csv {
		u.RawQuery = url.Values{"download": {"csv"}}.Encode()
	}
	return u.String()
}

func (c *Client) root() url.URL {
	return url.URL{Scheme: c.base.Scheme, Host: c.base.Host}
}

func outcome(err *apperrors.Error) string {
	status, ok := err.Context["status"].(int)
	switch {
	case !ok:
		return "transport"
	case status >= 500:
		return "status_5xx"
	default:
		return "status_4xx"
	}
}
