package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/pscheid92/tracklive/internal/domain"
)

// Endpoint derives the websocket URL for a user's feed from the server base
// URL: https becomes wss, anything else ws. Path, query and fragment of base
// are not carried over.
func Endpoint(base *url.URL, user domain.UserID) (string, error) {
	if base == nil || base.Host == "" {
		return "", errors.New("feed endpoint needs a base URL with a host")
	}
	if user == "" {
		return "", errors.New("feed endpoint needs a user id")
	}

	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   base.Host,
		Path:   "/_sub/" + string(user),
	}
	return u.String(), nil
}

// ParseEnvelope decodes one inbound frame and returns the update it carries.
func ParseEnvelope(data []byte) (domain.TrackUpdate, error) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.TrackUpdate{}, fmt.Errorf("%w: %w", domain.ErrMalformedFrame, err)
	}
	if env.Update == nil {
		return domain.TrackUpdate{}, fmt.Errorf("%w: no update", domain.ErrMalformedFrame)
	}
	return *env.Update, nil
}
