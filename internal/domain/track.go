package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Track struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// TrackUpdate announces one track within a set. Index is monotonic per set and
// When is in epoch seconds.
type TrackUpdate struct {
	Index  int32  `json:"index"`
	Track  Track  `json:"track"`
	DeckID string `json:"deckId,omitempty"`
	When   int64  `json:"when"`
}

// UnmarshalJSON accepts the protojson spelling (int64 as string, deckId) as
// well as plain numbers and the snake_case deck_id.
func (tu *TrackUpdate) UnmarshalJSON(b []byte) error {
	var raw struct {
		Index     flexInt `json:"index"`
		Track     Track   `json:"track"`
		DeckID    string  `json:"deckId"`
		DeckIDAlt string  `json:"deck_id"`
		When      flexInt `json:"when"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*tu = TrackUpdate{
		Index:  int32(raw.Index),
		Track:  raw.Track,
		DeckID: raw.DeckID,
		When:   int64(raw.When),
	}
	if tu.DeckID == "" {
		tu.DeckID = raw.DeckIDAlt
	}
	return nil
}

// Envelope wraps a real-time track update with its owner and set.
type Envelope struct {
	UserID  UserID       `json:"userID"`
	Started int64        `json:"started"`
	Update  *TrackUpdate `json:"update"`
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		UserID    UserID       `json:"userID"`
		UserIDAlt UserID       `json:"user_id"`
		Started   flexInt      `json:"started"`
		Update    *TrackUpdate `json:"update"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Envelope{
		UserID:  raw.UserID,
		Started: int64(raw.Started),
		Update:  raw.Update,
	}
	if e.UserID == "" {
		e.UserID = raw.UserIDAlt
	}
	return nil
}

// flexInt decodes an integer sent either as a JSON number or a numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing integer %s: %w", b, err)
	}
	*n = flexInt(v)
	return nil
}
