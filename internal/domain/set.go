package domain

import (
	"context"
	"slices"
	"strconv"
	"time"
)

// UserID identifies the broadcaster whose sets are being followed.
type UserID string

// SetID identifies one listening session. It is the session start time in
// epoch milliseconds, so larger values are more recent.
type SetID int64

// LiveSet asks for whatever set is currently live.
const LiveSet SetID = 0

func (id SetID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Started returns the set start time.
func (id SetID) Started() time.Time {
	return time.UnixMilli(int64(id))
}

// Catalog is the ordered list of a user's sets, most recent first.
// The head element is the live set.
type Catalog []SetID

// Live returns the most recent set. ok is false for an empty catalog.
func (c Catalog) Live() (SetID, bool) {
	if len(c) == 0 {
		return LiveSet, false
	}
	return c[0], true
}

// Contains reports whether id is a known set.
func (c Catalog) Contains(id SetID) bool {
	return slices.Contains(c, id)
}

// SetSource fetches set data from the trackstar server.
type SetSource interface {
	ListSets(ctx context.Context, user UserID) ([]SetID, error)
	GetSet(ctx context.Context, user UserID, set SetID) ([]TrackUpdate, error)
}

// Navigator records the viewed set as a navigation entry.
type Navigator interface {
	Push(user UserID, set SetID)
}
