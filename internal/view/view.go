// Package view renders session outcomes to a terminal. Every type here is a
// domain.Observer; Fanout combines them.
package view

import (
	"github.com/pscheid92/tracklive/internal/domain"
)

// Nop ignores every callback. Embed it to implement only some of them.
type Nop struct{}

func (Nop) OnValidSet(domain.SetID)             {}
func (Nop) OnInvalidSet(domain.SetID)           {}
func (Nop) OnTracksLoaded([]domain.TrackUpdate) {}
func (Nop) OnNewTrack(domain.TrackUpdate)       {}

// Fanout forwards each callback to its observers in order.
type Fanout []domain.Observer

func (f Fanout) OnValidSet(set domain.SetID) {
	for _, o := range f {
		o.OnValidSet(set)
	}
}

func (f Fanout) OnInvalidSet(set domain.SetID) {
	for _, o := range f {
		o.OnInvalidSet(set)
	}
}

func (f Fanout) OnTracksLoaded(updates []domain.TrackUpdate) {
	for _, o := range f {
		o.OnTracksLoaded(updates)
	}
}

func (f Fanout) OnNewTrack(update domain.TrackUpdate) {
	for _, o := range f {
		o.OnNewTrack(update)
	}
}

func deckOrBlank(deck string) string {
	if deck == "" {
		return "-"
	}
	return deck
}
