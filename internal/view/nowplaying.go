package view

import (
	"fmt"
	"io"
	"sync"

	"github.com/pscheid92/tracklive/internal/domain"
)

// NowPlaying shows the most recent live track.
type NowPlaying struct {
	Nop

	mu      sync.Mutex
	out     io.Writer
	current *domain.TrackUpdate
}

func NewNowPlaying(out io.Writer) *NowPlaying {
	return &NowPlaying{out: out}
}

func (p *NowPlaying) OnNewTrack(update domain.TrackUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = &update
	fmt.Fprintf(p.out, ">> Now playing #%d: %s - %s (deck %s)\n",
		update.Index, update.Track.Artist, update.Track.Title, deckOrBlank(update.DeckID))
}

// Current returns the track on air, if any arrived yet.
func (p *NowPlaying) Current() (domain.TrackUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.TrackUpdate{}, false
	}
	return *p.current, true
}
